package httptransport

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// requestLog is shared between RequestLogger and the handlers below it.
// Authenticate fills in the caller, writeServiceErr the failure.
type requestLog struct {
	user uuid.UUID
	err  error
}

type requestLogKey struct{}

func requestLogFrom(ctx context.Context) *requestLog {
	rl, _ := ctx.Value(requestLogKey{}).(*requestLog)
	return rl
}

func noteUser(ctx context.Context, id uuid.UUID) {
	if rl := requestLogFrom(ctx); rl != nil {
		rl.user = id
	}
}

func noteErr(ctx context.Context, err error) {
	if rl := requestLogFrom(ctx); rl != nil {
		rl.err = err
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// RequestLogger logs one line per request with the matched route, the
// authenticated user and, for failed service calls, the underlying error.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()
		rl := &requestLog{}

		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), requestLogKey{}, rl)))

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		user := "-"
		if rl.user != uuid.Nil {
			user = rl.user.String()
		}
		line := "[http] req_id=%s method=%s route=%s user=%s status=%d bytes=%d duration_ms=%d"
		args := []any{middleware.GetReqID(r.Context()), r.Method, route, user, sw.status, sw.bytes, time.Since(start).Milliseconds()}
		if rl.err != nil {
			line += " error=%q"
			args = append(args, rl.err.Error())
		}
		log.Printf(line, args...)
	})
}
