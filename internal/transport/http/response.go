package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"flamenco-core/internal/entity"
)

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg})
}

// statusFor maps the entity error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrIllegalTransition),
		errors.Is(err, entity.ErrInvalidJobState),
		errors.Is(err, entity.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, entity.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceErr answers with the status for err. Store and internal
// failures get a fixed message; the cause only goes to the request log.
func writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	noteErr(r.Context(), err)
	writeErr(w, code, publicMessage(code, err))
}

func publicMessage(code int, err error) string {
	switch {
	case code == http.StatusForbidden:
		return "forbidden"
	case errors.Is(err, entity.ErrStoreUnavailable):
		return "store unavailable, retry later"
	case code >= http.StatusInternalServerError:
		return "internal error"
	case errors.Is(err, entity.ErrConflict):
		return "conflict"
	}
	return err.Error()
}
