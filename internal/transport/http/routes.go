package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

func Routes(h *Handler, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// after RequestID
	r.Use(RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(jwtSecret))

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.CreateJob)
			r.Get("/{id}", h.GetJob)
			r.Post("/{id}/cancel", h.CancelJob)
			r.Post("/{id}/recompute", h.RecomputeJob)
			r.Get("/{id}/tasks", h.ListTasks)
			r.Post("/{id}/tasks", h.CreateTasks)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/{id}", h.GetTask)
			r.Post("/{id}/status", h.TransitionTask)
			r.Get("/{id}/logs", h.GetTaskLogs)
			r.Post("/{id}/logs", h.AppendTaskLog)
		})

		r.Route("/managers", func(r chi.Router) {
			r.Post("/", h.RegisterManager)
			r.Get("/{id}", h.GetManager)
			r.Put("/{id}/projects/{project}", h.AssignProject)
			r.Delete("/{id}/projects/{project}", h.RemoveProject)
		})

		r.Get("/manager", h.Whoami)
		r.Post("/manager/claim", h.ClaimTask)
	})

	return r
}
