package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter собирает маршруты API
func NewRouter(h *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/consultations", func(r chi.Router) {
			r.Post("/", h.Book)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Get)
				r.Get("/events", h.History)
				r.Post("/confirm", h.Confirm)
				r.Post("/start", h.Start)
				r.Post("/complete", h.Complete)
				r.Post("/cancel", h.Cancel)
				r.Post("/rate", h.Rate)
			})
		})

		r.Get("/clients/{id}/consultations", h.ListByClient)
		r.Get("/lawyers/{id}/consultations", h.ListByLawyer)
		r.Get("/lawyers/{id}/consultations/pending", h.ListPendingByLawyer)

		r.Post("/payments/webhook", h.PaymentWebhook)
	})

	return r
}

// requestLogger журнал запросов через zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(started)),
			)
		})
	}
}
