package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mindyard/internal/insightservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *insightservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Inbound.
	r.Post("/submissions", h.SubmitNote)
	r.Get("/submissions/{id}", h.GetSubmission)

	// Outbound.
	r.Get("/matches", h.ListMatches)
	r.Get("/insights", h.ListInsights)
	r.Get("/insights/{id}", h.GetInsight)
	r.Post("/insights/{id}/corrections", h.SubmitCorrection)

	// Compliance review.
	r.Get("/audit", h.AuditLog)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
