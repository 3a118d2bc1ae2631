package engine

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ignite/outreach-engine/internal/pkg/httputil"
)

// WebhookServer receives provider push events, currently new-message
// notifications that flag waiting reply polls.
type WebhookServer struct {
	steps StepStore
}

// NewWebhookServer creates the webhook HTTP surface over the step ledger.
func NewWebhookServer(steps StepStore) *WebhookServer {
	return &WebhookServer{steps: steps}
}

// Router builds the HTTP handler: the reply webhook plus a health endpoint.
func (s *WebhookServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/webhooks/replies", s.handleReply)
	return r
}

func (s *WebhookServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// replyEvent is the provider's new-message notification payload. Only the
// attendee ids matter; everything else is ignored.
type replyEvent struct {
	Attendees []struct {
		AttendeeProviderID string `json:"attendee_provider_id"`
	} `json:"attendees"`
}

// handleReply flags every waiting reply poll for the senders in the event.
// The provider retries on non-2xx, so the capture is acknowledged even when
// nothing matched or the store write failed; a miss resolves on the next
// poll cycle anyway.
func (s *WebhookServer) handleReply(w http.ResponseWriter, r *http.Request) {
	var ev replyEvent
	if !httputil.Decode(w, r, &ev) {
		return
	}

	var ids []string
	for _, a := range ev.Attendees {
		if a.AttendeeProviderID != "" {
			ids = append(ids, a.AttendeeProviderID)
		}
	}

	if len(ids) > 0 {
		// Detach from the request context so a client disconnect cannot
		// abort the write mid-flight.
		n, err := s.steps.MarkReplied(context.WithoutCancel(r.Context()), ids)
		if err != nil {
			log.Printf("[Webhook] mark replied: %v", err)
		} else if n > 0 {
			log.Printf("[Webhook] reply captured for %d step(s)", n)
		}
	}

	httputil.OK(w, map[string]bool{"captured": true})
}
