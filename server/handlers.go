package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/homemade/hubsync/sync"
)

type errorResponse struct {
	Error string `json:"error"`
}

type webhookResponse struct {
	Received  int            `json:"received"`
	Processed int            `json:"processed"`
	Results   []sync.Outcome `json:"results"`
}

type connectionStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleIndex serves the service info page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	formFilter := any("all forms")
	if len(s.cfg.FormFilter) > 0 {
		formFilter = s.cfg.FormFilter
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "HubSpot Webhook Sync",
		"status":  "running",
		"endpoints": map[string]string{
			"webhooks":        "/webhooks/hubspot",
			"health":          "/health",
			"test_sync":       "/test/sync/{contactId}",
			"test_connection": "/test/connection",
			"metrics":         "/metrics",
		},
		"config": map[string]any{
			"source_token_set":   s.cfg.SourceToken != "",
			"dest_token_set":     s.cfg.DestToken != "",
			"client_secret_set":  s.cfg.ClientSecret != "",
			"properties_to_sync": s.cfg.Mapping.Properties,
			"property_renames":   s.cfg.Mapping.Renames,
			"properties_skipped": s.cfg.Mapping.Skip,
			"form_filter":        formFilter,
		},
	})
}

// handleHealth is the monitoring health check. No dependency checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// handleWebhook processes a batch of HubSpot webhook events. One failed
// event never fails the batch - partial success is the normal case.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if s.cfg.VerifySignatures() {
		if err := sync.VerifySignature(s.cfg.ClientSecret, r.Method, requestURL(r), body, r.Header); err != nil {
			s.logger.Printf("Webhook signature rejected: %v", err)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
	} else if s.cfg.ClientSecret == "" && !s.cfg.SkipSignatureVerification {
		s.logger.Printf("Warning: no client secret set - skipping signature verification")
	}

	events, err := sync.ParseEvents(body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	results := []sync.Outcome{}
	for _, event := range events {
		if !event.Recognized() {
			continue
		}
		s.logger.Printf("Received webhook: %s for contact %s", event.SubscriptionType, event.ObjectID)
		if event.SubscriptionType == sync.SubscriptionFormSubmitted && !s.cfg.FormAllowed(event.FormID) {
			s.logger.Printf("Skipping form %s - not in filter list", event.FormID)
			results = append(results, sync.Outcome{
				ContactID: event.ObjectID,
				EventType: event.SubscriptionType,
				Status:    sync.StatusSkipped,
				Message:   fmt.Sprintf("Form %s not in filter", event.FormID),
			})
			continue
		}
		results = append(results, s.syncContact(r.Context(), event.ObjectID, event.SubscriptionType))
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Received:  len(events),
		Processed: len(results),
		Results:   results,
	})
}

// handleTestSync forces one sync, for manual testing.
func (s *Server) handleTestSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	if s.syncer() == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Tokens not configured"})
		return
	}
	outcome := s.syncContact(r.Context(), r.PathValue("contactId"), "manual_test")
	writeJSON(w, http.StatusOK, outcome)
}

// handleTestConnection probes both portals independently - a failure on
// one never hides the other's status.
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	probe := func(api *sync.HubSpotAPI) connectionStatus {
		if api == nil {
			return connectionStatus{Status: "error", Message: "token not configured"}
		}
		if err := api.Ping(r.Context()); err != nil {
			return connectionStatus{Status: "error", Message: err.Error()}
		}
		return connectionStatus{Status: "connected"}
	}
	writeJSON(w, http.StatusOK, map[string]connectionStatus{
		"source":      probe(s.source),
		"destination": probe(s.dest),
	})
}

func (s *Server) syncContact(ctx context.Context, contactID string, eventType string) sync.Outcome {
	syncer := s.syncer()
	if syncer == nil {
		return sync.Outcome{
			ContactID: contactID,
			EventType: eventType,
			Status:    sync.StatusError,
			Message:   "Tokens not configured",
		}
	}
	outcome := syncer.SyncContact(ctx, contactID, eventType)
	syncOutcomesTotal.WithLabelValues(string(outcome.Status)).Inc()
	return outcome
}

// requestURL reconstructs the full URL the caller signed. The v3 signature
// scheme covers scheme and host, so honour the proxy headers set by the
// hosting platforms the relay deploys to.
func requestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
