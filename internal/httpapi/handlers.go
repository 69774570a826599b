package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/switchboard/internal/formatter"
	"github.com/nextlevelbuilder/switchboard/internal/normalize"
)

const maxBodyBytes = 1 << 20

// handleMessages serves the cli/api JSON endpoint.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req normalize.APIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"success":false,"message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	resp := s.router.Route(r.Context(), normalize.FromAPIRequest(req))
	formatter.WriteJSON(w, resp)
}

// handleSMS serves the Twilio inbound-SMS webhook.
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	resp := s.router.Route(r.Context(), normalize.FromSMSForm(r.PostForm))
	formatter.WriteTwiML(w, resp)
}

// handleEmail serves the inbound-parse email webhook. The provider retries
// on any non-2xx, so the webhook always answers 200 once the form parses;
// the reply mail is dispatched off the request goroutine and failures only
// reach the log.
func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 8*maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}
	}

	msg := normalize.FromEmailForm(r.PostForm)
	resp := s.router.Route(r.Context(), msg)

	if resp.Message != "" {
		ctx := context.WithoutCancel(r.Context())
		go func() {
			if err := s.emailer.SendReply(ctx, msg, resp); err != nil {
				slog.Error("email reply delivery failed",
					"to", msg.From, "success", resp.Success, "error", err)
			}
		}()
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// handleHealth reports process liveness plus a link snapshot.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"link":   s.link.Stats(),
	})
}
