// Package formatter renders a UnifiedResponse back into each channel's
// native format: JSON for cli/api, TwiML for SMS replies, and outbound mail
// for email. Rendering is read-only over the response so a retried webhook
// renders the same bytes.
package formatter

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/switchboard/internal/message"
)

// StatusFor maps a response to the HTTP status the cli/api and sms surfaces
// return. Authorization rejections are a hard 403 regardless of channel.
func StatusFor(resp message.UnifiedResponse) int {
	if resp.Success {
		return http.StatusOK
	}
	reason, _ := resp.Metadata["reason"].(string)
	switch reason {
	case "unknown_sender", "unknown_recipient", "account_mismatch":
		return http.StatusForbidden
	case "unknown_channel", "unsupported_channel", "empty_content":
		return http.StatusBadRequest
	case "directory_error":
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

type jsonEnvelope struct {
	message.UnifiedResponse
	Timestamp time.Time `json:"timestamp"`
}

// WriteJSON renders an api/cli response with its mapped status code.
func WriteJSON(w http.ResponseWriter, resp message.UnifiedResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(resp))
	_ = json.NewEncoder(w).Encode(jsonEnvelope{UnifiedResponse: resp, Timestamp: time.Now().UTC()})
}

// twimlResponse is the Twilio messaging reply document.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// RenderTwiML produces the SMS reply body. Failure responses still render a
// message so the sender learns why nothing happened; an empty message yields
// an empty <Response/> which tells Twilio to reply with nothing.
func RenderTwiML(resp message.UnifiedResponse) string {
	doc, err := xml.Marshal(twimlResponse{Message: resp.Message})
	if err != nil {
		// Marshal of a flat struct cannot realistically fail; keep the
		// webhook well-formed anyway.
		return xml.Header + "<Response></Response>"
	}
	return xml.Header + string(doc)
}

// WriteTwiML renders an SMS webhook response. Twilio treats non-2xx as
// delivery failure and retries, so rejections also answer 200 with the
// rejection text as the reply — except authorization failures, which get
// the hard 403 so a spoofing sender receives nothing.
func WriteTwiML(w http.ResponseWriter, resp message.UnifiedResponse) {
	w.Header().Set("Content-Type", "text/xml")
	if status := StatusFor(resp); status == http.StatusForbidden {
		w.WriteHeader(status)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, RenderTwiML(resp))
}

// ReplySubject derives the outbound subject from the inbound one, adding a
// single "Re:" prefix.
func ReplySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "Re: your message"
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
