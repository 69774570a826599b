package formatter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/switchboard/internal/message"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		resp message.UnifiedResponse
		want int
	}{
		{"success", message.UnifiedResponse{Success: true}, http.StatusOK},
		{"unknown sender", failResp("unknown_sender"), http.StatusForbidden},
		{"unknown recipient", failResp("unknown_recipient"), http.StatusForbidden},
		{"account mismatch", failResp("account_mismatch"), http.StatusForbidden},
		{"empty content", failResp("empty_content"), http.StatusBadRequest},
		{"unknown channel", failResp("unknown_channel"), http.StatusBadRequest},
		{"unsupported channel", failResp("unsupported_channel"), http.StatusBadRequest},
		{"directory down", failResp("directory_error"), http.StatusServiceUnavailable},
		{"assistant down", failResp("assistant_error"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.resp); got != tt.want {
				t.Fatalf("StatusFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func failResp(reason string) message.UnifiedResponse {
	return message.UnifiedResponse{Success: false, Metadata: map[string]any{"reason": reason}}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, message.UnifiedResponse{
		Success: true,
		Message: "done",
		Channel: message.ChannelAPI,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}
	var got struct {
		message.UnifiedResponse
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success || got.Message != "done" || got.Channel != message.ChannelAPI {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if got.Timestamp == "" {
		t.Fatal("response body must carry a timestamp")
	}
}

func TestRenderTwiMLEscapes(t *testing.T) {
	out := RenderTwiML(message.UnifiedResponse{Success: true, Message: `use <b> & "quotes"`})
	if !strings.Contains(out, "&lt;b&gt; &amp;") {
		t.Fatalf("markup not escaped: %s", out)
	}
	if !strings.HasPrefix(out, "<?xml") {
		t.Fatalf("missing xml header: %s", out)
	}
	if !strings.Contains(out, "<Response><Message>") {
		t.Fatalf("unexpected document shape: %s", out)
	}
}

func TestRenderTwiMLIsIdempotent(t *testing.T) {
	resp := message.UnifiedResponse{Success: true, Message: "on it"}
	if RenderTwiML(resp) != RenderTwiML(resp) {
		t.Fatal("repeated rendering must produce identical bytes")
	}
}

func TestWriteTwiMLAuthFailureIsSilent403(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteTwiML(rec, failResp("unknown_sender"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("spoofed sender must get no reply body, got %q", rec.Body.String())
	}
}

func TestWriteTwiMLRejectionStillReplies(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteTwiML(rec, message.UnifiedResponse{
		Success:  false,
		Message:  "Empty message received.",
		Metadata: map[string]any{"reason": "empty_content"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Empty message received.") {
		t.Fatalf("rejection text missing: %s", rec.Body.String())
	}
}

func TestReplySubject(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"standup", "Re: standup"},
		{"Re: standup", "Re: standup"},
		{"RE: standup", "RE: standup"},
		{"", "Re: your message"},
		{"  trimmed  ", "Re: trimmed"},
	}
	for _, tt := range tests {
		if got := ReplySubject(tt.in); got != tt.want {
			t.Errorf("ReplySubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type captureMailer struct {
	to, from, subject, body string
	err                     error
}

func (m *captureMailer) Send(_ context.Context, to, from, subject, body string) error {
	m.to, m.from, m.subject, m.body = to, from, subject, body
	return m.err
}

func TestEmailResponderThreadsReply(t *testing.T) {
	mailer := &captureMailer{}
	r := NewEmailResponder(mailer)

	msg := message.UnifiedMessage{
		Channel:  message.ChannelEmail,
		From:     "boss.ada@example.com",
		To:       "ada@example.com",
		Metadata: map[string]any{"subject": "quarterly numbers"},
	}
	err := r.SendReply(context.Background(), msg, message.UnifiedResponse{Success: true, Message: "attached"})
	if err != nil {
		t.Fatalf("SendReply: %v", err)
	}
	if mailer.to != "boss.ada@example.com" {
		t.Fatalf("reply went to %q", mailer.to)
	}
	if mailer.from != "ada@example.com" {
		t.Fatalf("reply sent from %q, want the address the sender wrote to", mailer.from)
	}
	if mailer.subject != "Re: quarterly numbers" {
		t.Fatalf("subject = %q", mailer.subject)
	}
	if mailer.body != "attached" {
		t.Fatalf("body = %q", mailer.body)
	}
}

func TestEmailResponderPrefersProvidedSubject(t *testing.T) {
	mailer := &captureMailer{}
	r := NewEmailResponder(mailer)

	msg := message.UnifiedMessage{
		Channel:  message.ChannelEmail,
		From:     "boss.ada@example.com",
		To:       "ada@example.com",
		Metadata: map[string]any{"subject": "quarterly numbers"},
	}
	resp := message.UnifiedResponse{
		Success:  true,
		Message:  "numbers attached",
		Metadata: map[string]any{"subject": "Re: Q3 actuals"},
	}
	if err := r.SendReply(context.Background(), msg, resp); err != nil {
		t.Fatalf("SendReply: %v", err)
	}
	if mailer.subject != "Re: Q3 actuals" {
		t.Fatalf("subject = %q, want the one the routing outcome supplied", mailer.subject)
	}
}

func TestEmailResponderWrapsSendError(t *testing.T) {
	sentinel := errors.New("relay refused")
	r := NewEmailResponder(&captureMailer{err: sentinel})

	err := r.SendReply(context.Background(), message.UnifiedMessage{From: "a@b.c"}, message.UnifiedResponse{})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want wrapped sentinel", err)
	}
}
