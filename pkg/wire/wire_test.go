package wire

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Frame
	}{
		{
			"auth result success",
			`{"type":"auth_result","success":true,"message":"ok"}`,
			AuthResult{Success: true, Message: "ok"},
		},
		{
			"auth result failure",
			`{"type":"auth_result","success":false,"message":"bad token"}`,
			AuthResult{Success: false, Message: "bad token"},
		},
		{
			"acknowledgment",
			`{"type":"message_acknowledged","message_type":"sms_received","user":"alice"}`,
			MessageAcknowledged{MessageType: "sms_received", User: "alice"},
		},
		{
			"sms response",
			`{"type":"send_sms_response","user":"alice","message":"hi"}`,
			SendSMSResponse{User: "alice", Message: "hi"},
		},
		{
			"email response",
			`{"type":"send_email_response","user":"bob","subject":"Re: hello","message":"reply"}`,
			SendEmailResponse{User: "bob", Subject: "Re: hello", Message: "reply"},
		},
		{
			"error",
			`{"type":"error","message":"boom"}`,
			ErrorFrame{Message: "boom"},
		},
		{
			"pong",
			`{"type":"pong"}`,
			Pong{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeUnrecognized(t *testing.T) {
	got, err := Decode([]byte(`{"type":"shiny_new_thing","payload":42}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	u, ok := got.(Unrecognized)
	if !ok {
		t.Fatalf("expected Unrecognized, got %#v", got)
	}
	if u.Type != "shiny_new_thing" {
		t.Errorf("Type = %q", u.Type)
	}
	if !strings.Contains(string(u.Raw), "payload") {
		t.Errorf("Raw should preserve the original envelope, got %s", u.Raw)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestEncodeOutbound(t *testing.T) {
	data, err := Encode(NewSMSReceived("+15551234567", "+15559876543", "hello", "alice"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if m["type"] != TypeSMSReceived {
		t.Errorf("type = %v", m["type"])
	}
	if m["user"] != "alice" {
		t.Errorf("user = %v", m["user"])
	}

	data, err = Encode(NewAuth("dev-token-12345"))
	if err != nil {
		t.Fatalf("Encode auth: %v", err)
	}
	if !strings.Contains(string(data), `"type":"auth"`) || !strings.Contains(string(data), "dev-token-12345") {
		t.Errorf("auth envelope = %s", data)
	}
}
