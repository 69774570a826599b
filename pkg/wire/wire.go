// Package wire defines the supervisor wire protocol: JSON envelopes carried
// one-per-frame over the persistent WebSocket connection. Every envelope has
// a "type" discriminator; inbound frames are decoded once at the boundary
// into a closed set of concrete types so unknown kinds stay diagnosable
// instead of being silently dropped.
package wire

import (
	"encoding/json"
	"fmt"
)

// Envelope type discriminators.
const (
	TypeAuth          = "auth"
	TypeSMSReceived   = "sms_received"
	TypeEmailReceived = "email_received"
	TypePing          = "ping"

	TypeAuthResult          = "auth_result"
	TypeMessageAcknowledged = "message_acknowledged"
	TypeSendSMSResponse     = "send_sms_response"
	TypeSendEmailResponse   = "send_email_response"
	TypeError               = "error"
	TypePong                = "pong"
)

// --- Outbound envelopes (client → supervisor) ---

// Auth carries the bearer token sent immediately after connect.
type Auth struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// NewAuth builds an auth envelope for the given token.
func NewAuth(token string) Auth {
	return Auth{Type: TypeAuth, Token: token}
}

// SMSReceived forwards an inbound SMS to the supervisor.
type SMSReceived struct {
	Type    string `json:"type"`
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
	User    string `json:"user"`
}

// NewSMSReceived builds an sms_received envelope.
func NewSMSReceived(from, to, message, user string) SMSReceived {
	return SMSReceived{Type: TypeSMSReceived, From: from, To: to, Message: message, User: user}
}

// EmailReceived forwards an inbound email to the supervisor.
type EmailReceived struct {
	Type    string `json:"type"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	User    string `json:"user"`
}

// NewEmailReceived builds an email_received envelope.
func NewEmailReceived(from, to, subject, body, user string) EmailReceived {
	return EmailReceived{Type: TypeEmailReceived, From: from, To: to, Subject: subject, Body: body, User: user}
}

// Ping is the keepalive envelope. Fire-and-forget.
type Ping struct {
	Type string `json:"type"`
}

// NewPing builds a ping envelope.
func NewPing() Ping {
	return Ping{Type: TypePing}
}

// --- Inbound frames (supervisor → client) ---

// Frame is the closed union of inbound envelopes. Decode returns exactly one
// of: AuthResult, MessageAcknowledged, SendSMSResponse, SendEmailResponse,
// ErrorFrame, Pong, Unrecognized.
type Frame interface {
	frame()
}

// AuthResult reports the outcome of the authentication handshake.
type AuthResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MessageAcknowledged is a bare acknowledgment carrying no reply payload.
type MessageAcknowledged struct {
	MessageType string `json:"message_type"`
	User        string `json:"user"`
}

// SendSMSResponse is a final SMS reply addressed to a user.
type SendSMSResponse struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// SendEmailResponse is a final email reply addressed to a user.
type SendEmailResponse struct {
	User    string `json:"user"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ErrorFrame carries a supervisor-side error for a pending request.
type ErrorFrame struct {
	Message string `json:"message"`
}

// Pong answers a keepalive ping.
type Pong struct{}

// Unrecognized preserves frames whose type is outside the known set.
type Unrecognized struct {
	Type string
	Raw  json.RawMessage
}

func (AuthResult) frame()          {}
func (MessageAcknowledged) frame() {}
func (SendSMSResponse) frame()     {}
func (SendEmailResponse) frame()   {}
func (ErrorFrame) frame()          {}
func (Pong) frame()                {}
func (Unrecognized) frame()        {}

// Decode parses a raw inbound envelope into its concrete frame type.
// Unknown discriminators decode to Unrecognized; malformed JSON is an error.
func Decode(data []byte) (Frame, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("wire: parse envelope: %w", err)
	}

	switch head.Type {
	case TypeAuthResult:
		var f AuthResult
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("wire: parse %s: %w", head.Type, err)
		}
		return f, nil
	case TypeMessageAcknowledged:
		var f MessageAcknowledged
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("wire: parse %s: %w", head.Type, err)
		}
		return f, nil
	case TypeSendSMSResponse:
		var f SendSMSResponse
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("wire: parse %s: %w", head.Type, err)
		}
		return f, nil
	case TypeSendEmailResponse:
		var f SendEmailResponse
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("wire: parse %s: %w", head.Type, err)
		}
		return f, nil
	case TypeError:
		var f ErrorFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("wire: parse %s: %w", head.Type, err)
		}
		return f, nil
	case TypePong:
		return Pong{}, nil
	default:
		return Unrecognized{Type: head.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// Encode marshals an outbound envelope.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode envelope: %w", err)
	}
	return data, nil
}
