// Package message defines the channel-agnostic representations that flow
// between the normalizer, router, and formatter. A UnifiedMessage is created
// per inbound event and discarded after its UnifiedResponse is rendered.
package message

import "time"

// Channel identifies the transport a message arrived on.
type Channel string

const (
	ChannelCLI   Channel = "cli"
	ChannelAPI   Channel = "api"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelVoice Channel = "voice" // reserved, not yet routed
)

// Known reports whether c is one of the supported channel values.
func Known(c Channel) bool {
	switch c {
	case ChannelCLI, ChannelAPI, ChannelSMS, ChannelEmail, ChannelVoice:
		return true
	}
	return false
}

// UnifiedMessage is the normalized form of an inbound event.
// Content may be empty but is never absent; channel is always a known value
// once the message has passed normalization.
type UnifiedMessage struct {
	Channel   Channel        `json:"channel"`
	From      string         `json:"from"`
	To        string         `json:"to,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// UnifiedResponse is the routing outcome for one UnifiedMessage.
// Channel always matches the originating message's channel.
type UnifiedResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Channel  Channel        `json:"channel"`
}

// Meta returns a string metadata value, or "" when absent or non-string.
func (m UnifiedMessage) Meta(key string) string {
	if m.Metadata == nil {
		return ""
	}
	if s, ok := m.Metadata[key].(string); ok {
		return s
	}
	return ""
}
