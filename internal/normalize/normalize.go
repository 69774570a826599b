// Package normalize maps each channel's native payload into a
// message.UnifiedMessage. Mapping is lossy-tolerant on purpose: missing
// fields degrade to empty strings, and validation is left to the
// authorization gate so a malformed webhook never errors here.
package normalize

import (
	"net/mail"
	"net/url"
	"time"

	"github.com/nextlevelbuilder/switchboard/internal/message"
)

// APIRequest is the CLI/API JSON request body.
type APIRequest struct {
	From          string `json:"from"`
	To            string `json:"to,omitempty"`
	Content       string `json:"content"`
	Channel       string `json:"channel,omitempty"`
	UserAgent     string `json:"userAgent,omitempty"`
	ClientVersion string `json:"clientVersion,omitempty"`
}

// FromAPIRequest normalizes a CLI/API request. An empty or unknown
// requested channel defaults to cli.
func FromAPIRequest(req APIRequest) message.UnifiedMessage {
	ch := message.Channel(req.Channel)
	if !message.Known(ch) {
		ch = message.ChannelCLI
	}

	meta := map[string]any{}
	if req.UserAgent != "" {
		meta["user_agent"] = req.UserAgent
	}
	if req.ClientVersion != "" {
		meta["client_version"] = req.ClientVersion
	}

	return message.UnifiedMessage{
		Channel:   ch,
		From:      req.From,
		To:        req.To,
		Content:   req.Content,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	}
}

// FromSMSForm normalizes a Twilio-style inbound SMS webhook form.
func FromSMSForm(form url.Values) message.UnifiedMessage {
	meta := map[string]any{}
	for formKey, metaKey := range map[string]string{
		"MessageSid":  "message_sid",
		"FromCity":    "from_city",
		"FromState":   "from_state",
		"FromCountry": "from_country",
	} {
		if v := form.Get(formKey); v != "" {
			meta[metaKey] = v
		}
	}

	return message.UnifiedMessage{
		Channel:   message.ChannelSMS,
		From:      form.Get("From"),
		To:        form.Get("To"),
		Content:   form.Get("Body"),
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	}
}

// FromEmailForm normalizes an inbound-parse email webhook form.
// From/to headers may carry display names ("Ada <ada@example.com>"); the
// bare address is extracted when parseable, the raw value kept otherwise.
func FromEmailForm(form url.Values) message.UnifiedMessage {
	meta := map[string]any{
		"subject": form.Get("subject"),
	}
	if v := form.Get("html"); v != "" {
		meta["html"] = v
	}

	return message.UnifiedMessage{
		Channel:   message.ChannelEmail,
		From:      bareAddress(form.Get("from")),
		To:        bareAddress(form.Get("to")),
		Content:   form.Get("text"),
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	}
}

func bareAddress(raw string) string {
	if raw == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(raw); err == nil {
		return addr.Address
	}
	return raw
}
