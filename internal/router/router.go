// Package router decides remote-vs-local processing for a normalized
// message and produces the UnifiedResponse. Authorization and empty-content
// checks happen locally before any network call; link failures are converted
// into local fallback, never surfaced raw to the calling channel.
package router

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/switchboard/internal/directory"
	"github.com/nextlevelbuilder/switchboard/internal/identity"
	"github.com/nextlevelbuilder/switchboard/internal/message"
	"github.com/nextlevelbuilder/switchboard/internal/supervisor"
)

// SupervisorLink is the slice of the link the router depends on.
type SupervisorLink interface {
	Ready() bool
	SendSMSEvent(ctx context.Context, from, to, body, user string) (*supervisor.Result, error)
	SendEmailEvent(ctx context.Context, from, to, subject, body, user string) (*supervisor.Result, error)
}

// Assistant is the external AI/task subsystem that produces answer text for
// messages the quick-command classifier does not handle.
type Assistant interface {
	Reply(ctx context.Context, content string, user *directory.Identity, channel message.Channel) (string, error)
}

// Router composes the authorization gate, the supervisor link, and the local
// fallback handlers.
type Router struct {
	gate      *identity.Resolver
	link      SupervisorLink
	assistant Assistant
	tracer    trace.Tracer
}

// New builds a Router. link and assistant may not be nil.
func New(gate *identity.Resolver, link SupervisorLink, assistant Assistant) *Router {
	return &Router{
		gate:      gate,
		link:      link,
		assistant: assistant,
		tracer:    otel.Tracer("switchboard/router"),
	}
}

// Route processes one message end to end and always returns a response for
// the originating channel.
func (r *Router) Route(ctx context.Context, msg message.UnifiedMessage) message.UnifiedResponse {
	ctx, span := r.tracer.Start(ctx, "router.route",
		trace.WithAttributes(attribute.String("channel", string(msg.Channel))))
	defer span.End()

	user, reason, err := r.gate.Authorize(ctx, msg)
	if err != nil {
		slog.Error("authorization lookup failed", "channel", msg.Channel, "error", err)
		return reject(msg, "Unable to verify sender right now. Please try again.", "directory_error")
	}
	if reason != identity.RejectNone {
		slog.Info("message rejected", "channel", msg.Channel, "reason", reason)
		return reject(msg, rejectionText(reason), string(reason))
	}

	if strings.TrimSpace(msg.Content) == "" {
		return reject(msg, "Empty message received. Send some text and I'll get to work.", "empty_content")
	}

	if resp, ok := r.dispatchRemote(ctx, msg, user); ok {
		span.SetAttributes(attribute.String("source", "supervisor"))
		return resp
	}

	span.SetAttributes(attribute.String("source", "local"))
	return r.handleLocally(ctx, msg, user)
}

// dispatchRemote forwards sms/email events over the link when it is Ready.
// Only a non-empty reply payload counts as handled; bare acknowledgments,
// timeouts, and link errors all fall through to local processing.
func (r *Router) dispatchRemote(ctx context.Context, msg message.UnifiedMessage, user *directory.Identity) (message.UnifiedResponse, bool) {
	if !r.link.Ready() {
		return message.UnifiedResponse{}, false
	}

	var (
		res *supervisor.Result
		err error
	)
	switch msg.Channel {
	case message.ChannelSMS:
		res, err = r.link.SendSMSEvent(ctx, msg.From, msg.To, msg.Content, user.Username)
	case message.ChannelEmail:
		res, err = r.link.SendEmailEvent(ctx, msg.From, msg.To, msg.Meta("subject"), msg.Content, user.Username)
	default:
		// The wire protocol defines no envelope for cli/api events;
		// those are always served locally.
		return message.UnifiedResponse{}, false
	}

	if err != nil {
		slog.Warn("supervisor dispatch failed, falling back to local handling",
			"channel", msg.Channel, "user", user.Username, "error", err)
		return message.UnifiedResponse{}, false
	}
	if res.Reply == "" {
		slog.Debug("supervisor acknowledged without payload", "channel", msg.Channel, "user", user.Username)
		return message.UnifiedResponse{}, false
	}

	resp := respond(msg, res.Reply, "supervisor", user)
	if res.Subject != "" {
		resp.Metadata["subject"] = res.Subject
	}
	return resp, true
}

// handleLocally answers quick commands synchronously and delegates the rest
// to the assistant. Classification never errors; an assistant failure is the
// only failure-shaped local outcome.
func (r *Router) handleLocally(ctx context.Context, msg message.UnifiedMessage, user *directory.Identity) message.UnifiedResponse {
	switch Classify(msg.Content) {
	case CategoryStatus:
		return respond(msg, r.statusText(), "local", user)
	case CategoryHelp:
		return respond(msg, helpText, "local", user)
	}

	reply, err := r.assistant.Reply(ctx, msg.Content, user, msg.Channel)
	if err != nil {
		slog.Error("assistant failed", "channel", msg.Channel, "user", user.Username, "error", err)
		return reject(msg, "Sorry, I couldn't process that right now. Please try again in a moment.", "assistant_error")
	}
	return respond(msg, reply, "local", user)
}

func (r *Router) statusText() string {
	if r.link.Ready() {
		return "All systems operational. Connected to the processing service."
	}
	return "Running in standalone mode. The processing service is currently unreachable; core commands still work."
}

const helpText = "You can text me anything and I'll handle it. Quick commands: " +
	"'status' checks service health, 'help' shows this message. " +
	"Everything else goes to your assistant."

func respond(msg message.UnifiedMessage, text, source string, user *directory.Identity) message.UnifiedResponse {
	meta := map[string]any{"source": source}
	if user != nil && user.BossContext {
		meta["boss_context"] = true
	}
	return message.UnifiedResponse{
		Success:  true,
		Message:  text,
		Metadata: meta,
		Channel:  msg.Channel,
	}
}

func reject(msg message.UnifiedMessage, text, reason string) message.UnifiedResponse {
	return message.UnifiedResponse{
		Success:  false,
		Message:  text,
		Metadata: map[string]any{"reason": reason},
		Channel:  msg.Channel,
	}
}

func rejectionText(reason identity.RejectReason) string {
	switch reason {
	case identity.RejectUnknownSender:
		return "Sorry, I don't recognize this sender."
	case identity.RejectUnknownRecipient:
		return "This number or address isn't assigned to an assistant."
	case identity.RejectAccountMismatch:
		return "This sender isn't authorized for that assistant."
	case identity.RejectUnknownChannel:
		return "Unsupported channel."
	case identity.RejectUnsupportedChannel:
		return "This channel isn't supported yet."
	}
	return "Not authorized."
}
