package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/switchboard/internal/directory"
	"github.com/nextlevelbuilder/switchboard/internal/identity"
	"github.com/nextlevelbuilder/switchboard/internal/message"
	"github.com/nextlevelbuilder/switchboard/internal/supervisor"
)

type fakeLink struct {
	ready    bool
	result   *supervisor.Result
	err      error
	smsCalls int
	emlCalls int
	lastUser string
}

func (f *fakeLink) Ready() bool { return f.ready }

func (f *fakeLink) SendSMSEvent(_ context.Context, _, _, _, user string) (*supervisor.Result, error) {
	f.smsCalls++
	f.lastUser = user
	return f.result, f.err
}

func (f *fakeLink) SendEmailEvent(_ context.Context, _, _, _, _, user string) (*supervisor.Result, error) {
	f.emlCalls++
	f.lastUser = user
	return f.result, f.err
}

type fakeAssistant struct {
	reply string
	err   error
	calls int
}

func (f *fakeAssistant) Reply(_ context.Context, _ string, _ *directory.Identity, _ message.Channel) (string, error) {
	f.calls++
	return f.reply, f.err
}

func testGate(t *testing.T) *identity.Resolver {
	t.Helper()
	store := directory.NewMemoryStore([]directory.Identity{
		{
			Name:      "Ada Lovelace",
			Username:  "ada",
			Phone:     "+15551230001",
			BossPhone: "+15551230002",
			Email:     "ada@example.com",
			BossEmail: "boss.ada@example.com",
		},
		{
			Name:      "Grace Hopper",
			Username:  "grace",
			Phone:     "+15551230003",
			BossPhone: "+15551230004",
			Email:     "grace@example.com",
			BossEmail: "boss.grace@example.com",
		},
	})
	return identity.NewResolver(store)
}

func smsMsg(from, to, content string) message.UnifiedMessage {
	return message.UnifiedMessage{
		Channel:   message.ChannelSMS,
		From:      from,
		To:        to,
		Content:   content,
		Metadata:  map[string]any{},
		Timestamp: time.Now(),
	}
}

func TestRouteRejectsUnknownSender(t *testing.T) {
	link := &fakeLink{ready: true}
	r := New(testGate(t), link, &fakeAssistant{})

	resp := r.Route(context.Background(), smsMsg("+15559990000", "+15551230002", "hello"))
	if resp.Success {
		t.Fatal("expected rejection for unknown sender")
	}
	if resp.Metadata["reason"] != "unknown_sender" {
		t.Fatalf("reason = %v, want unknown_sender", resp.Metadata["reason"])
	}
	if link.smsCalls != 0 {
		t.Fatal("rejected message must not reach the supervisor")
	}
}

func TestRouteRejectsCrossAccount(t *testing.T) {
	r := New(testGate(t), &fakeLink{ready: true}, &fakeAssistant{})

	// Ada's boss texting Grace's assistant number.
	resp := r.Route(context.Background(), smsMsg("+15551230002", "+15551230003", "hi"))
	if resp.Success {
		t.Fatal("expected cross-account rejection")
	}
	if resp.Metadata["reason"] != "account_mismatch" {
		t.Fatalf("reason = %v, want account_mismatch", resp.Metadata["reason"])
	}
}

func TestRouteRejectsEmptyContent(t *testing.T) {
	link := &fakeLink{ready: true}
	r := New(testGate(t), link, &fakeAssistant{})

	resp := r.Route(context.Background(), smsMsg("+15551230002", "+15551230001", "   \n\t"))
	if resp.Success {
		t.Fatal("expected rejection for empty content")
	}
	if resp.Metadata["reason"] != "empty_content" {
		t.Fatalf("reason = %v, want empty_content", resp.Metadata["reason"])
	}
	if link.smsCalls != 0 {
		t.Fatal("empty message must not reach the supervisor")
	}
}

func TestRouteRemoteReplyWins(t *testing.T) {
	link := &fakeLink{ready: true, result: &supervisor.Result{Acked: true, Reply: "done, deployed to prod"}}
	assistant := &fakeAssistant{reply: "local answer"}
	r := New(testGate(t), link, assistant)

	resp := r.Route(context.Background(), smsMsg("+15551230002", "+15551230001", "deploy the thing"))
	if !resp.Success {
		t.Fatalf("unexpected failure: %s", resp.Message)
	}
	if resp.Message != "done, deployed to prod" {
		t.Fatalf("message = %q", resp.Message)
	}
	if resp.Metadata["source"] != "supervisor" {
		t.Fatalf("source = %v, want supervisor", resp.Metadata["source"])
	}
	if link.lastUser != "ada" {
		t.Fatalf("supervisor event carried user %q, want ada", link.lastUser)
	}
	if assistant.calls != 0 {
		t.Fatal("remote reply must not invoke the assistant")
	}
}

func TestRouteBareAckFallsBackLocally(t *testing.T) {
	link := &fakeLink{ready: true, result: &supervisor.Result{Acked: true}}
	assistant := &fakeAssistant{reply: "local answer"}
	r := New(testGate(t), link, assistant)

	resp := r.Route(context.Background(), smsMsg("+15551230002", "+15551230001", "book a table"))
	if !resp.Success {
		t.Fatalf("unexpected failure: %s", resp.Message)
	}
	if resp.Message != "local answer" {
		t.Fatalf("message = %q, want local answer", resp.Message)
	}
	if resp.Metadata["source"] != "local" {
		t.Fatalf("source = %v, want local", resp.Metadata["source"])
	}
}

func TestRouteLinkErrorFallsBackLocally(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"timeout", supervisor.ErrRequestTimeout},
		{"not ready race", supervisor.ErrNotReady},
		{"remote error", &supervisor.RemoteError{Message: "boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := &fakeLink{ready: true, err: tt.err}
			assistant := &fakeAssistant{reply: "handled locally"}
			r := New(testGate(t), link, assistant)

			resp := r.Route(context.Background(), smsMsg("+15551230002", "+15551230001", "remind me later"))
			if !resp.Success {
				t.Fatalf("link error leaked to caller: %s", resp.Message)
			}
			if resp.Message != "handled locally" {
				t.Fatalf("message = %q", resp.Message)
			}
		})
	}
}

func TestRouteLinkDownSkipsRemote(t *testing.T) {
	link := &fakeLink{ready: false}
	assistant := &fakeAssistant{reply: "offline answer"}
	r := New(testGate(t), link, assistant)

	resp := r.Route(context.Background(), smsMsg("+15551230002", "+15551230001", "summarize my inbox"))
	if !resp.Success || resp.Message != "offline answer" {
		t.Fatalf("resp = %+v", resp)
	}
	if link.smsCalls != 0 {
		t.Fatal("must not dial a link that is not ready")
	}
}

func TestRouteCLIServedLocally(t *testing.T) {
	link := &fakeLink{ready: true, result: &supervisor.Result{Reply: "remote"}}
	assistant := &fakeAssistant{reply: "cli answer"}
	r := New(testGate(t), link, assistant)

	resp := r.Route(context.Background(), message.UnifiedMessage{
		Channel: message.ChannelCLI,
		From:    "ada",
		Content: "what's on my calendar",
	})
	if !resp.Success || resp.Message != "cli answer" {
		t.Fatalf("resp = %+v", resp)
	}
	if link.smsCalls != 0 || link.emlCalls != 0 {
		t.Fatal("cli traffic must never go over the link")
	}
}

func TestRouteEmailUsesEmailEvent(t *testing.T) {
	link := &fakeLink{ready: true, result: &supervisor.Result{Reply: "scheduled", Subject: "Re: standup"}}
	r := New(testGate(t), link, &fakeAssistant{})

	msg := message.UnifiedMessage{
		Channel:  message.ChannelEmail,
		From:     "boss.ada@example.com",
		To:       "ada@example.com",
		Content:  "move standup to 10",
		Metadata: map[string]any{"subject": "standup"},
	}
	resp := r.Route(context.Background(), msg)
	if !resp.Success {
		t.Fatalf("unexpected failure: %s", resp.Message)
	}
	if link.emlCalls != 1 || link.smsCalls != 0 {
		t.Fatalf("email calls = %d, sms calls = %d", link.emlCalls, link.smsCalls)
	}
	if resp.Metadata["subject"] != "Re: standup" {
		t.Fatalf("subject = %v", resp.Metadata["subject"])
	}
}

func TestRouteBossContextFlagsMetadata(t *testing.T) {
	assistant := &fakeAssistant{reply: "on it"}
	r := New(testGate(t), &fakeLink{}, assistant)

	resp := r.Route(context.Background(), smsMsg("+15551230002", "+15551230001", "order flowers"))
	if resp.Metadata["boss_context"] != true {
		t.Fatalf("boss_context = %v, want true", resp.Metadata["boss_context"])
	}
}

func TestRouteStatusAndHelpBypassAssistant(t *testing.T) {
	assistant := &fakeAssistant{}
	r := New(testGate(t), &fakeLink{ready: false}, assistant)

	status := r.Route(context.Background(), smsMsg("+15551230001", "+15551230002", "status"))
	if !status.Success || status.Message == "" {
		t.Fatalf("status resp = %+v", status)
	}

	help := r.Route(context.Background(), smsMsg("+15551230001", "+15551230002", "help"))
	if !help.Success || help.Message == "" {
		t.Fatalf("help resp = %+v", help)
	}
	if assistant.calls != 0 {
		t.Fatal("quick commands must not invoke the assistant")
	}
}

func TestRouteAssistantErrorIsApologetic(t *testing.T) {
	assistant := &fakeAssistant{err: errors.New("model unavailable")}
	r := New(testGate(t), &fakeLink{}, assistant)

	resp := r.Route(context.Background(), smsMsg("+15551230001", "+15551230002", "write a haiku"))
	if resp.Success {
		t.Fatal("assistant error must surface as failure")
	}
	if resp.Metadata["reason"] != "assistant_error" {
		t.Fatalf("reason = %v", resp.Metadata["reason"])
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		content string
		want    Category
	}{
		{"status", CategoryStatus},
		{"Status?", CategoryStatus},
		{"are you up", CategoryStatus},
		{"ping", CategoryStatus},
		{"help", CategoryHelp},
		{"what can you do", CategoryHelp},
		{"helpful tips please", CategoryGeneral},
		{"book me a flight", CategoryGeneral},
		{"", CategoryGeneral},
	}
	for _, tt := range tests {
		if got := Classify(tt.content); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}
