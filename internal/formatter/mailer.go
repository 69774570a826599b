package formatter

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/nextlevelbuilder/switchboard/internal/message"
)

// Mailer sends one outbound email. Implementations must be safe for
// concurrent use; replies are dispatched off the webhook goroutine.
type Mailer interface {
	Send(ctx context.Context, to, from, subject, body string) error
}

// EmailResponder turns a routed response into a reply mail addressed back to
// the original sender.
type EmailResponder struct {
	mailer Mailer
}

func NewEmailResponder(m Mailer) *EmailResponder {
	return &EmailResponder{mailer: m}
}

// SendReply mails the response to the original sender with a threaded
// subject, sent from the address the sender originally wrote to so each
// account's replies come from its own alias. A subject supplied by the
// routing outcome (supervisor replies carry one) wins over the derived
// "Re:" form. The webhook has usually already answered 200 by the time this
// runs, so the caller only learns about failures through the error return.
func (e *EmailResponder) SendReply(ctx context.Context, msg message.UnifiedMessage, resp message.UnifiedResponse) error {
	subject := ReplySubject(msg.Meta("subject"))
	if s, ok := resp.Metadata["subject"].(string); ok && s != "" {
		subject = s
	}
	if err := e.mailer.Send(ctx, msg.From, msg.To, subject, resp.Message); err != nil {
		return fmt.Errorf("formatter: reply to %s: %w", msg.From, err)
	}
	return nil
}

// SMTPMailer sends through a plain-auth SMTP relay.
type SMTPMailer struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
}

func (m *SMTPMailer) Send(_ context.Context, to, from, subject, body string) error {
	host := m.Addr
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}
	sender := from
	if sender == "" {
		sender = m.From
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", sender)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)

	if err := smtp.SendMail(m.Addr, auth, sender, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp %s: %w", m.Addr, err)
	}
	return nil
}

// LogMailer is the standalone-mode mailer: it records the reply instead of
// delivering it. Useful in development and as the default when no relay is
// configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, from, subject, body string) error {
	slog.Info("email reply (not delivered, no smtp relay configured)",
		"to", to, "from", from, "subject", subject, "bytes", len(body))
	return nil
}
