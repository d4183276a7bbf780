// Package mail sends the end-of-session conversation summary over SMTP.
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	logx "github.com/advisor-core/server/pkg/logger"
)

// Config holds SMTP settings. Leaving Host empty disables summary emails.
type Config struct {
	Host     string `envconfig:"SMTP_HOST"`
	Port     int    `envconfig:"SMTP_PORT" default:"465"`
	Username string `envconfig:"SMTP_USERNAME"`
	Password string `envconfig:"SMTP_PASSWORD"`
	From     string `envconfig:"SMTP_FROM"`
	// SummaryTo receives the session summaries, typically the sales team inbox.
	SummaryTo string `envconfig:"SMTP_SUMMARY_TO"`
}

type Mailer struct {
	config Config
}

func NewMailer(config Config) *Mailer {
	return &Mailer{config: config}
}

// Enabled reports whether the mailer is configured to send anything.
func (m *Mailer) Enabled() bool {
	return m.config.Host != "" && m.config.From != "" && m.config.SummaryTo != ""
}

// SendSummary delivers the session summary for one thread.
func (m *Mailer) SendSummary(ctx context.Context, threadID string, summary string) error {
	if !m.Enabled() {
		return nil
	}

	opts := []gomail.Option{
		gomail.WithPort(m.config.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.config.Username),
		gomail.WithPassword(m.config.Password),
	}
	if m.config.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	}

	client, err := gomail.NewClient(m.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.config.From); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(m.config.SummaryTo); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(fmt.Sprintf("Conversation summary for session %s", threadID))
	msg.SetBodyString(gomail.TypeTextPlain, summary)

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send summary mail: %w", err)
	}

	logx.Debug().Str("thread_id", threadID).Msg("Session summary email sent")
	return nil
}
