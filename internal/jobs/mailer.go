package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	TLS      bool
}

// Mailer delivers transactional email over SMTP. It dials per send; invite
// traffic is sporadic and a persistent connection is not worth keeping.
type Mailer struct {
	cfg SMTPConfig
}

// NewMailer constructs a Mailer.
func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Send delivers one plaintext email.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	// Strip CR/LF from the subject to prevent header injection.
	subject = strings.NewReplacer("\r", "", "\n", "").Replace(subject)

	msg := mail.NewMsg()
	if err := msg.FromFormat("HavenLink", m.cfg.From); err != nil {
		return fmt.Errorf("mailer: set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mailer: set to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
	}
	if m.cfg.Username != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain))
		opts = append(opts, mail.WithUsername(m.cfg.Username))
		opts = append(opts, mail.WithPassword(m.cfg.Password))
	}
	if m.cfg.TLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mailer: create client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}
