package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// DefaultSMTPPort is used when no port is configured.
const DefaultSMTPPort = 587

// EmailNotifier sends plain-text mail over SMTP via go-mail.
type EmailNotifier struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
	timeout   time.Duration
}

// NewEmailNotifier creates an EmailNotifier with the given SMTP credentials.
func NewEmailNotifier(host string, port int, username, password, fromEmail string) *EmailNotifier {
	if port == 0 {
		port = DefaultSMTPPort
	}
	return &EmailNotifier{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
		fromName:  "IntakeLine",
		timeout:   15 * time.Second,
	}
}

func (e *EmailNotifier) message(to, subject, body string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(e.fromName, e.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return msg, nil
}

// Notify sends one email.
func (e *EmailNotifier) Notify(ctx context.Context, to, subject, body string) error {
	msg, err := e.message(to, subject, body)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(e.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(e.timeout),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if e.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(e.username),
			gomail.WithPassword(e.password),
		)
	}
	client, err := gomail.NewClient(e.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	slog.Debug("EmailNotifier.Notify: sent", "to", to, "subject", subject)
	return nil
}
