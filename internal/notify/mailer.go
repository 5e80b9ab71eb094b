package notify

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/farellandr/showticket/internal/log"
	gomail "github.com/wneessen/go-mail"
)

type Mail struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// Timeout bounds the whole exchange with the server, greeting included.
	Timeout time.Duration
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type SMTPMailer struct {
	config SMTPConfig
}

func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	if config.Port == 0 {
		config.Port = 587
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &SMTPMailer{config: config}
}

func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if strings.TrimSpace(mail.To) == "" {
		return fmt.Errorf("smtp: empty recipient")
	}

	msg, err := m.message(mail)
	if err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	client, err := m.client()
	if err != nil {
		return fmt.Errorf("smtp: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- client.DialAndSendWithContext(ctx, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp: %w", ctx.Err())
	}
}

func (m *SMTPMailer) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(m.config.Port),
		gomail.WithTimeout(m.config.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithDialContextFunc(m.dial),
	}
	if m.config.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.config.Username),
			gomail.WithPassword(m.config.Password),
		)
	}
	return gomail.NewClient(m.config.Host, opts...)
}

// dial puts a deadline on the connection so a server that never answers
// cannot hold the sender past the timeout.
func (m *SMTPMailer) dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: m.config.Timeout}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(m.config.Timeout)); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (m *SMTPMailer) message(mail Mail) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if m.config.FromName != "" {
		if err := msg.FromFormat(m.config.FromName, m.config.From); err != nil {
			return nil, err
		}
	} else if err := msg.From(m.config.From); err != nil {
		return nil, err
	}
	if err := msg.To(mail.To); err != nil {
		return nil, err
	}
	msg.Subject(mail.Subject)
	msg.SetDate()
	msg.SetBodyString(gomail.TypeTextPlain, mail.Body)
	return msg, nil
}

// LogMailer stands in for SMTP in development.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, mail Mail) error {
	log.FromContext(ctx).WithField("to", mail.To).WithField("subject", mail.Subject).Info("Mail not sent, SMTP is not configured")
	return nil
}
