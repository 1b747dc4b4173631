// Package mailer delivers submission e-mails.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Attachment is a file sent with a message. Path takes precedence over Data.
type Attachment struct {
	Name        string
	ContentType string
	Path        string
	Data        []byte
}

// Message is one outgoing e-mail.
type Message struct {
	From        string
	FromName    string
	To          []string
	Cc          []string
	ReplyTo     string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Validate checks the fields every transport needs.
func (m Message) Validate() error {
	if strings.TrimSpace(m.From) == "" {
		return errors.New("mailer: sender is required")
	}
	if len(m.To) == 0 {
		return errors.New("mailer: at least one recipient is required")
	}
	return nil
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// DefaultTimeout bounds a single SMTP exchange.
const DefaultTimeout = 15 * time.Second

// SMTPMailer sends messages over SMTP.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
	tls      mail.TLSPolicy
	logger   *zap.SugaredLogger
}

// SMTPOption configures an SMTPMailer.
type SMTPOption func(*SMTPMailer)

// WithPort overrides the SMTP port.
func WithPort(port int) SMTPOption {
	return func(m *SMTPMailer) {
		if port > 0 {
			m.port = port
		}
	}
}

// WithAuth enables PLAIN authentication.
func WithAuth(username, password string) SMTPOption {
	return func(m *SMTPMailer) {
		m.username = username
		m.password = password
	}
}

// WithTimeout bounds connection and delivery.
func WithTimeout(timeout time.Duration) SMTPOption {
	return func(m *SMTPMailer) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithMandatoryTLS refuses to deliver without STARTTLS.
func WithMandatoryTLS() SMTPOption {
	return func(m *SMTPMailer) {
		m.tls = mail.TLSMandatory
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) SMTPOption {
	return func(m *SMTPMailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewSMTPMailer returns a mailer for host.
func NewSMTPMailer(host string, opts ...SMTPOption) (*SMTPMailer, error) {
	if strings.TrimSpace(host) == "" {
		return nil, errors.New("mailer: smtp host is required")
	}
	m := &SMTPMailer{
		host:    host,
		port:    587,
		timeout: DefaultTimeout,
		tls:     mail.TLSOpportunistic,
		logger:  zap.S(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	built, err := BuildMessage(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTimeout(m.timeout),
		mail.WithTLSPolicy(m.tls),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}
	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("mailer: client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, built); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	m.logger.Debugw("mail sent", "to", msg.To, "subject", msg.Subject, "attachments", len(msg.Attachments))
	return nil
}

// BuildMessage converts msg into a go-mail message.
func BuildMessage(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	var err error
	if msg.FromName != "" {
		err = out.FromFormat(msg.FromName, msg.From)
	} else {
		err = out.From(msg.From)
	}
	if err != nil {
		return nil, fmt.Errorf("mailer: sender: %w", err)
	}
	if err := out.To(msg.To...); err != nil {
		return nil, fmt.Errorf("mailer: recipients: %w", err)
	}
	if len(msg.Cc) > 0 {
		if err := out.Cc(msg.Cc...); err != nil {
			return nil, fmt.Errorf("mailer: cc: %w", err)
		}
	}
	if msg.ReplyTo != "" {
		if err := out.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("mailer: reply-to: %w", err)
		}
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetMessageID()
	out.SetBodyString(mail.TypeTextPlain, msg.Body)

	for _, att := range msg.Attachments {
		fileOpts := []mail.FileOption{}
		if att.ContentType != "" {
			fileOpts = append(fileOpts, mail.WithFileContentType(mail.ContentType(att.ContentType)))
		}
		switch {
		case att.Path != "":
			if att.Name != "" {
				fileOpts = append(fileOpts, mail.WithFileName(att.Name))
			}
			out.AttachFile(att.Path, fileOpts...)
		default:
			out.AttachReadSeeker(att.Name, bytes.NewReader(att.Data), fileOpts...)
		}
	}
	return out, nil
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	Logger *zap.SugaredLogger
}

// Send implements Mailer.
func (m LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	logger := m.Logger
	if logger == nil {
		logger = zap.S()
	}
	logger.Infow("mail captured",
		"from", msg.From,
		"to", msg.To,
		"cc", msg.Cc,
		"replyTo", msg.ReplyTo,
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
	)
	return nil
}
