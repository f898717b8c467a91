package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"

	corenotify "github.com/artpar/hostprov/internal/core/notify"
)

// TLS modes supported by the SMTP sender.
const (
	TLSModeSTARTTLS = "starttls"
	TLSModeTLS      = "tls"
	TLSModePlain    = "plain"
)

// SMTPConfig holds SMTP relay configuration.
type SMTPConfig struct {
	Host         string
	Port         int
	Username     string // empty disables AUTH
	Password     string
	TLSMode      string
	SenderEmail  string
	SupportEmail string
	Timeout      time.Duration
}

// SMTPSender delivers through an SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	auth   smtp.Auth
	logger *slog.Logger
}

// NewSMTPSender creates an SMTP-backed sender.
func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: smtp host is required", ErrInvalidConfig)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: smtp port must be between 1 and 65535", ErrInvalidConfig)
	}
	switch cfg.TLSMode {
	case TLSModeSTARTTLS, TLSModeTLS, TLSModePlain:
	case "":
		cfg.TLSMode = TLSModeSTARTTLS
	default:
		return nil, fmt.Errorf("%w: smtp tls mode must be starttls, tls, or plain", ErrInvalidConfig)
	}
	if !isValidEmail(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: sender email must be a valid email address", ErrInvalidConfig)
	}
	if cfg.SupportEmail == "" {
		cfg.SupportEmail = cfg.SenderEmail
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &SMTPSender{cfg: cfg, logger: logger.With("component", "smtp_sender")}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s, nil
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg corenotify.Message) (Ack, error) {
	if err := ctx.Err(); err != nil {
		return Ack{}, errors.Join(ErrSendFailed, err)
	}
	if err := Validate(msg); err != nil {
		return Ack{}, err
	}

	id := uuid.New().String()
	body, err := s.buildMessage(id, msg)
	if err != nil {
		return Ack{}, errors.Join(ErrSendFailed, err)
	}

	if err := s.deliver(ctx, msg.To, body); err != nil {
		return Ack{}, errors.Join(ErrSendFailed, err)
	}

	s.logger.Info("email sent", "tag", msg.Tag, "message_id", id)
	return Ack{ID: id, Transport: TransportSMTP}, nil
}

// buildMessage renders a multipart/alternative MIME message.
func (s *SMTPSender) buildMessage(id string, msg corenotify.Message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := []struct{ k, v string }{
		{"From", s.cfg.SenderEmail},
		{"To", msg.To},
		{"Reply-To", s.cfg.SupportEmail},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@%s>", id, s.cfg.Host)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/alternative; boundary=" + mw.Boundary()},
	}
	var head bytes.Buffer
	for _, h := range headers {
		fmt.Fprintf(&head, "%s: %s\r\n", h.k, h.v)
	}
	head.WriteString("\r\n")

	for _, part := range []struct{ ctype, content string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		if part.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.ctype},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return append(head.Bytes(), buf.Bytes()...), nil
}

func (s *SMTPSender) deliver(ctx context.Context, to string, body []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if s.cfg.TLSMode == TLSModeTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}
	defer client.Close()

	if s.cfg.TLSMode == TLSModeSTARTTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("start TLS: %w", err)
		}
	}
	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}
	if err := client.Mail(s.cfg.SenderEmail); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data writer: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}

	// Some servers drop the connection right after DATA; the message is accepted.
	_ = client.Quit()
	return nil
}
