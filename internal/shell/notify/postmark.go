package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mrz1836/postmark"

	corenotify "github.com/artpar/hostprov/internal/core/notify"
)

// PostmarkConfig holds Postmark credentials and sender addresses.
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	SenderEmail  string
	SupportEmail string
	// BaseURL overrides the API endpoint, used in tests.
	BaseURL string
}

// PostmarkSender delivers through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
	cfg    PostmarkConfig
	logger *slog.Logger
}

// NewPostmarkSender creates a Postmark-backed sender.
func NewPostmarkSender(cfg PostmarkConfig, logger *slog.Logger) (*PostmarkSender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: postmark server token is required", ErrInvalidConfig)
	}
	if !isValidEmail(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: sender email must be a valid email address", ErrInvalidConfig)
	}
	if cfg.SupportEmail == "" {
		cfg.SupportEmail = cfg.SenderEmail
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := postmark.NewClient(cfg.ServerToken, cfg.AccountToken)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	return &PostmarkSender{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "postmark_sender"),
	}, nil
}

// Send implements Sender.
func (s *PostmarkSender) Send(ctx context.Context, msg corenotify.Message) (Ack, error) {
	if err := Validate(msg); err != nil {
		return Ack{}, err
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.cfg.SenderEmail,
		ReplyTo:    s.cfg.SupportEmail,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTML,
		TextBody:   msg.Text,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return Ack{}, errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return Ack{}, errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}

	s.logger.Info("email sent", "tag", msg.Tag, "message_id", resp.MessageID)
	return Ack{ID: resp.MessageID, Transport: TransportPostmark}, nil
}
