// Package notify delivers transactional email through a pluggable transport.
package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	corenotify "github.com/artpar/hostprov/internal/core/notify"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrInvalidConfig  = errors.New("invalid email configuration")
	ErrInvalidMessage = errors.New("invalid email message")
	ErrSendFailed     = errors.New("failed to send email")
)

// Transport names reported in acknowledgments.
const (
	TransportSMTP     = "smtp"
	TransportPostmark = "postmark"
	TransportMailbox  = "mailbox"
)

// Ack is the delivery acknowledgment returned by a transport.
type Ack struct {
	ID        string `json:"id"`
	Transport string `json:"transport"`
}

// Sender delivers a message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg corenotify.Message) (Ack, error)
}

// Validate checks the fields every transport needs.
func Validate(msg corenotify.Message) error {
	switch {
	case msg.To == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	case !isValidEmail(msg.To):
		return fmt.Errorf("%w: recipient %q is not an email address", ErrInvalidMessage, msg.To)
	case msg.Subject == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	case msg.HTML == "" && msg.Text == "":
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}
