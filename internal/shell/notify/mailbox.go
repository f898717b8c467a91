package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	corenotify "github.com/artpar/hostprov/internal/core/notify"
)

// MailboxSender is a disposable inspection mailbox for non-production use.
// Each message is written to dir as <stamp>_<tag>_<id>.html, .txt and .json.
type MailboxSender struct {
	dir    string
	now    func() time.Time
	mu     sync.Mutex
	logger *slog.Logger
}

// NewMailboxSender creates an inspection mailbox rooted at dir.
func NewMailboxSender(dir string, logger *slog.Logger) *MailboxSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailboxSender{dir: dir, now: time.Now, logger: logger.With("component", "mailbox_sender")}
}

// MailboxEntry is the JSON metadata written next to each message.
type MailboxEntry struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Tag       string `json:"tag,omitempty"`
	HTMLFile  string `json:"html_file,omitempty"`
	TextFile  string `json:"text_file,omitempty"`
}

// Send implements Sender.
func (m *MailboxSender) Send(_ context.Context, msg corenotify.Message) (Ack, error) {
	if err := Validate(msg); err != nil {
		return Ack{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return Ack{}, fmt.Errorf("%w: create mailbox directory: %v", ErrSendFailed, err)
	}

	id := uuid.New().String()
	now := m.now()
	identifier := msg.Tag
	if identifier == "" {
		identifier = msg.Subject
	}
	base := fmt.Sprintf("%s_%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(identifier), id[:8])

	entry := MailboxEntry{
		ID:        id,
		Timestamp: now.Format(time.RFC3339),
		To:        msg.To,
		Subject:   msg.Subject,
		Tag:       msg.Tag,
	}
	if msg.HTML != "" {
		entry.HTMLFile = base + ".html"
		if err := os.WriteFile(filepath.Join(m.dir, entry.HTMLFile), []byte(msg.HTML), 0o644); err != nil {
			return Ack{}, fmt.Errorf("%w: write html: %v", ErrSendFailed, err)
		}
	}
	if msg.Text != "" {
		entry.TextFile = base + ".txt"
		if err := os.WriteFile(filepath.Join(m.dir, entry.TextFile), []byte(msg.Text), 0o644); err != nil {
			return Ack{}, fmt.Errorf("%w: write text: %v", ErrSendFailed, err)
		}
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return Ack{}, fmt.Errorf("%w: marshal metadata: %v", ErrSendFailed, err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, base+".json"), data, 0o644); err != nil {
		return Ack{}, fmt.Errorf("%w: write metadata: %v", ErrSendFailed, err)
	}

	m.logger.Info("email stored in inspection mailbox", "tag", msg.Tag, "file", base)
	return Ack{ID: id, Transport: TransportMailbox}, nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
