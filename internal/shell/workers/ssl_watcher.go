// Package workers contains background loops that follow up on provisioned accounts.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/artpar/hostprov/internal/core/domain"
	"github.com/artpar/hostprov/internal/shell/ssl"
)

// SSLRecordStore is the store subset the watcher needs.
type SSLRecordStore interface {
	ListSSLPending(ctx context.Context, limit int) ([]domain.ProvisionRecord, error)
	MarkSSLActive(ctx context.Context, id string, at time.Time) error
}

// SSLWatcherConfig configures the SSL watcher.
type SSLWatcherConfig struct {
	Interval      time.Duration
	InitialDelay  time.Duration
	MaxConcurrent int
	BatchSize     int
}

// DefaultSSLWatcherConfig returns default configuration.
func DefaultSSLWatcherConfig() SSLWatcherConfig {
	return SSLWatcherConfig{
		Interval:      15 * time.Minute,
		InitialDelay:  10 * time.Second,
		MaxConcurrent: 5,
		BatchSize:     200,
	}
}

// SSLWatcher re-probes accounts provisioned before their certificate was
// issued and flips the stored flag once HTTPS answers.
type SSLWatcher struct {
	store  SSLRecordStore
	probe  ssl.ProbeFunc
	config SSLWatcherConfig
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSSLWatcher creates a new SSL watcher.
func NewSSLWatcher(s SSLRecordStore, probe ssl.ProbeFunc, config SSLWatcherConfig, logger *slog.Logger) *SSLWatcher {
	def := DefaultSSLWatcherConfig()
	if config.Interval == 0 {
		config.Interval = def.Interval
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = def.MaxConcurrent
	}
	if config.BatchSize == 0 {
		config.BatchSize = def.BatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SSLWatcher{
		store:  s,
		probe:  probe,
		config: config,
		logger: logger.With("component", "ssl_watcher"),
		now:    time.Now,
	}
}

// Start begins the watcher background goroutine.
func (w *SSLWatcher) Start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.wg.Add(1)
	go w.run()
	w.logger.Info("SSL watcher started", "interval", w.config.Interval)
}

// Stop gracefully stops the watcher.
func (w *SSLWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("SSL watcher stopped")
}

func (w *SSLWatcher) run() {
	defer w.wg.Done()

	select {
	case <-w.ctx.Done():
		return
	case <-time.After(w.config.InitialDelay):
	}
	w.RunCycle(w.ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.RunCycle(w.ctx)
		}
	}
}

// RunCycle probes one batch of pending accounts and returns how many turned active.
func (w *SSLWatcher) RunCycle(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	pending, err := w.store.ListSSLPending(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to list SSL-pending accounts", "error", err)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	w.logger.Debug("probing SSL-pending accounts", "count", len(pending))

	sem := make(chan struct{}, w.config.MaxConcurrent)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		activated int
	)

	for i := range pending {
		wg.Add(1)
		go func(rec *domain.ProvisionRecord) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}
			if w.check(ctx, rec) {
				mu.Lock()
				activated++
				mu.Unlock()
			}
		}(&pending[i])
	}

	wg.Wait()
	return activated
}

func (w *SSLWatcher) check(ctx context.Context, rec *domain.ProvisionRecord) bool {
	if rec.Domain == "" {
		return false
	}
	res := w.probe(ctx, rec.Domain)
	if !res.HasSSL {
		w.logger.Debug("SSL still pending", "provision", rec.ID, "domain", rec.Domain, "detail", res.Detail)
		return false
	}

	if err := w.store.MarkSSLActive(ctx, rec.ID, w.now()); err != nil {
		w.logger.Error("failed to mark SSL active", "provision", rec.ID, "error", err)
		return false
	}
	w.logger.Info("SSL now active", "provision", rec.ID, "domain", rec.Domain)
	return true
}
