// Package reprocess retries the pipeline for pending captures whose
// analysis is missing or degraded, for example after an AI provider outage.
package reprocess

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scottring/family-planner-sub006/pkg/capture"
)

// Store lists candidate items across owners.
type Store interface {
	PendingItems(ctx context.Context, olderThan time.Time, limit int) ([]*capture.Item, error)
}

// Reprocessor reruns OCR and analysis for one item.
type Reprocessor interface {
	Reprocess(ctx context.Context, id string) (*capture.Item, error)
}

// Service periodically reprocesses degraded captures.
type Service struct {
	store       Store
	manager     Reprocessor
	interval    time.Duration
	batch       int
	maxAttempts int
	attempts    *lru.Cache[string, int]
	logger      *slog.Logger
	now         func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

func WithBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batch = n
		}
	}
}

// WithMaxAttempts bounds how often one item is retried by this process.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a reprocessing loop.
func NewService(store Store, manager Reprocessor, interval time.Duration, opts ...Option) *Service {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s := &Service{
		store:       store,
		manager:     manager,
		interval:    interval,
		batch:       20,
		maxAttempts: 3,
		logger:      slog.Default(),
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.attempts, _ = lru.New[string, int](1024)
	s.logger = s.logger.With("component", "reprocess")
	return s
}

// Start begins the polling loop.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop stops the polling loop and waits for shutdown.
func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce reprocesses one batch and returns how many items were retried.
// Items are only picked up once their last analysis is at least one
// interval old.
func (s *Service) RunOnce(ctx context.Context) int {
	items, err := s.store.PendingItems(ctx, s.now().Add(-s.interval), s.batch)
	if err != nil {
		s.logger.Error("failed to list pending captures", "error", err)
		return 0
	}

	retried := 0
	for _, item := range items {
		if !capture.NeedsReprocess(item) {
			continue
		}
		n, _ := s.attempts.Get(item.ID)
		if n >= s.maxAttempts {
			continue
		}
		s.attempts.Add(item.ID, n+1)

		updated, err := s.manager.Reprocess(ctx, item.ID)
		if err != nil {
			s.logger.Warn("reprocess failed", "id", item.ID, "attempt", n+1, "error", err)
			continue
		}
		retried++
		if !capture.NeedsReprocess(updated) {
			s.attempts.Remove(item.ID)
			s.logger.Info("capture recovered", "id", item.ID, "attempt", n+1)
		}
	}
	return retried
}
