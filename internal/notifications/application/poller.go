package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	notifications "github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/domain"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/observability/metrics"
)

const defaultPollInterval = 30 * time.Second

// StatusProvider derives the alert status for one device and the caller
// carried in ctx.
type StatusProvider interface {
	StatusFor(ctx context.Context, deviceCode string) (notifications.AlertStatus, error)
}

// Poller drives repeated status evaluation on a fixed interval. Each
// subscription owns its own timer, so one slow device never delays another.
type Poller struct {
	provider StatusProvider
	interval time.Duration
	logger   *log.Logger
}

// NewPoller constructs a poller.
func NewPoller(provider StatusProvider, interval time.Duration, logger *log.Logger) (*Poller, error) {
	if provider == nil {
		return nil, errors.New("poller: nil status provider")
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{provider: provider, interval: interval, logger: logger}, nil
}

// Subscription is one caller's live view of one device's alert status.
type Subscription struct {
	updates chan notifications.AlertStatus
	cancel  context.CancelFunc

	mu          sync.Mutex
	closed      bool
	lastApplied uint64
}

// Subscribe starts polling deviceCode for the caller identified in ctx. The
// first evaluation runs immediately; later ones run every interval. The
// subscription ends when Close is called or ctx is cancelled.
func (p *Poller) Subscribe(ctx context.Context, deviceCode string) *Subscription {
	if p == nil || p.provider == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		updates: make(chan notifications.AlertStatus, 1),
		cancel:  cancel,
	}
	metrics.AddPollSubscribers(1)
	go p.loop(ctx, deviceCode, sub)
	return sub
}

// Updates returns the status stream. The channel holds only the newest
// status and is closed when the subscription ends.
func (s *Subscription) Updates() <-chan notifications.AlertStatus {
	if s == nil {
		return nil
	}
	return s.updates
}

// Close stops the subscription. Safe to call while an evaluation is in
// flight; its late result is discarded instead of applied.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.cancel()
}

func (p *Poller) loop(ctx context.Context, deviceCode string, sub *Subscription) {
	var seq uint64

	// Ticks run detached so a slow evaluation never blocks or skips the
	// next scheduled one. The sequence number keeps a late result from an
	// earlier tick from overwriting a newer applied status.
	tick := func() {
		seq++
		n := seq
		go func() {
			status, err := p.provider.StatusFor(ctx, deviceCode)
			if err != nil {
				metrics.IncPollResult(metrics.PollOutcomeError)
				if p.logger != nil && ctx.Err() == nil {
					p.logger.Printf("alert poll error: device=%s err=%v", deviceCode, err)
				}
				return
			}
			sub.apply(n, status)
		}()
	}

	tick()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sub.shutdown()
			return
		case <-ticker.C:
			tick()
		}
	}
}

func (s *Subscription) apply(n uint64, status notifications.AlertStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || n <= s.lastApplied {
		metrics.IncPollResult(metrics.PollOutcomeStale)
		return
	}
	s.lastApplied = n

	// Keep only the newest status: drop an unconsumed one before sending.
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- status:
	default:
	}
	metrics.IncPollResult(metrics.PollOutcomeApplied)
}

func (s *Subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)
	metrics.AddPollSubscribers(-1)
}
