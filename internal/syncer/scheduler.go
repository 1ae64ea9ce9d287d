package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SchedulerHandle triggers periodic delta syncs on a single timer. It is an
// explicit, injectable handle owning its own start/stop lifecycle — there
// is no package-level scheduler state. Overlapping triggers are suppressed
// by the service's per-type in-flight flag, not queued.
type SchedulerHandle struct {
	svc      *Service
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	ticker *time.Ticker
	stopCh chan struct{}
	cancel context.CancelFunc
}

func NewScheduler(svc *Service, interval time.Duration, log zerolog.Logger) *SchedulerHandle {
	return &SchedulerHandle{
		svc:      svc,
		interval: interval,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the periodic delta sync loop. Starting a running scheduler
// restarts it.
func (h *SchedulerHandle) Start(ctx context.Context) error {
	if h.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}
	h.Stop()

	h.mu.Lock()
	h.ticker = time.NewTicker(h.interval)
	h.stopCh = make(chan struct{})
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	ticker, stopCh := h.ticker, h.stopCh
	h.mu.Unlock()

	h.log.Info().Dur("interval", h.interval).Msg("scheduler started")
	go func() {
		for {
			select {
			case <-ticker.C:
				if _, err := h.svc.SyncAll(runCtx, true); err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					h.log.Error().Err(err).Msg("scheduled sync failed")
				}
			case <-runCtx.Done():
				return
			case <-stopCh:
				return
			}
		}
	}()
	return nil
}

// Stop halts the loop. Safe to call on a stopped scheduler.
func (h *SchedulerHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ticker != nil {
		h.ticker.Stop()
		h.ticker = nil
	}
	if h.stopCh != nil {
		close(h.stopCh)
		h.stopCh = nil
	}
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}
