package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/civicworks/townhall/pkg/clockx"
)

const DefaultReapInterval = time.Hour

// Reaper removes records that expired at or before now and reports how
// many it removed.
type Reaper interface {
	Reap(ctx context.Context, now time.Time) (int, error)
}

// HousekeepingService periodically reaps expired revocations, QR sessions
// and reset codes. It runs off the request path; lookups stay correct
// without it because every record is checked against its deadline on use.
type HousekeepingService struct {
	Reapers  map[string]Reaper
	Logger   *slog.Logger
	Clock    clockx.Clock
	Interval time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	onSweep func(removed int)
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to one hour.
func NewHousekeepingService(
	reapers map[string]Reaper,
	logger *slog.Logger,
	clock clockx.Clock,
	interval time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &HousekeepingService{
		Reapers:  reapers,
		Logger:   logger,
		Clock:    clockOrReal(clock),
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", slog.Duration("interval", s.Interval))
}

// Stop blocks until any sweep in progress has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := s.Clock.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs every reaper once against the current time. A failing reaper
// does not stop the others.
func (s *HousekeepingService) Sweep(ctx context.Context) int {
	now := s.Clock.Now()
	total := 0

	for name, r := range s.Reapers {
		n, err := r.Reap(ctx, now)
		if err != nil {
			s.Logger.Error("reap failed", slog.String("store", name), slog.Any("error", err))
			continue
		}
		if n > 0 {
			s.Logger.Debug("reaped expired records", slog.String("store", name), slog.Int("count", n))
		}
		total += n
	}

	s.Logger.Info("housekeeping sweep completed", slog.Int("removed", total))
	if s.onSweep != nil {
		s.onSweep(total)
	}
	return total
}
