package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

const (
	DefaultInterval = 5 * time.Second
	// cron's @every resolution.
	MinInterval = time.Second
)

var ErrInvalidInterval = errors.New("refresh interval must be at least 1s")

type generator interface {
	Snapshot() *model.Snapshot
}

type publisher interface {
	PublishSnapshot(ctx context.Context, snap *model.Snapshot) error
}

// Refresher regenerates the dashboard snapshot on a schedule and hands each
// one to the sinks. Only the latest snapshot is kept.
type Refresher struct {
	gen      generator
	pub      publisher
	interval time.Duration
	logger   *zap.Logger
	latest   atomic.Pointer[model.Snapshot]
	mu       sync.Mutex // serialises refreshes
}

func New(gen generator, pub publisher, interval time.Duration) (*Refresher, error) {
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidInterval, interval)
	}
	return &Refresher{
		gen:      gen,
		pub:      pub,
		interval: interval,
		logger:   zap.L(),
	}, nil
}

func (r *Refresher) Interval() time.Duration {
	return r.interval
}

// Refresh generates a new snapshot, stores it as the latest and publishes it.
// Publishing failures are logged; the snapshot is still returned.
func (r *Refresher) Refresh(ctx context.Context) *model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.gen.Snapshot()
	r.latest.Store(snap)
	if r.pub != nil {
		if err := r.pub.PublishSnapshot(ctx, snap); err != nil {
			r.logger.Warn("snapshot not delivered to every sink", zap.Error(err))
		}
	}
	r.logger.Debug("refreshed snapshot",
		zap.Stringer("snapshot", snap.ID),
		zap.String("status", snap.Status.String()),
		zap.Float64("ambient_temperature", snap.Reading.AmbientTemperature),
		zap.Float64("soil_humidity", snap.Reading.SoilHumidity),
	)
	return snap
}

// Latest returns the most recent snapshot, refreshing once if none exists.
func (r *Refresher) Latest(ctx context.Context) *model.Snapshot {
	if snap := r.latest.Load(); snap != nil {
		return snap
	}
	return r.Refresh(ctx)
}

// Run refreshes every interval until ctx is cancelled. It waits for a running
// refresh to finish before returning.
func (r *Refresher) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		r.Refresh(ctx)
	}); err != nil {
		return err
	}

	r.Refresh(ctx)
	c.Start()
	r.logger.Info("refresher started", zap.Duration("interval", r.interval))

	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("refresher stopped")
	return nil
}
