package resources

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is the sampling interval used when none is given.
const DefaultInterval = 15 * time.Second

// Publisher receives every periodic sample together with the previous one.
// On the first sample prev equals cur.
type Publisher interface {
	Publish(prev, cur Snapshot)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(prev, cur Snapshot)

// Publish implements Publisher.
func (f PublisherFunc) Publish(prev, cur Snapshot) { f(prev, cur) }

// PeriodicSampler samples process resources on a schedule that is not tied
// to any request.
type PeriodicSampler struct {
	sampler   Sampler
	publisher Publisher
	interval  time.Duration
	cron      *cron.Cron
	logger    *slog.Logger

	mu      sync.Mutex
	prev    Snapshot
	hasPrev bool
	running bool

	stopOnce sync.Once
	stopErr  error
	samples  atomic.Int64
	last     atomic.Pointer[time.Time]
}

// NewPeriodicSampler creates a sampler that publishes a snapshot every
// interval. Intervals below one second are rounded up by the scheduler.
func NewPeriodicSampler(s Sampler, p Publisher, interval time.Duration, logger *slog.Logger) *PeriodicSampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "resources.periodic")

	cl := cronLogger{logger}
	return &PeriodicSampler{
		sampler:   s,
		publisher: p,
		interval:  interval,
		logger:    logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
	}
}

// Start takes a first sample immediately and schedules the rest.
func (p *PeriodicSampler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %s", p.interval), p.tick); err != nil {
		return fmt.Errorf("failed to schedule resource sampling: %w", err)
	}

	p.sampleLocked()
	p.cron.Start()
	p.running = true

	p.logger.Info("periodic resource sampler started", "interval", p.interval.String())
	return nil
}

// Stop halts the schedule and waits for an in-progress sample, bounded by
// ctx. Only the first call does any work; later calls return its result.
func (p *PeriodicSampler) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()

		done := p.cron.Stop()
		select {
		case <-done.Done():
			p.logger.Info("periodic resource sampler stopped", "samples", p.samples.Load())
		case <-ctx.Done():
			p.stopErr = fmt.Errorf("resource sampler did not stop: %w", ctx.Err())
		}
	})
	return p.stopErr
}

// Running reports whether the schedule is active.
func (p *PeriodicSampler) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastSample returns when the most recent sample was taken.
func (p *PeriodicSampler) LastSample() (time.Time, bool) {
	t := p.last.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// Interval returns the sampling interval.
func (p *PeriodicSampler) Interval() time.Duration {
	return p.interval
}

func (p *PeriodicSampler) tick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sampleLocked()
}

func (p *PeriodicSampler) sampleLocked() {
	cur := p.sampler.Sample()
	prev := cur
	if p.hasPrev {
		prev = p.prev
	}
	p.prev, p.hasPrev = cur, true

	if p.publisher != nil {
		p.publisher.Publish(prev, cur)
	}

	p.samples.Add(1)
	ts := cur.Timestamp
	p.last.Store(&ts)
}

// cronLogger routes scheduler messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
