// Package simulation drives the live data drift of a planning session: a
// cancellable ticker loop that perturbs occupancy and AQI readings, and an
// optional cron schedule that restores the sample dataset.
package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/model"
	"github.com/sells-group/dsa-planner/internal/session"
)

// Ticker is the subset of *time.Ticker the loop needs.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) Chan() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()                  { t.t.Stop() }

// NewTimeTicker is the default TickerFunc.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithDeltaSource replaces the random source.
func WithDeltaSource(src DeltaSource) Option {
	return func(s *Simulator) { s.deltas = src }
}

// WithTicker replaces the ticker factory.
func WithTicker(fn TickerFunc) Option {
	return func(s *Simulator) { s.newTicker = fn }
}

// Simulator perturbs a session on a fixed interval while running.
type Simulator struct {
	sess      *session.Session
	cfg       config.SimulationConfig
	deltas    DeltaSource
	newTicker TickerFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped simulator for sess.
func New(sess *session.Session, cfg config.SimulationConfig, opts ...Option) (*Simulator, error) {
	if cfg.TickInterval <= 0 {
		return nil, eris.Errorf("simulation: tick interval must be > 0, got %s", cfg.TickInterval)
	}
	if cfg.AQIMin > cfg.AQIMax {
		return nil, eris.Errorf("simulation: aqi_min %d exceeds aqi_max %d", cfg.AQIMin, cfg.AQIMax)
	}
	s := &Simulator{
		sess:      sess,
		cfg:       cfg,
		newTicker: NewTimeTicker,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deltas == nil {
		s.deltas = NewRandSource(cfg.Seed)
	}
	return s, nil
}

// Step applies one tick immediately, whether or not the loop is running.
func (s *Simulator) Step() error {
	if err := s.sess.Advance(func(ds *model.Dataset) {
		Perturb(ds, s.deltas, s.cfg)
	}); err != nil {
		return eris.Wrap(err, "simulation: step")
	}
	return nil
}

// Start launches the tick loop. It reports false if the loop was already
// running. The loop also stops when ctx is cancelled.
func (s *Simulator) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runningLocked() {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	t := s.newTicker(s.cfg.TickInterval)
	go s.loop(loopCtx, t, done)
	return true
}

// Stop cancels the loop and waits for it to exit. No tick is applied after
// Stop returns. Stopping a stopped simulator is a no-op.
func (s *Simulator) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the tick loop is active.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Simulator) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Run starts the loop and blocks until ctx is cancelled, then stops it.
func (s *Simulator) Run(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Simulator) loop(ctx context.Context, t Ticker, done chan struct{}) {
	defer close(done)
	defer t.Stop()

	log := zap.L().With(zap.String("component", "simulation"))
	log.Info("simulation started", zap.Duration("interval", s.cfg.TickInterval))

	for {
		select {
		case <-ctx.Done():
			log.Info("simulation stopped")
			return
		case <-t.Chan():
			if ctx.Err() != nil {
				continue
			}
			if err := s.Step(); err != nil {
				log.Error("simulation: tick failed", zap.Error(err))
				continue
			}
			log.Debug("simulation: tick applied", zap.Int64("tick", s.sess.Derived().Tick))
		}
	}
}
