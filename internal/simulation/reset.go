package simulation

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dsa-planner/internal/session"
)

// ResetScheduler restores a session to its fixture on a cron schedule.
type ResetScheduler struct {
	sess *session.Session
	spec string
	cron *cron.Cron
}

// NewResetScheduler parses spec (standard five-field cron or a descriptor such
// as "@daily"). An empty spec yields a disabled scheduler.
func NewResetScheduler(sess *session.Session, spec string) (*ResetScheduler, error) {
	r := &ResetScheduler{sess: sess, spec: spec}
	if spec == "" {
		return r, nil
	}

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(spec, r.reset); err != nil {
		return nil, eris.Wrapf(err, "simulation: parse reset schedule %q", spec)
	}
	return r, nil
}

// Enabled reports whether a schedule is configured.
func (r *ResetScheduler) Enabled() bool { return r.cron != nil }

// Run starts the scheduler and blocks until ctx is cancelled. A running reset
// finishes before Run returns.
func (r *ResetScheduler) Run(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	zap.L().Info("reset scheduler started", zap.String("schedule", r.spec))
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
	return nil
}

func (r *ResetScheduler) reset() {
	if err := r.sess.Reset(); err != nil {
		zap.L().Error("simulation: scheduled reset failed", zap.Error(err))
		return
	}
	zap.L().Info("simulation: session reset to fixture")
}
