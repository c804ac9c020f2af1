package moderation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/kratos/internal/config"
	"github.com/iamwavecut/kratos/internal/db"
	kerrors "github.com/iamwavecut/kratos/internal/errors"
	"github.com/iamwavecut/kratos/internal/infra"
	"github.com/iamwavecut/kratos/internal/ledger"
	"github.com/iamwavecut/kratos/internal/observability"
)

// Enforcer reverses sanctions on the platform.
type Enforcer interface {
	LiftMute(ctx context.Context, guildID, subjectID db.Snowflake) error
	LiftBan(ctx context.Context, guildID, subjectID db.Snowflake) error
}

type expiryLedger interface {
	FindExpiredActiveMutes(ctx context.Context, now db.Timestamp) (iter.Seq[*db.Mute], error)
	FindExpiredActiveTemporaryBans(ctx context.Context, now db.Timestamp) (iter.Seq[*db.TemporaryBan], error)
	DeactivateMute(ctx context.Context, key int64, source ledger.Source) (bool, error)
	DeactivateTemporaryBan(ctx context.Context, key int64, source ledger.Source) (bool, error)
}

// SweepReport counts the outcome of one sweep.
type SweepReport struct {
	Lifted          int
	AlreadyInactive int
	Failed          int
	ScanErrors      int
}

type sweepCounters struct {
	lifted          atomic.Int64
	alreadyInactive atomic.Int64
	failed          atomic.Int64
	scanErrors      atomic.Int64
}

func (c *sweepCounters) report() SweepReport {
	return SweepReport{
		Lifted:          int(c.lifted.Load()),
		AlreadyInactive: int(c.alreadyInactive.Load()),
		Failed:          int(c.failed.Load()),
		ScanErrors:      int(c.scanErrors.Load()),
	}
}

// Reconciler periodically lifts expired mutes and temporary bans and marks
// them inactive once the platform confirmed the lift.
type Reconciler struct {
	ledger   expiryLedger
	enforcer Enforcer
	cfg      config.Reconciler
	now      func() time.Time
	logger   *log.Entry

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
}

func NewReconciler(l expiryLedger, enforcer Enforcer, cfg config.Reconciler) *Reconciler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Reconciler{
		ledger:   l,
		enforcer: enforcer,
		cfg:      cfg,
		now:      time.Now,
		logger:   log.WithField("service", "reconciler"),
	}
}

// WithClock replaces the wall clock used to decide expiry.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

func (r *Reconciler) Start(ctx context.Context) error {
	r.runMutex.Lock()
	defer r.runMutex.Unlock()
	if r.started {
		return nil
	}
	if r.cfg.Interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %s", r.cfg.Interval)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.runCancel = cancel

	r.workersWg.Add(1)
	go func() {
		defer r.workersWg.Done()
		r.runSweep(runCtx)

		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.runSweep(runCtx)
			}
		}
	}()

	r.started = true
	return nil
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.runMutex.Lock()
	if !r.started {
		r.runMutex.Unlock()
		return nil
	}
	r.started = false
	cancel := r.runCancel
	r.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *Reconciler) runSweep(ctx context.Context) {
	entry := r.logger.WithField("method", "runSweep")
	err := infra.Guard("reconcile_sweep", func() error {
		report := r.Sweep(ctx)
		if report != (SweepReport{}) {
			entry.WithFields(log.Fields{
				"lifted":           report.Lifted,
				"already_inactive": report.AlreadyInactive,
				"failed":           report.Failed,
				"scan_errors":      report.ScanErrors,
			}).Info("sweep finished")
		}
		return nil
	})
	if err != nil {
		entry.WithError(err).Error("sweep panicked")
	}
}

// Sweep runs one reconciliation pass. Failures are isolated per record:
// a record whose lift could not be confirmed stays active for the next
// sweep.
func (r *Reconciler) Sweep(ctx context.Context) SweepReport {
	defer observability.StartSweep()()
	ctx, span := observability.Tracer().Start(ctx, "reconcile.sweep")
	defer span.End()

	now := db.Timestamp(r.now().Unix())
	counters := &sweepCounters{}

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	mutes, err := r.ledger.FindExpiredActiveMutes(ctx, now)
	if err != nil {
		counters.scanErrors.Add(1)
		r.logger.WithError(err).Error("failed to find expired mutes")
	} else {
		for mute := range mutes {
			g.Go(func() error {
				r.lift(ctx, db.KindMute, mute.ModeratorAction, counters,
					r.enforcer.LiftMute,
					func(ctx context.Context) (bool, error) {
						return r.ledger.DeactivateMute(ctx, mute.Key, ledger.SourceReconciler)
					},
				)
				return nil
			})
		}
	}

	bans, err := r.ledger.FindExpiredActiveTemporaryBans(ctx, now)
	if err != nil {
		counters.scanErrors.Add(1)
		r.logger.WithError(err).Error("failed to find expired temporary bans")
	} else {
		for ban := range bans {
			g.Go(func() error {
				r.lift(ctx, db.KindTemporaryBan, ban.ModeratorAction, counters,
					r.enforcer.LiftBan,
					func(ctx context.Context) (bool, error) {
						return r.ledger.DeactivateTemporaryBan(ctx, ban.Key, ledger.SourceReconciler)
					},
				)
				return nil
			})
		}
	}

	_ = g.Wait()

	report := counters.report()
	span.SetAttributes(
		attribute.Int("lifted", report.Lifted),
		attribute.Int("failed", report.Failed),
		attribute.Int("scan_errors", report.ScanErrors),
	)
	return report
}

func (r *Reconciler) lift(
	ctx context.Context,
	kind db.Kind,
	action db.ModeratorAction,
	counters *sweepCounters,
	enforce func(ctx context.Context, guildID, subjectID db.Snowflake) error,
	deactivate func(ctx context.Context) (bool, error),
) {
	entry := r.logger.WithFields(log.Fields{
		"kind":       kind,
		"key":        action.Key,
		"guild_id":   action.GuildID,
		"subject_id": action.SubjectID,
	})

	err := infra.Guard(string(kind)+"_lift", func() error {
		callCtx, cancel := r.enforcementContext(ctx)
		defer cancel()
		return enforce(callCtx, action.GuildID, action.SubjectID)
	})
	if err != nil {
		counters.failed.Add(1)
		observability.RecordEnforcementFailure(string(kind))
		entry.WithError(errors.Join(kerrors.ErrEnforcementFailed, err)).Warn("failed to lift expired sanction, will retry")
		return
	}

	changed, err := deactivate(ctx)
	if err != nil {
		counters.failed.Add(1)
		entry.WithError(err).Error("lifted on platform but failed to deactivate")
		return
	}
	if changed {
		counters.lifted.Add(1)
		return
	}
	counters.alreadyInactive.Add(1)
}

func (r *Reconciler) enforcementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.EnforcementTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.EnforcementTimeout)
}
