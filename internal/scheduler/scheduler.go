// Package scheduler runs the periodic sweeps that keep derived filing
// state and cached claimed figures fresh.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/complyops/taxtrail/internal/clock"
	filingdomain "github.com/complyops/taxtrail/internal/filing/domain"
	obsmetrics "github.com/complyops/taxtrail/internal/observability/metrics"
	"github.com/complyops/taxtrail/internal/period"
	recondomain "github.com/complyops/taxtrail/internal/reconciliation/domain"
	sourcedomain "github.com/complyops/taxtrail/internal/sourceledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	FilingRepo filingdomain.Repository
	ReconSvc   recondomain.Service
	ReconRepo  recondomain.Repository
	Ledger     sourcedomain.Reader
	Metrics    *obsmetrics.Metrics `optional:"true"`
	Config     Config              `optional:"true"`
}

type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	filingRepo filingdomain.Repository
	reconSvc   recondomain.Service
	reconRepo  recondomain.Repository
	ledger     sourcedomain.Reader
	metrics    *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.FilingRepo == nil || p.ReconSvc == nil || p.ReconRepo == nil || p.Ledger == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		filingRepo: p.FilingRepo,
		reconSvc:   p.ReconSvc,
		reconRepo:  p.ReconRepo,
		ledger:     p.Ledger,
		metrics:    p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	err := fn(ctx)
	if s.metrics != nil {
		s.metrics.ObserveJobDuration(name, time.Since(start))
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes each enabled sweep a single time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	if s.cfg.StatusSweep {
		if jobErr := s.runJob(parent, "recompute_filing_status", s.sweepFilingStatus); jobErr != nil {
			err = errors.Join(err, jobErr)
		}
	}
	if s.cfg.ClaimedSweep {
		if jobErr := s.runJob(parent, "reconciliation_sweep", s.sweepClaimedCredit); jobErr != nil {
			err = errors.Join(err, jobErr)
		}
	}
	return err
}

// RunForever loops RunOnce on the configured interval until ctx ends.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("scheduler pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweepFilingStatus refreshes the derived pending/overdue projection on
// unlocked filings. The projection is not a workflow transition, so no
// step entry is written.
func (s *Scheduler) sweepFilingStatus(ctx context.Context) error {
	filings, err := s.filingRepo.ListUnlocked(ctx, s.db, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list unlocked filings: %w", err)
	}

	now := s.clock.Now()
	for i := range filings {
		filing := &filings[i]
		before := filing.FilingStatus
		filing.RecomputeFilingStatus(now)
		if filing.FilingStatus == before {
			continue
		}

		filing.UpdatedAt = now
		affected, err := s.filingRepo.UpdateVersioned(ctx, s.db, filing)
		if err != nil {
			return fmt.Errorf("refresh filing status: %w", err)
		}
		if affected == 0 {
			// An in-flight transition owns this record; it recomputes anyway.
			continue
		}
		s.log.Info("filing status refreshed",
			zap.String("filing_id", filing.ID.String()),
			zap.String("period", filing.Period),
			zap.String("from", string(before)),
			zap.String("to", string(filing.FilingStatus)),
		)
	}
	return nil
}

// sweepClaimedCredit recomputes cached claimed figures for periods whose
// source ledger moved after the last compute. Recomputes are idempotent,
// and each client period is independent.
func (s *Scheduler) sweepClaimedCredit(ctx context.Context) error {
	filings, err := s.filingRepo.ListUnlocked(ctx, s.db, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list unlocked filings: %w", err)
	}

	for i := range filings {
		filing := &filings[i]
		key := period.Key{
			OrgID:      filing.OrgID,
			ClientID:   filing.ClientID,
			Period:     filing.Period,
			FiscalYear: filing.FiscalYear,
		}

		latest, err := s.ledger.LatestRecordedAt(ctx, key.OrgID, key.ClientID, key.Period)
		if err != nil {
			return fmt.Errorf("probe source ledger: %w", err)
		}
		if latest == nil {
			continue
		}

		rec, err := s.reconRepo.FindByPeriodKey(ctx, s.db, key)
		if err != nil {
			return fmt.Errorf("load reconciliation: %w", err)
		}
		if rec != nil && rec.ComputedAt != nil && !latest.After(*rec.ComputedAt) {
			continue
		}

		if _, err := s.reconSvc.ComputeClaimed(ctx, key); err != nil {
			if s.metrics != nil {
				s.metrics.IncReconciliation("compute_claimed", "failed")
			}
			return fmt.Errorf("compute claimed credit: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncReconciliation("compute_claimed", "completed")
		}
	}
	return nil
}
