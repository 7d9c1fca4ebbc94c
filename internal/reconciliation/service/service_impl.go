package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/clock"
	"github.com/complyops/taxtrail/internal/config"
	"github.com/complyops/taxtrail/internal/events"
	"github.com/complyops/taxtrail/internal/period"
	recondomain "github.com/complyops/taxtrail/internal/reconciliation/domain"
	sourcedomain "github.com/complyops/taxtrail/internal/sourceledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	Repo      recondomain.Repository
	Ledger    sourcedomain.Reader
	Publisher events.Publisher `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	cfg        config.Config
	thresholds recondomain.Thresholds
	repo       recondomain.Repository
	ledger     sourcedomain.Reader
	publisher  events.Publisher
}

func NewService(p Params) recondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("reconciliation.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Config,
		thresholds: recondomain.Thresholds{
			MaxDiscrepancyPct: p.Config.Reconciliation.MaxDiscrepancyPct,
			MaxDiscrepancyAbs: p.Config.Reconciliation.MaxDiscrepancyAbs,
			MaxPendingCredit:  p.Config.Reconciliation.MaxPendingCredit,
			MaxRejectedCredit: p.Config.Reconciliation.MaxRejectedCredit,
		},
		repo:      p.Repo,
		ledger:    p.Ledger,
		publisher: p.Publisher,
	}
}

// ComputeClaimed sums the tax components over all purchase records for the
// period and overwrites the cached claimed figures. Counterparty figures
// are untouched; reruns are idempotent.
func (s *Service) ComputeClaimed(ctx context.Context, key period.Key) (*recondomain.Reconciliation, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", recondomain.ErrValidation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout())
	defer cancel()

	rec, err := s.computeClaimed(ctx, key)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.ReconciliationClaimedTopic, key, map[string]any{
		"claimed_credit":       rec.ClaimedCredit,
		"claimed_source_count": rec.ClaimedSourceCount,
	})
	return rec, nil
}

func (s *Service) computeClaimed(ctx context.Context, key period.Key) (*recondomain.Reconciliation, error) {
	records, err := s.ledger.QueryRecords(ctx, key.OrgID, key.ClientID, key.Period)
	if err != nil {
		return nil, s.classify(err, "query source records")
	}

	var breakdown recondomain.ClaimedBreakdown
	count := 0
	for _, record := range records {
		if record.RecordType != sourcedomain.RecordTypePurchase {
			continue
		}
		breakdown.CentralTax += record.CentralTax
		breakdown.StateTax += record.StateTax
		breakdown.IntegratedTax += record.IntegratedTax
		count++
	}

	now := s.clock.Now()
	rec, err := s.repo.FindByPeriodKey(ctx, s.db, key)
	if err != nil {
		return nil, s.classify(err, "load reconciliation")
	}
	if rec == nil {
		rec = &recondomain.Reconciliation{
			ID:                s.genID.Generate(),
			OrgID:             key.OrgID,
			ClientID:          key.ClientID,
			Period:            key.Period,
			FiscalYear:        key.FiscalYear,
			DiscrepancyReason: recondomain.ReasonAwaitingSync,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.repo.Insert(ctx, s.db, rec); err != nil {
			return nil, s.classify(err, "insert reconciliation")
		}
	}

	rec.ClaimedCredit = breakdown.Total()
	rec.ClaimedSourceCount = count
	rec.Claimed = breakdown
	rec.ComputedAt = &now
	rec.UpdatedAt = now
	s.derive(rec)

	if err := s.repo.Update(ctx, s.db, rec); err != nil {
		return nil, s.classify(err, "store claimed figures")
	}
	return rec, nil
}

// MergeCounterparty folds one external sync snapshot into the record and
// re-derives discrepancy, classification and the review flag. A sync is
// recorded even when the filing for the period is already locked.
func (s *Service) MergeCounterparty(ctx context.Context, key period.Key, sync recondomain.SyncData) (*recondomain.Reconciliation, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", recondomain.ErrValidation, err)
	}
	if sync.CounterpartyReportedCredit < 0 || sync.PendingCredit < 0 || sync.RejectedCredit < 0 {
		return nil, fmt.Errorf("%w: negative credit figure", recondomain.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout())
	defer cancel()

	rec, err := s.repo.FindByPeriodKey(ctx, s.db, key)
	if err != nil {
		return nil, s.classify(err, "load reconciliation")
	}
	if rec == nil {
		// Cache the claimed side first so the discrepancy is meaningful.
		rec, err = s.computeClaimed(ctx, key)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	reported := sync.CounterpartyReportedCredit
	pending := sync.PendingCredit
	rejected := sync.RejectedCredit
	rec.CounterpartyReportedCredit = &reported
	rec.PendingCredit = &pending
	rec.RejectedCredit = &rejected
	rec.SyncedAt = &now
	rec.UpdatedAt = now
	s.derive(rec)

	if err := s.repo.Update(ctx, s.db, rec); err != nil {
		return nil, s.classify(err, "store sync figures")
	}

	if rec.NeedsReview {
		s.publish(ctx, events.DiscrepancyDetectedTopic, key, map[string]any{
			"discrepancy":        rec.Discrepancy,
			"discrepancy_pct":    rec.DiscrepancyPct,
			"discrepancy_reason": string(rec.DiscrepancyReason),
		})
	} else {
		s.publish(ctx, events.ReconciliationSyncedTopic, key, map[string]any{
			"discrepancy_reason": string(rec.DiscrepancyReason),
		})
	}
	return rec, nil
}

func (s *Service) GetAnalysis(ctx context.Context, key period.Key) (*recondomain.Reconciliation, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", recondomain.ErrValidation, err)
	}
	rec, err := s.repo.FindByPeriodKey(ctx, s.db, key)
	if err != nil {
		return nil, s.classify(err, "load reconciliation")
	}
	if rec == nil {
		return nil, recondomain.ErrNotFound
	}
	return rec, nil
}

// Resolve records a human closing out a flagged discrepancy.
func (s *Service) Resolve(ctx context.Context, key period.Key, resolution, actor string) (*recondomain.Reconciliation, error) {
	resolution = strings.TrimSpace(resolution)
	actor = strings.TrimSpace(actor)
	if resolution == "" || actor == "" {
		return nil, fmt.Errorf("%w: resolution and actor are required", recondomain.ErrValidation)
	}

	rec, err := s.GetAnalysis(ctx, key)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rec.Resolution = &resolution
	rec.ResolvedAt = &now
	rec.ResolvedBy = &actor
	rec.NeedsReview = false
	rec.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, rec); err != nil {
		return nil, s.classify(err, "store resolution")
	}
	return rec, nil
}

// derive recalculates the discrepancy projection from the stored figures.
// Before any sync the percentage is zero and nothing is flagged.
func (s *Service) derive(rec *recondomain.Reconciliation) {
	if rec.CounterpartyReportedCredit == nil {
		rec.Discrepancy = 0
		rec.DiscrepancyPct = 0
		rec.HasDiscrepancy = false
		rec.NeedsReview = false
		rec.DiscrepancyReason = recondomain.ReasonAwaitingSync
		return
	}

	reported := *rec.CounterpartyReportedCredit
	var pending, rejected int64
	if rec.PendingCredit != nil {
		pending = *rec.PendingCredit
	}
	if rec.RejectedCredit != nil {
		rejected = *rec.RejectedCredit
	}

	rec.Discrepancy = rec.ClaimedCredit - reported
	switch {
	case reported != 0:
		rec.DiscrepancyPct = float64(rec.Discrepancy) / float64(reported) * 100
	case rec.Discrepancy != 0:
		rec.DiscrepancyPct = 100
	default:
		rec.DiscrepancyPct = 0
	}

	rec.HasDiscrepancy = rec.Discrepancy != 0
	rec.DiscrepancyReason = recondomain.Classify(rec.Discrepancy, pending, rejected)
	rec.NeedsReview = s.thresholds.NeedsReview(rec.Discrepancy, rec.DiscrepancyPct, pending, rejected)
}

func (s *Service) publish(ctx context.Context, topic string, key period.Key, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, key, payload); err != nil {
		s.log.Warn("failed to publish reconciliation event",
			zap.String("event_type", topic),
			zap.String("period", key.Period),
			zap.Error(err),
		)
	}
}

func (s *Service) classify(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", recondomain.ErrUpstreamTimeout, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
