package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/clock"
	"github.com/complyops/taxtrail/internal/config"
	"github.com/complyops/taxtrail/internal/events"
	filingdomain "github.com/complyops/taxtrail/internal/filing/domain"
	"github.com/complyops/taxtrail/internal/latefee"
	obsmetrics "github.com/complyops/taxtrail/internal/observability/metrics"
	"github.com/complyops/taxtrail/internal/period"
	recondomain "github.com/complyops/taxtrail/internal/reconciliation/domain"
	stepdomain "github.com/complyops/taxtrail/internal/stepledger/domain"
	"github.com/complyops/taxtrail/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	Repo       filingdomain.Repository
	Steps      stepdomain.Service
	Calculator latefee.Calculator
	Recon      recondomain.Service `optional:"true"`
	Publisher  events.Publisher    `optional:"true"`
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

// Service is the workflow orchestrator. Every mutation is one logical
// unit: step-ledger entry, versioned filing update, event publish. A
// failed update always closes its step as failed; callers never observe a
// dangling pending entry.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	cfg        config.Config
	repo       filingdomain.Repository
	steps      stepdomain.Service
	calculator latefee.Calculator
	recon      recondomain.Service
	publisher  events.Publisher
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) filingdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("filing.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		cfg:        p.Config,
		repo:       p.Repo,
		steps:      p.Steps,
		calculator: p.Calculator,
		recon:      p.Recon,
		publisher:  p.Publisher,
		metrics:    p.Metrics,
	}
}

// mutation collects what one transition wants recorded and announced.
type mutation struct {
	changes map[string]stepdomain.Change
	comment string
	event   string
	payload map[string]any
	// skip short-circuits the update; the step closes as skipped.
	skip bool
}

func (m *mutation) record(field string, before, after any) {
	if m.changes == nil {
		m.changes = map[string]stepdomain.Change{}
	}
	m.changes[field] = stepdomain.Change{Before: before, After: after}
}

func (s *Service) Create(ctx context.Context, key period.Key, actor string) (*filingdomain.Filing, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, fmt.Errorf("%w: actor is required", filingdomain.ErrValidation)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", filingdomain.ErrValidation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout())
	defer cancel()

	month, _ := period.ParsePeriod(key.Period)
	dueA, dueB := filingdomain.DueDates(month, s.cfg.Filing.SubReturnADueDay, s.cfg.Filing.SubReturnBDueDay)

	now := s.clock.Now()
	filing := &filingdomain.Filing{
		ID:             s.genID.Generate(),
		OrgID:          key.OrgID,
		ClientID:       key.ClientID,
		Period:         key.Period,
		FiscalYear:     key.FiscalYear,
		WorkflowStatus: filingdomain.StatusDraft,
		SubReturnA:     filingdomain.SubReturn{DueDate: dueA},
		SubReturnB:     filingdomain.SubReturn{DueDate: dueB},
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	filing.RecomputeFilingStatus(now)

	if err := s.repo.Insert(ctx, s.db, filing); err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.countStep(stepdomain.StepPrepareA, "already_exists")
			return nil, fmt.Errorf("%w: filing for %s", filingdomain.ErrAlreadyExists, key.Period)
		}
		return nil, s.classify(err, "insert filing")
	}

	step, err := s.steps.Begin(ctx, key.OrgID, filing.ID, stepdomain.StepPrepareA, actor)
	if err != nil {
		return nil, s.classify(err, "begin step")
	}
	changes := map[string]stepdomain.Change{
		"workflow_status": {Before: nil, After: string(filingdomain.StatusDraft)},
		"filing_status":   {Before: nil, After: string(filing.FilingStatus)},
	}
	s.completeStep(ctx, step.ID, stepdomain.StepPrepareA, changes, "period opened for tracking")

	s.publish(ctx, events.FilingCreatedTopic, key, map[string]any{
		"filing_id":       filing.ID.String(),
		"workflow_status": string(filing.WorkflowStatus),
	})
	return filing, nil
}

func (s *Service) FileSubReturnA(ctx context.Context, orgID, filingID snowflake.ID, reference string, filedDate time.Time, actor string) (*filingdomain.Filing, error) {
	return s.transition(ctx, orgID, filingID, stepdomain.StepFileA, actor, func(f *filingdomain.Filing, m *mutation) error {
		reference = strings.TrimSpace(reference)
		if reference == "" || filedDate.IsZero() {
			return fmt.Errorf("%w: reference number and filed date are required", filingdomain.ErrValidation)
		}
		if !filingdomain.CanTransition(f.WorkflowStatus, filingdomain.StatusSubReturnAFiled) {
			return fmt.Errorf("%w: %s does not allow filing sub-return A", filingdomain.ErrInvalidTransition, f.WorkflowStatus)
		}

		m.record("workflow_status", string(f.WorkflowStatus), string(filingdomain.StatusSubReturnAFiled))
		m.record("sub_return_a_reference_number", f.SubReturnA.ReferenceNumber, reference)
		m.record("sub_return_a_filed_date", f.SubReturnA.FiledDate, filedDate)

		filed := filedDate.UTC()
		f.SubReturnA.Filed = true
		f.SubReturnA.FiledDate = &filed
		f.SubReturnA.ReferenceNumber = &reference
		f.WorkflowStatus = filingdomain.StatusSubReturnAFiled
		s.refreshStatus(f, m)

		m.event = events.FilingStatusChangedTopic
		m.payload = map[string]any{
			"filing_id":       f.ID.String(),
			"workflow_status": string(f.WorkflowStatus),
			"filing_status":   string(f.FilingStatus),
		}
		return nil
	})
}

func (s *Service) FileSubReturnB(ctx context.Context, orgID, filingID snowflake.ID, reference string, filedDate time.Time, figures filingdomain.TaxFigures, actor string) (*filingdomain.Filing, error) {
	return s.transition(ctx, orgID, filingID, stepdomain.StepFileB, actor, func(f *filingdomain.Filing, m *mutation) error {
		reference = strings.TrimSpace(reference)
		if reference == "" || filedDate.IsZero() {
			return fmt.Errorf("%w: reference number and filed date are required", filingdomain.ErrValidation)
		}
		if figures.TaxPaid < 0 || figures.CentralTax < 0 || figures.StateTax < 0 || figures.IntegratedTax < 0 {
			return fmt.Errorf("%w: tax figures must not be negative", filingdomain.ErrValidation)
		}
		if !filingdomain.CanTransition(f.WorkflowStatus, filingdomain.StatusSubReturnBFiled) {
			return fmt.Errorf("%w: %s does not allow filing sub-return B", filingdomain.ErrInvalidTransition, f.WorkflowStatus)
		}

		m.record("workflow_status", string(f.WorkflowStatus), string(filingdomain.StatusSubReturnBFiled))
		m.record("sub_return_b_reference_number", f.SubReturnB.ReferenceNumber, reference)
		m.record("sub_return_b_filed_date", f.SubReturnB.FiledDate, filedDate)
		m.record("tax_paid", f.TaxPaid, figures.TaxPaid)

		filed := filedDate.UTC()
		f.SubReturnB.Filed = true
		f.SubReturnB.FiledDate = &filed
		f.SubReturnB.ReferenceNumber = &reference
		f.TaxPaid = figures.TaxPaid
		f.WorkflowStatus = filingdomain.StatusSubReturnBFiled
		s.refreshStatus(f, m)
		s.accrueCharges(f, m)

		m.event = events.FilingStatusChangedTopic
		m.payload = map[string]any{
			"filing_id":       f.ID.String(),
			"workflow_status": string(f.WorkflowStatus),
			"filing_status":   string(f.FilingStatus),
			"tax_paid":        f.TaxPaid,
		}
		return nil
	})
}

func (s *Service) Lock(ctx context.Context, orgID, filingID snowflake.ID, actor, reason string) (*filingdomain.Filing, error) {
	return s.transition(ctx, orgID, filingID, stepdomain.StepLock, actor, func(f *filingdomain.Filing, m *mutation) error {
		if !filingdomain.CanTransition(f.WorkflowStatus, filingdomain.StatusLocked) {
			return fmt.Errorf("%w: %s does not allow locking", filingdomain.ErrInvalidTransition, f.WorkflowStatus)
		}
		if !f.SubReturnA.Filed || !f.SubReturnB.Filed {
			return fmt.Errorf("%w: both sub-returns must be filed before locking", filingdomain.ErrInvalidTransition)
		}

		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = "filing_complete"
		}

		m.record("workflow_status", string(f.WorkflowStatus), string(filingdomain.StatusLocked))
		m.record("is_locked", f.IsLocked, true)

		now := s.clock.Now()
		f.WorkflowStatus = filingdomain.StatusLocked
		f.IsLocked = true
		f.LockedAt = &now
		f.LockedBy = &actor
		f.LockReason = &reason

		// A flagged reconciliation does not block the lock, only annotates it.
		if s.recon != nil {
			key := period.Key{OrgID: f.OrgID, ClientID: f.ClientID, Period: f.Period, FiscalYear: f.FiscalYear}
			if analysis, err := s.recon.GetAnalysis(ctx, key); err == nil && analysis.NeedsReview {
				m.comment = "locked with reconciliation discrepancy flagged for review"
			}
		}

		m.event = events.FilingLockedTopic
		m.payload = map[string]any{
			"filing_id":   f.ID.String(),
			"locked_by":   actor,
			"lock_reason": reason,
		}
		return nil
	})
}

func (s *Service) Unlock(ctx context.Context, orgID, filingID snowflake.ID, actor, reason string) (*filingdomain.Filing, error) {
	return s.transition(ctx, orgID, filingID, stepdomain.StepUnlock, actor, func(f *filingdomain.Filing, m *mutation) error {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return fmt.Errorf("%w: unlock reason is required", filingdomain.ErrValidation)
		}
		if !filingdomain.CanTransition(f.WorkflowStatus, filingdomain.StatusAmendmentInProgress) {
			return fmt.Errorf("%w: %s does not allow unlocking", filingdomain.ErrInvalidTransition, f.WorkflowStatus)
		}

		m.record("workflow_status", string(f.WorkflowStatus), string(filingdomain.StatusAmendmentInProgress))
		m.record("is_locked", f.IsLocked, false)
		m.record("lock_reason", f.LockReason, nil)

		f.WorkflowStatus = filingdomain.StatusAmendmentInProgress
		f.IsLocked = false
		f.LockedAt = nil
		f.LockedBy = nil
		f.LockReason = nil
		m.comment = reason

		m.event = events.FilingUnlockedTopic
		m.payload = map[string]any{
			"filing_id":     f.ID.String(),
			"unlocked_by":   actor,
			"unlock_reason": reason,
		}
		return nil
	})
}

// StartAmendment is the amendment entry point; it is the unlock edge.
func (s *Service) StartAmendment(ctx context.Context, orgID, filingID snowflake.ID, actor, reason string) (*filingdomain.Filing, error) {
	return s.Unlock(ctx, orgID, filingID, actor, reason)
}

func (s *Service) CompleteAmendment(ctx context.Context, orgID, filingID snowflake.ID, actor string) (*filingdomain.Filing, error) {
	return s.transition(ctx, orgID, filingID, stepdomain.StepAmendment, actor, func(f *filingdomain.Filing, m *mutation) error {
		if !filingdomain.CanTransition(f.WorkflowStatus, filingdomain.StatusDraft) {
			return fmt.Errorf("%w: %s does not allow completing an amendment", filingdomain.ErrInvalidTransition, f.WorkflowStatus)
		}

		m.record("workflow_status", string(f.WorkflowStatus), string(filingdomain.StatusDraft))
		m.record("late_fee_calculated", f.LateFeeCalculated, false)

		f.WorkflowStatus = filingdomain.StatusDraft
		// Amended figures will be refiled; the charge computation reruns.
		f.LateFeeCalculated = false
		s.refreshStatus(f, m)

		m.event = events.FilingStatusChangedTopic
		m.payload = map[string]any{
			"filing_id":       f.ID.String(),
			"workflow_status": string(f.WorkflowStatus),
		}
		return nil
	})
}

func (s *Service) RecalculateCharges(ctx context.Context, orgID, filingID snowflake.ID, actor string) (*filingdomain.Filing, error) {
	return s.transition(ctx, orgID, filingID, stepdomain.StepValidateB, actor, func(f *filingdomain.Filing, m *mutation) error {
		if f.IsLocked {
			return fmt.Errorf("%w: filing is locked", filingdomain.ErrInvalidTransition)
		}
		if !f.SubReturnB.Filed || f.SubReturnB.FiledDate == nil {
			return fmt.Errorf("%w: summary sub-return is not filed", filingdomain.ErrInvalidTransition)
		}
		if f.LateFeeCalculated {
			m.skip = true
			m.comment = "charges already calculated"
			return nil
		}

		s.accrueCharges(f, m)
		m.record("late_fee_calculated", false, true)
		return nil
	})
}

// transition is the shared envelope: step entry, guarded update, event.
func (s *Service) transition(
	ctx context.Context,
	orgID, filingID snowflake.ID,
	stepType stepdomain.StepType,
	actor string,
	mutate func(*filingdomain.Filing, *mutation) error,
) (*filingdomain.Filing, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, fmt.Errorf("%w: actor is required", filingdomain.ErrValidation)
	}
	if orgID == 0 || filingID == 0 {
		return nil, fmt.Errorf("%w: filing id is required", filingdomain.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout())
	defer cancel()

	filing, err := s.repo.FindByID(ctx, s.db, orgID, filingID)
	if err != nil {
		return nil, s.classify(err, "load filing")
	}
	if filing == nil {
		return nil, fmt.Errorf("%w: filing %s", filingdomain.ErrNotFound, filingID)
	}

	step, err := s.steps.Begin(ctx, orgID, filingID, stepType, actor)
	if err != nil {
		return nil, s.classify(err, "begin step")
	}

	var m mutation
	if err := mutate(filing, &m); err != nil {
		s.failStep(ctx, step.ID, stepType, err)
		return nil, err
	}
	if m.skip {
		s.skipStep(ctx, step.ID, stepType, m.comment)
		return filing, nil
	}

	filing.UpdatedAt = s.clock.Now()
	affected, err := s.repo.UpdateVersioned(ctx, s.db, filing)
	if err != nil {
		classified := s.classify(err, "update filing")
		s.failStep(ctx, step.ID, stepType, classified)
		return nil, classified
	}
	if affected == 0 {
		conflict := fmt.Errorf("%w: filing %s changed concurrently", filingdomain.ErrStorageConflict, filingID)
		s.failStep(ctx, step.ID, stepType, conflict)
		return nil, conflict
	}

	s.completeStep(ctx, step.ID, stepType, m.changes, m.comment)

	if m.event != "" {
		key := period.Key{OrgID: filing.OrgID, ClientID: filing.ClientID, Period: filing.Period, FiscalYear: filing.FiscalYear}
		s.publish(ctx, m.event, key, m.payload)
	}
	return filing, nil
}

// refreshStatus recomputes the derived projection and records the change
// when it moved.
func (s *Service) refreshStatus(f *filingdomain.Filing, m *mutation) {
	before := f.FilingStatus
	f.RecomputeFilingStatus(s.clock.Now())
	if f.FilingStatus != before {
		m.record("filing_status", string(before), string(f.FilingStatus))
	}
}

// accrueCharges runs the pluggable late-fee strategy once per filing cycle.
func (s *Service) accrueCharges(f *filingdomain.Filing, m *mutation) {
	if f.LateFeeCalculated || !f.SubReturnB.Filed || f.SubReturnB.FiledDate == nil {
		return
	}
	charge := s.calculator.Calculate(f.TaxPaid, f.SubReturnB.DueDate, *f.SubReturnB.FiledDate)
	if charge.LateFee != f.LateFee {
		m.record("late_fee", f.LateFee, charge.LateFee)
	}
	if charge.Interest != f.Interest {
		m.record("interest", f.Interest, charge.Interest)
	}
	f.LateFee = charge.LateFee
	f.Interest = charge.Interest
	f.LateFeeCalculated = true
}

// stepCloseTimeout bounds the ledger writes that must still land after the
// operation's own deadline has expired.
const stepCloseTimeout = 5 * time.Second

// closeCtx detaches from the request deadline: the very timeout that failed
// an operation must not leave its step entry open.
func closeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), stepCloseTimeout)
}

func (s *Service) completeStep(ctx context.Context, stepID snowflake.ID, stepType stepdomain.StepType, changes map[string]stepdomain.Change, comment string) {
	ctx, cancel := closeCtx(ctx)
	defer cancel()
	if err := s.steps.Complete(ctx, stepID, changes, comment); err != nil {
		s.log.Warn("failed to close completed step",
			zap.String("step_type", string(stepType)),
			zap.Error(err),
		)
	}
	s.countStep(stepType, "completed")
}

func (s *Service) skipStep(ctx context.Context, stepID snowflake.ID, stepType stepdomain.StepType, comment string) {
	ctx, cancel := closeCtx(ctx)
	defer cancel()
	if err := s.steps.Skip(ctx, stepID, comment); err != nil {
		s.log.Warn("failed to close skipped step",
			zap.String("step_type", string(stepType)),
			zap.Error(err),
		)
	}
	s.countStep(stepType, "skipped")
}

func (s *Service) failStep(ctx context.Context, stepID snowflake.ID, stepType stepdomain.StepType, cause error) {
	code := errCode(cause)
	ctx, cancel := closeCtx(ctx)
	defer cancel()
	if err := s.steps.Fail(ctx, stepID, code, cause.Error()); err != nil {
		s.log.Error("failed to record failed step",
			zap.String("step_type", string(stepType)),
			zap.String("error_code", code),
			zap.Error(err),
		)
	}
	s.countStep(stepType, "failed")
}

func (s *Service) publish(ctx context.Context, topic string, key period.Key, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, key, payload); err != nil {
		s.log.Warn("failed to publish filing event",
			zap.String("event_type", topic),
			zap.String("period", key.Period),
			zap.Error(err),
		)
	}
}

func (s *Service) countStep(stepType stepdomain.StepType, outcome string) {
	if s.metrics != nil {
		s.metrics.IncTransition(string(stepType), outcome)
	}
}

func (s *Service) classify(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", filingdomain.ErrUpstreamTimeout, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func errCode(err error) string {
	switch {
	case errors.Is(err, filingdomain.ErrValidation):
		return "validation_error"
	case errors.Is(err, filingdomain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, filingdomain.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, filingdomain.ErrNotFound):
		return "not_found"
	case errors.Is(err, filingdomain.ErrStorageConflict):
		return "storage_conflict"
	case errors.Is(err, filingdomain.ErrUpstreamTimeout):
		return "upstream_timeout"
	default:
		return "internal"
	}
}
