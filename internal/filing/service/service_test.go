package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/clock"
	"github.com/complyops/taxtrail/internal/config"
	"github.com/complyops/taxtrail/internal/events"
	filingdomain "github.com/complyops/taxtrail/internal/filing/domain"
	filingrepo "github.com/complyops/taxtrail/internal/filing/repository"
	"github.com/complyops/taxtrail/internal/latefee"
	"github.com/complyops/taxtrail/internal/period"
	stepdomain "github.com/complyops/taxtrail/internal/stepledger/domain"
	steprepo "github.com/complyops/taxtrail/internal/stepledger/repository"
	stepservice "github.com/complyops/taxtrail/internal/stepledger/service"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupFilingDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	assert.NoError(t, err)
	db.Exec(`CREATE TABLE IF NOT EXISTS filings (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		period TEXT NOT NULL,
		fiscal_year TEXT NOT NULL,
		workflow_status TEXT NOT NULL,
		filing_status TEXT NOT NULL,
		sub_return_a_filed BOOLEAN NOT NULL DEFAULT false,
		sub_return_a_filed_date TIMESTAMP,
		sub_return_a_reference_number TEXT,
		sub_return_a_due_date TIMESTAMP NOT NULL,
		sub_return_b_filed BOOLEAN NOT NULL DEFAULT false,
		sub_return_b_filed_date TIMESTAMP,
		sub_return_b_reference_number TEXT,
		sub_return_b_due_date TIMESTAMP NOT NULL,
		tax_paid BIGINT NOT NULL DEFAULT 0,
		late_fee BIGINT NOT NULL DEFAULT 0,
		interest BIGINT NOT NULL DEFAULT 0,
		late_fee_calculated BOOLEAN NOT NULL DEFAULT false,
		is_locked BOOLEAN NOT NULL DEFAULT false,
		locked_at TIMESTAMP,
		locked_by TEXT,
		lock_reason TEXT,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_filings_period_key
		ON filings (org_id, client_id, period, fiscal_year)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS filing_steps (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		filing_id BIGINT NOT NULL,
		step_type TEXT NOT NULL,
		status TEXT NOT NULL,
		performed_by TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		comments TEXT,
		changes TEXT,
		error_code TEXT,
		error_message TEXT,
		created_at TIMESTAMP NOT NULL
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS engine_events (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT,
		published BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL
	)`)
	return db
}

func testConfig() config.Config {
	return config.Config{
		OpTimeoutSeconds: 10,
		Filing: config.FilingConfig{
			SubReturnADueDay:   11,
			SubReturnBDueDay:   20,
			LateFeePerDay:      50,
			InterestAnnualRate: 0.18,
		},
	}
}

type filingHarness struct {
	db    *gorm.DB
	node  *snowflake.Node
	fake  *clock.FakeClock
	svc   filingdomain.Service
	steps stepdomain.Service
	repo  filingdomain.Repository
}

func newFilingHarness(t *testing.T, nodeID int64, repo filingdomain.Repository) *filingHarness {
	db := setupFilingDB(t)
	node, err := snowflake.NewNode(nodeID)
	assert.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC))
	cfg := testConfig()
	log := zaptest.NewLogger(t)

	steps := stepservice.NewService(stepservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  steprepo.Provide(),
	})
	if repo == nil {
		repo = filingrepo.NewRepository()
	}
	svc := NewService(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Config:     cfg,
		Repo:       repo,
		Steps:      steps,
		Calculator: latefee.NewFlatRateCalculator(cfg),
		Publisher:  events.NewOutboxPublisher(db, node, fake),
	})
	return &filingHarness{db: db, node: node, fake: fake, svc: svc, steps: steps, repo: repo}
}

func (h *filingHarness) key(t *testing.T, token string) period.Key {
	key, err := period.KeyFor(h.node.Generate(), h.node.Generate(), token)
	assert.NoError(t, err)
	return key
}

func (h *filingHarness) eventCount(t *testing.T, eventType string) int64 {
	var count int64
	err := h.db.Raw(`SELECT COUNT(*) FROM engine_events WHERE event_type = ?`, eventType).Scan(&count).Error
	assert.NoError(t, err)
	return count
}

func TestFilingLifecycle(t *testing.T) {
	h := newFilingHarness(t, 10, nil)
	ctx := context.Background()
	key := h.key(t, "2024-04")

	var filingID snowflake.ID

	t.Run("create opens the period in draft", func(t *testing.T) {
		f, err := h.svc.Create(ctx, key, "analyst")
		assert.NoError(t, err)
		filingID = f.ID
		assert.Equal(t, filingdomain.StatusDraft, f.WorkflowStatus)
		assert.Equal(t, filingdomain.FilingStatusPending, f.FilingStatus)
		assert.Equal(t, "2024-25", f.FiscalYear)
		assert.Equal(t, time.Date(2024, time.May, 11, 23, 59, 59, 0, time.UTC), f.SubReturnA.DueDate)
		assert.Equal(t, time.Date(2024, time.May, 20, 23, 59, 59, 0, time.UTC), f.SubReturnB.DueDate)
		assert.Equal(t, int64(1), f.Version)
		assert.Equal(t, int64(1), h.eventCount(t, events.FilingCreatedTopic))
	})

	t.Run("create is unique per period key", func(t *testing.T) {
		_, err := h.svc.Create(ctx, key, "analyst")
		assert.ErrorIs(t, err, filingdomain.ErrAlreadyExists)
	})

	t.Run("summary return cannot jump the queue", func(t *testing.T) {
		_, err := h.svc.FileSubReturnB(ctx, key.OrgID, filingID, "BREF-1", h.fake.Now(), filingdomain.TaxFigures{TaxPaid: 100000}, "analyst")
		assert.ErrorIs(t, err, filingdomain.ErrInvalidTransition)

		entries, err := h.steps.ListByFiling(ctx, key.OrgID, filingID)
		assert.NoError(t, err)
		last := entries[len(entries)-1]
		assert.Equal(t, stepdomain.StepFileB, last.StepType)
		assert.Equal(t, stepdomain.StepStatusFailed, last.Status)
		assert.Equal(t, "invalid_transition", *last.ErrorCode)
	})

	t.Run("file sub-return A on time", func(t *testing.T) {
		filed := time.Date(2024, time.May, 10, 14, 0, 0, 0, time.UTC)
		f, err := h.svc.FileSubReturnA(ctx, key.OrgID, filingID, "AREF-42", filed, "analyst")
		assert.NoError(t, err)
		assert.Equal(t, filingdomain.StatusSubReturnAFiled, f.WorkflowStatus)
		assert.True(t, f.SubReturnA.Filed)
		assert.Equal(t, "AREF-42", *f.SubReturnA.ReferenceNumber)
		assert.Equal(t, int64(2), f.Version)
	})

	t.Run("lock requires both returns filed", func(t *testing.T) {
		_, err := h.svc.Lock(ctx, key.OrgID, filingID, "controller", "")
		assert.ErrorIs(t, err, filingdomain.ErrInvalidTransition)
	})

	t.Run("late summary return accrues charges once", func(t *testing.T) {
		h.fake.Advance(24 * 24 * time.Hour) // 2024-05-25
		filed := time.Date(2024, time.May, 25, 0, 0, 0, 0, time.UTC)
		f, err := h.svc.FileSubReturnB(ctx, key.OrgID, filingID, "BREF-42", filed, filingdomain.TaxFigures{
			TaxPaid:       100000,
			CentralTax:    50000,
			StateTax:      50000,
			IntegratedTax: 0,
		}, "analyst")
		assert.NoError(t, err)
		assert.Equal(t, filingdomain.StatusSubReturnBFiled, f.WorkflowStatus)
		assert.Equal(t, filingdomain.FilingStatusLate, f.FilingStatus)
		assert.True(t, f.LateFeeCalculated)
		// 5 late days at 50/day; interest on 100000 at 18% for 5/365.
		assert.Equal(t, int64(250), f.LateFee)
		assert.Equal(t, int64(247), f.Interest)
	})

	t.Run("recalculate is idempotent", func(t *testing.T) {
		before, err := h.svc.GetByID(ctx, key.OrgID, filingID)
		assert.NoError(t, err)
		f, err := h.svc.RecalculateCharges(ctx, key.OrgID, filingID, "analyst")
		assert.NoError(t, err)
		assert.Equal(t, before.LateFee, f.LateFee)
		assert.Equal(t, before.Version, f.Version)

		entries, err := h.steps.ListByFiling(ctx, key.OrgID, filingID)
		assert.NoError(t, err)
		last := entries[len(entries)-1]
		assert.Equal(t, stepdomain.StepStatusSkipped, last.Status)
	})

	t.Run("lock freezes the filing", func(t *testing.T) {
		f, err := h.svc.Lock(ctx, key.OrgID, filingID, "controller", "")
		assert.NoError(t, err)
		assert.Equal(t, filingdomain.StatusLocked, f.WorkflowStatus)
		assert.True(t, f.IsLocked)
		assert.Equal(t, "filing_complete", *f.LockReason)
		assert.Equal(t, "controller", *f.LockedBy)
		assert.Equal(t, int64(1), h.eventCount(t, events.FilingLockedTopic))

		_, err = h.svc.FileSubReturnA(ctx, key.OrgID, filingID, "AREF-43", h.fake.Now(), "analyst")
		assert.ErrorIs(t, err, filingdomain.ErrInvalidTransition)
	})

	t.Run("unlock requires a reason", func(t *testing.T) {
		_, err := h.svc.Unlock(ctx, key.OrgID, filingID, "admin", "   ")
		assert.ErrorIs(t, err, filingdomain.ErrValidation)
	})

	t.Run("unlock opens an amendment", func(t *testing.T) {
		f, err := h.svc.Unlock(ctx, key.OrgID, filingID, "admin", "corrected counterparty figures")
		assert.NoError(t, err)
		assert.Equal(t, filingdomain.StatusAmendmentInProgress, f.WorkflowStatus)
		assert.False(t, f.IsLocked)
		assert.Nil(t, f.LockReason)
		assert.Nil(t, f.LockedBy)
		assert.Equal(t, int64(1), h.eventCount(t, events.FilingUnlockedTopic))
	})

	t.Run("completing the amendment returns to draft", func(t *testing.T) {
		f, err := h.svc.CompleteAmendment(ctx, key.OrgID, filingID, "admin")
		assert.NoError(t, err)
		assert.Equal(t, filingdomain.StatusDraft, f.WorkflowStatus)
		// Charges are recomputed on the next summary filing.
		assert.False(t, f.LateFeeCalculated)
	})

	t.Run("every transition left a step entry", func(t *testing.T) {
		entries, err := h.steps.ListByFiling(ctx, key.OrgID, filingID)
		assert.NoError(t, err)
		// Rejected attempts leave failed entries, the no-op recalculation a
		// skipped one; nothing is ever left open.
		assert.GreaterOrEqual(t, len(entries), 10)
		for _, entry := range entries {
			assert.True(t, entry.Status.Terminal(), "step %s left open", entry.StepType)
		}
	})
}

func TestTransitionValidation(t *testing.T) {
	h := newFilingHarness(t, 11, nil)
	ctx := context.Background()
	key := h.key(t, "2024-05")

	f, err := h.svc.Create(ctx, key, "analyst")
	assert.NoError(t, err)

	_, err = h.svc.FileSubReturnA(ctx, key.OrgID, f.ID, "", h.fake.Now(), "analyst")
	assert.ErrorIs(t, err, filingdomain.ErrValidation)

	_, err = h.svc.FileSubReturnA(ctx, key.OrgID, f.ID, "AREF", h.fake.Now(), "  ")
	assert.ErrorIs(t, err, filingdomain.ErrValidation)

	_, err = h.svc.FileSubReturnB(ctx, key.OrgID, f.ID, "BREF", h.fake.Now(), filingdomain.TaxFigures{TaxPaid: -1}, "analyst")
	assert.ErrorIs(t, err, filingdomain.ErrValidation)

	_, err = h.svc.FileSubReturnA(ctx, key.OrgID, h.node.Generate(), "AREF", h.fake.Now(), "analyst")
	assert.ErrorIs(t, err, filingdomain.ErrNotFound)

	_, err = h.svc.Create(ctx, period.Key{OrgID: key.OrgID, ClientID: key.ClientID, Period: "not-a-month", FiscalYear: "2024-25"}, "analyst")
	assert.ErrorIs(t, err, filingdomain.ErrValidation)
}

// racingRepo simulates a concurrent writer landing between the load and
// the guarded update.
type racingRepo struct {
	filingdomain.Repository
}

func (r *racingRepo) UpdateVersioned(ctx context.Context, db *gorm.DB, filing *filingdomain.Filing) (int64, error) {
	db.Exec(`UPDATE filings SET version = version + 1 WHERE id = ?`, filing.ID)
	return r.Repository.UpdateVersioned(ctx, db, filing)
}

func TestConcurrentUpdateConflict(t *testing.T) {
	h := newFilingHarness(t, 12, &racingRepo{Repository: filingrepo.NewRepository()})
	ctx := context.Background()
	key := h.key(t, "2024-06")

	f, err := h.svc.Create(ctx, key, "analyst")
	assert.NoError(t, err)

	_, err = h.svc.FileSubReturnA(ctx, key.OrgID, f.ID, "AREF-1", h.fake.Now(), "analyst")
	assert.ErrorIs(t, err, filingdomain.ErrStorageConflict)

	entries, err := h.steps.ListByFiling(ctx, key.OrgID, f.ID)
	assert.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, stepdomain.StepStatusFailed, last.Status)
	assert.Equal(t, "storage_conflict", *last.ErrorCode)
}

// stallingRepo wedges the guarded update until the operation deadline
// expires, the way a hung upstream connection would.
type stallingRepo struct {
	filingdomain.Repository
}

func (r *stallingRepo) UpdateVersioned(ctx context.Context, db *gorm.DB, filing *filingdomain.Filing) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestTimedOutUpdateClosesStepAsFailed(t *testing.T) {
	h := newFilingHarness(t, 15, &stallingRepo{Repository: filingrepo.NewRepository()})
	key := h.key(t, "2024-07")

	f, err := h.svc.Create(context.Background(), key, "analyst")
	assert.NoError(t, err)

	opCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = h.svc.FileSubReturnA(opCtx, key.OrgID, f.ID, "AREF-1", h.fake.Now(), "analyst")
	assert.ErrorIs(t, err, filingdomain.ErrUpstreamTimeout)

	// The deadline that failed the update must not leave its entry open.
	entries, err := h.steps.ListByFiling(context.Background(), key.OrgID, f.ID)
	assert.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, stepdomain.StepFileA, last.StepType)
	assert.Equal(t, stepdomain.StepStatusFailed, last.Status)
	assert.Equal(t, "upstream_timeout", *last.ErrorCode)
}

func TestListOverdueAndDueWithin(t *testing.T) {
	h := newFilingHarness(t, 13, nil)
	ctx := context.Background()

	key := h.key(t, "2024-04")
	f, err := h.svc.Create(ctx, key, "analyst")
	assert.NoError(t, err)

	// Clock starts 2024-05-01; sub-return A falls due 2024-05-11.
	due, err := h.svc.ListDueWithin(ctx, key.OrgID, 15)
	assert.NoError(t, err)
	assert.Len(t, due, 1)
	assert.Equal(t, f.ID, due[0].ID)

	overdue, err := h.svc.ListOverdue(ctx, key.OrgID)
	assert.NoError(t, err)
	assert.Empty(t, overdue)

	h.fake.Advance(30 * 24 * time.Hour)
	overdue, err = h.svc.ListOverdue(ctx, key.OrgID)
	assert.NoError(t, err)
	assert.Len(t, overdue, 1)

	_, err = h.svc.ListDueWithin(ctx, key.OrgID, -1)
	assert.ErrorIs(t, err, filingdomain.ErrValidation)
}

func TestListByClientFY(t *testing.T) {
	h := newFilingHarness(t, 14, nil)
	ctx := context.Background()

	orgID := h.node.Generate()
	clientID := h.node.Generate()
	for _, token := range []string{"2024-04", "2024-05", "2024-06"} {
		key, err := period.KeyFor(orgID, clientID, token)
		assert.NoError(t, err)
		_, err = h.svc.Create(ctx, key, "analyst")
		assert.NoError(t, err)
	}

	filings, err := h.svc.ListByClientFY(ctx, orgID, clientID, "2024-25")
	assert.NoError(t, err)
	assert.Len(t, filings, 3)
	assert.Equal(t, "2024-04", filings[0].Period)
	assert.Equal(t, "2024-06", filings[2].Period)

	_, err = h.svc.ListByClientFY(ctx, orgID, clientID, "2024-99")
	assert.ErrorIs(t, err, filingdomain.ErrValidation)
}
