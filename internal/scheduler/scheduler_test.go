package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/clock"
	"github.com/complyops/taxtrail/internal/config"
	filingdomain "github.com/complyops/taxtrail/internal/filing/domain"
	filingrepo "github.com/complyops/taxtrail/internal/filing/repository"
	"github.com/complyops/taxtrail/internal/period"
	recondomain "github.com/complyops/taxtrail/internal/reconciliation/domain"
	reconrepo "github.com/complyops/taxtrail/internal/reconciliation/repository"
	reconservice "github.com/complyops/taxtrail/internal/reconciliation/service"
	sourcedomain "github.com/complyops/taxtrail/internal/sourceledger/domain"
	sourcerepo "github.com/complyops/taxtrail/internal/sourceledger/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupSchedulerDB(t *testing.T) *gorm.DB {
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
	db.Exec(`CREATE TABLE IF NOT EXISTS reconciliations (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		period TEXT NOT NULL,
		fiscal_year TEXT NOT NULL,
		claimed_credit BIGINT NOT NULL DEFAULT 0,
		claimed_source_count INT NOT NULL DEFAULT 0,
		claimed_central_tax BIGINT NOT NULL DEFAULT 0,
		claimed_state_tax BIGINT NOT NULL DEFAULT 0,
		claimed_integrated_tax BIGINT NOT NULL DEFAULT 0,
		counterparty_reported_credit BIGINT,
		pending_credit BIGINT,
		rejected_credit BIGINT,
		discrepancy BIGINT NOT NULL DEFAULT 0,
		discrepancy_pct DOUBLE NOT NULL DEFAULT 0,
		discrepancy_reason TEXT NOT NULL,
		has_discrepancy BOOLEAN NOT NULL DEFAULT false,
		needs_review BOOLEAN NOT NULL DEFAULT false,
		resolution TEXT,
		resolved_at TIMESTAMP,
		resolved_by TEXT,
		computed_at TIMESTAMP,
		synced_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS source_records (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		period TEXT NOT NULL,
		record_type TEXT NOT NULL,
		counterparty_tin TEXT,
		document_number TEXT,
		amount BIGINT NOT NULL DEFAULT 0,
		central_tax BIGINT NOT NULL DEFAULT 0,
		state_tax BIGINT NOT NULL DEFAULT 0,
		integrated_tax BIGINT NOT NULL DEFAULT 0,
		recorded_at TIMESTAMP NOT NULL,
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

type schedulerHarness struct {
	db    *gorm.DB
	node  *snowflake.Node
	fake  *clock.FakeClock
	sched *Scheduler
	repo  filingdomain.Repository
}

func newSchedulerHarness(t *testing.T, nodeID int64) *schedulerHarness {
	db := setupSchedulerDB(t)
	node, err := snowflake.NewNode(nodeID)
	assert.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)
	repo := filingrepo.NewRepository()
	reconRepo := reconrepo.NewRepository()
	ledger := sourcerepo.NewReader(db)

	reconSvc := reconservice.NewService(reconservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  fake,
		Config: config.Config{OpTimeoutSeconds: 10},
		Repo:   reconRepo,
		Ledger: ledger,
	})

	sched, err := New(Params{
		DB:         db,
		Log:        log,
		Clock:      fake,
		FilingRepo: repo,
		ReconSvc:   reconSvc,
		ReconRepo:  reconRepo,
		Ledger:     ledger,
		Config:     DefaultConfig(),
	})
	assert.NoError(t, err)
	return &schedulerHarness{db: db, node: node, fake: fake, sched: sched, repo: repo}
}

func (h *schedulerHarness) seedFiling(t *testing.T, key period.Key) *filingdomain.Filing {
	month, err := period.ParsePeriod(key.Period)
	assert.NoError(t, err)
	aDue, bDue := filingdomain.DueDates(month, 11, 20)
	now := h.fake.Now()
	f := &filingdomain.Filing{
		ID:             h.node.Generate(),
		OrgID:          key.OrgID,
		ClientID:       key.ClientID,
		Period:         key.Period,
		FiscalYear:     key.FiscalYear,
		WorkflowStatus: filingdomain.StatusDraft,
		FilingStatus:   filingdomain.FilingStatusPending,
		SubReturnA:     filingdomain.SubReturn{DueDate: aDue},
		SubReturnB:     filingdomain.SubReturn{DueDate: bDue},
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	assert.NoError(t, h.db.Create(f).Error)
	return f
}

func TestStatusSweepFlipsOverdue(t *testing.T) {
	h := newSchedulerHarness(t, 30)
	key, err := period.KeyFor(h.node.Generate(), h.node.Generate(), "2024-04")
	assert.NoError(t, err)
	f := h.seedFiling(t, key)

	// Nothing due yet: the sweep leaves the record alone.
	assert.NoError(t, h.sched.RunOnce(context.Background()))
	reloaded, err := h.repo.FindByID(context.Background(), h.db, key.OrgID, f.ID)
	assert.NoError(t, err)
	assert.Equal(t, filingdomain.FilingStatusPending, reloaded.FilingStatus)
	assert.Equal(t, int64(1), reloaded.Version)

	// Past both due dates the projection flips to overdue.
	h.fake.Advance(45 * 24 * time.Hour)
	assert.NoError(t, h.sched.RunOnce(context.Background()))
	reloaded, err = h.repo.FindByID(context.Background(), h.db, key.OrgID, f.ID)
	assert.NoError(t, err)
	assert.Equal(t, filingdomain.FilingStatusOverdue, reloaded.FilingStatus)
	assert.Equal(t, int64(2), reloaded.Version)
}

func TestClaimedSweepRecomputesStaleCaches(t *testing.T) {
	h := newSchedulerHarness(t, 31)
	key, err := period.KeyFor(h.node.Generate(), h.node.Generate(), "2024-04")
	assert.NoError(t, err)
	h.seedFiling(t, key)

	record := sourcedomain.SourceRecord{
		ID:         h.node.Generate(),
		OrgID:      key.OrgID,
		ClientID:   key.ClientID,
		Period:     key.Period,
		RecordType: sourcedomain.RecordTypePurchase,
		Amount:     20000,
		CentralTax: 10000,
		StateTax:   10000,
		RecordedAt: h.fake.Now(),
		CreatedAt:  h.fake.Now(),
	}
	assert.NoError(t, h.db.Create(&record).Error)

	assert.NoError(t, h.sched.RunOnce(context.Background()))

	var rec recondomain.Reconciliation
	err = h.db.Model(&recondomain.Reconciliation{}).
		Where("org_id = ? AND client_id = ? AND period = ?", key.OrgID, key.ClientID, key.Period).
		First(&rec).Error
	assert.NoError(t, err)
	assert.Equal(t, int64(20000), rec.ClaimedCredit)
	assert.Equal(t, 1, rec.ClaimedSourceCount)

	// A fresh cache is not recomputed on the next pass.
	computedAt := *rec.ComputedAt
	assert.NoError(t, h.sched.RunOnce(context.Background()))
	var again recondomain.Reconciliation
	assert.NoError(t, h.db.Model(&recondomain.Reconciliation{}).Where("id = ?", rec.ID).First(&again).Error)
	assert.Equal(t, computedAt.Unix(), again.ComputedAt.Unix())
}
