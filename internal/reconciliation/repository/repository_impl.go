package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/period"
	recondomain "github.com/complyops/taxtrail/internal/reconciliation/domain"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() recondomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, rec *recondomain.Reconciliation) error {
	return db.WithContext(ctx).Create(rec).Error
}

func (r *repository) FindByPeriodKey(ctx context.Context, db *gorm.DB, key period.Key) (*recondomain.Reconciliation, error) {
	var rec recondomain.Reconciliation
	err := db.WithContext(ctx).
		Model(&recondomain.Reconciliation{}).
		Where("org_id = ? AND client_id = ? AND period = ? AND fiscal_year = ?",
			key.OrgID, key.ClientID, key.Period, key.FiscalYear).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, rec *recondomain.Reconciliation) error {
	return db.WithContext(ctx).Exec(
		`UPDATE reconciliations SET
			claimed_credit = ?,
			claimed_source_count = ?,
			claimed_central_tax = ?,
			claimed_state_tax = ?,
			claimed_integrated_tax = ?,
			counterparty_reported_credit = ?,
			pending_credit = ?,
			rejected_credit = ?,
			discrepancy = ?,
			discrepancy_pct = ?,
			discrepancy_reason = ?,
			has_discrepancy = ?,
			needs_review = ?,
			resolution = ?,
			resolved_at = ?,
			resolved_by = ?,
			computed_at = ?,
			synced_at = ?,
			updated_at = ?
		 WHERE id = ?`,
		rec.ClaimedCredit,
		rec.ClaimedSourceCount,
		rec.Claimed.CentralTax,
		rec.Claimed.StateTax,
		rec.Claimed.IntegratedTax,
		rec.CounterpartyReportedCredit,
		rec.PendingCredit,
		rec.RejectedCredit,
		rec.Discrepancy,
		rec.DiscrepancyPct,
		rec.DiscrepancyReason,
		rec.HasDiscrepancy,
		rec.NeedsReview,
		rec.Resolution,
		rec.ResolvedAt,
		rec.ResolvedBy,
		rec.ComputedAt,
		rec.SyncedAt,
		rec.UpdatedAt,
		rec.ID,
	).Error
}

func (r *repository) ListByClientFY(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID, fiscalYear string) ([]recondomain.Reconciliation, error) {
	var recs []recondomain.Reconciliation
	err := db.WithContext(ctx).
		Model(&recondomain.Reconciliation{}).
		Where("org_id = ? AND client_id = ? AND fiscal_year = ?", orgID, clientID, fiscalYear).
		Order("period asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}
