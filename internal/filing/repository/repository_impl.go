package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	filingdomain "github.com/complyops/taxtrail/internal/filing/domain"
	"github.com/complyops/taxtrail/internal/period"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() filingdomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, filing *filingdomain.Filing) error {
	return db.WithContext(ctx).Create(filing).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*filingdomain.Filing, error) {
	var filing filingdomain.Filing
	err := db.WithContext(ctx).
		Model(&filingdomain.Filing{}).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&filing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &filing, nil
}

func (r *repository) FindByPeriodKey(ctx context.Context, db *gorm.DB, key period.Key) (*filingdomain.Filing, error) {
	var filing filingdomain.Filing
	err := db.WithContext(ctx).
		Model(&filingdomain.Filing{}).
		Where("org_id = ? AND client_id = ? AND period = ? AND fiscal_year = ?",
			key.OrgID, key.ClientID, key.Period, key.FiscalYear).
		First(&filing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &filing, nil
}

func (r *repository) UpdateVersioned(ctx context.Context, db *gorm.DB, filing *filingdomain.Filing) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE filings SET
			workflow_status = ?,
			filing_status = ?,
			sub_return_a_filed = ?,
			sub_return_a_filed_date = ?,
			sub_return_a_reference_number = ?,
			sub_return_a_due_date = ?,
			sub_return_b_filed = ?,
			sub_return_b_filed_date = ?,
			sub_return_b_reference_number = ?,
			sub_return_b_due_date = ?,
			tax_paid = ?,
			late_fee = ?,
			interest = ?,
			late_fee_calculated = ?,
			is_locked = ?,
			locked_at = ?,
			locked_by = ?,
			lock_reason = ?,
			version = version + 1,
			updated_at = ?
		 WHERE id = ? AND version = ?`,
		filing.WorkflowStatus,
		filing.FilingStatus,
		filing.SubReturnA.Filed,
		filing.SubReturnA.FiledDate,
		filing.SubReturnA.ReferenceNumber,
		filing.SubReturnA.DueDate,
		filing.SubReturnB.Filed,
		filing.SubReturnB.FiledDate,
		filing.SubReturnB.ReferenceNumber,
		filing.SubReturnB.DueDate,
		filing.TaxPaid,
		filing.LateFee,
		filing.Interest,
		filing.LateFeeCalculated,
		filing.IsLocked,
		filing.LockedAt,
		filing.LockedBy,
		filing.LockReason,
		filing.UpdatedAt,
		filing.ID,
		filing.Version,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		filing.Version++
	}
	return result.RowsAffected, nil
}

func (r *repository) ListByClientFY(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID, fiscalYear string) ([]filingdomain.Filing, error) {
	var filings []filingdomain.Filing
	err := db.WithContext(ctx).
		Model(&filingdomain.Filing{}).
		Where("org_id = ? AND client_id = ? AND fiscal_year = ?", orgID, clientID, fiscalYear).
		Order("period asc").
		Find(&filings).Error
	if err != nil {
		return nil, err
	}
	return filings, nil
}

func (r *repository) ListOverdue(ctx context.Context, db *gorm.DB, orgID snowflake.ID, now time.Time) ([]filingdomain.Filing, error) {
	var filings []filingdomain.Filing
	err := db.WithContext(ctx).
		Model(&filingdomain.Filing{}).
		Where("org_id = ? AND is_locked = ?", orgID, false).
		Where(`(sub_return_a_filed = ? AND sub_return_a_due_date < ?)
			OR (sub_return_b_filed = ? AND sub_return_b_due_date < ?)`,
			false, now, false, now).
		Order("period asc").
		Find(&filings).Error
	if err != nil {
		return nil, err
	}
	return filings, nil
}

func (r *repository) ListDueWithin(ctx context.Context, db *gorm.DB, orgID snowflake.ID, now time.Time, days int) ([]filingdomain.Filing, error) {
	horizon := now.AddDate(0, 0, days)
	var filings []filingdomain.Filing
	err := db.WithContext(ctx).
		Model(&filingdomain.Filing{}).
		Where("org_id = ? AND is_locked = ?", orgID, false).
		Where(`(sub_return_a_filed = ? AND sub_return_a_due_date >= ? AND sub_return_a_due_date <= ?)
			OR (sub_return_b_filed = ? AND sub_return_b_due_date >= ? AND sub_return_b_due_date <= ?)`,
			false, now, horizon, false, now, horizon).
		Order("period asc").
		Find(&filings).Error
	if err != nil {
		return nil, err
	}
	return filings, nil
}

func (r *repository) ListUnlocked(ctx context.Context, db *gorm.DB, limit int) ([]filingdomain.Filing, error) {
	var filings []filingdomain.Filing
	stmt := db.WithContext(ctx).
		Model(&filingdomain.Filing{}).
		Where("is_locked = ?", false).
		Order("updated_at asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&filings).Error; err != nil {
		return nil, err
	}
	return filings, nil
}
