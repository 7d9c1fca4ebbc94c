package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/stepledger/domain"
	"github.com/complyops/taxtrail/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, step *domain.FilingStep) error {
	if step == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO filing_steps (
			id, org_id, filing_id, step_type, status, performed_by,
			started_at, completed_at, comments, changes, error_code, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID,
		step.OrgID,
		step.FilingID,
		step.StepType,
		step.Status,
		step.PerformedBy,
		step.StartedAt,
		step.CompletedAt,
		step.Comments,
		step.Changes,
		step.ErrorCode,
		step.ErrorMessage,
		step.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FilingStep, error) {
	var step domain.FilingStep
	err := db.WithContext(ctx).
		Model(&domain.FilingStep{}).
		Where("id = ?", id).
		First(&step).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}

// FinishOpen guards append-only at the storage boundary: the UPDATE matches
// only non-terminal rows, so a terminal entry is never rewritten.
func (r *repo) FinishOpen(ctx context.Context, db *gorm.DB, step *domain.FilingStep) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE filing_steps
		 SET status = ?, completed_at = ?, comments = ?, changes = ?, error_code = ?, error_message = ?
		 WHERE id = ? AND status IN (?, ?)`,
		step.Status,
		step.CompletedAt,
		step.Comments,
		step.Changes,
		step.ErrorCode,
		step.ErrorMessage,
		step.ID,
		domain.StepStatusPending,
		domain.StepStatusInProgress,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) ListByFilingPage(ctx context.Context, db *gorm.DB, orgID, filingID snowflake.ID, cursor *pagination.Cursor, limit int) ([]*domain.FilingStep, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.FilingStep{}).
		Where("org_id = ? AND filing_id = ?", orgID, filingID)
	if cursor != nil && cursor.CreatedAt != "" {
		after, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, err
		}
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("created_at > ? OR (created_at = ? AND id > ?)", after, after, afterID)
	}

	var steps []*domain.FilingStep
	err := stmt.
		Order("created_at asc, id asc").
		Limit(limit + 1).
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *repo) ListByFiling(ctx context.Context, db *gorm.DB, orgID, filingID snowflake.ID) ([]domain.FilingStep, error) {
	var steps []domain.FilingStep
	err := db.WithContext(ctx).
		Model(&domain.FilingStep{}).
		Where("org_id = ? AND filing_id = ?", orgID, filingID).
		Order("created_at asc, id asc").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}
