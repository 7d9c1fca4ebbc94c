package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, step *FilingStep) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FilingStep, error)
	// FinishOpen moves an open entry to a terminal status. It must not touch
	// entries that are already terminal; implementations report affected rows.
	FinishOpen(ctx context.Context, db *gorm.DB, step *FilingStep) (int64, error)
	ListByFiling(ctx context.Context, db *gorm.DB, orgID, filingID snowflake.ID) ([]FilingStep, error)
	// ListByFilingPage fetches up to limit+1 entries after the cursor so the
	// caller can derive has_more.
	ListByFilingPage(ctx context.Context, db *gorm.DB, orgID, filingID snowflake.ID, cursor *pagination.Cursor, limit int) ([]*FilingStep, error)
}
