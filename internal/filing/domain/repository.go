package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/period"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, filing *Filing) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Filing, error)
	FindByPeriodKey(ctx context.Context, db *gorm.DB, key period.Key) (*Filing, error)
	// UpdateVersioned applies the full row guarded by the version the caller
	// read. Zero affected rows means a concurrent writer committed first.
	UpdateVersioned(ctx context.Context, db *gorm.DB, filing *Filing) (int64, error)
	ListByClientFY(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID, fiscalYear string) ([]Filing, error)
	ListOverdue(ctx context.Context, db *gorm.DB, orgID snowflake.ID, now time.Time) ([]Filing, error)
	ListDueWithin(ctx context.Context, db *gorm.DB, orgID snowflake.ID, now time.Time, days int) ([]Filing, error)
	// ListUnlocked feeds the scheduler's status sweep.
	ListUnlocked(ctx context.Context, db *gorm.DB, limit int) ([]Filing, error)
}
