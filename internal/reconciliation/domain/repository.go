package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/period"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rec *Reconciliation) error
	FindByPeriodKey(ctx context.Context, db *gorm.DB, key period.Key) (*Reconciliation, error)
	Update(ctx context.Context, db *gorm.DB, rec *Reconciliation) error
	ListByClientFY(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID, fiscalYear string) ([]Reconciliation, error)
}
