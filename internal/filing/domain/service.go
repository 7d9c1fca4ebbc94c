package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/period"
)

// Service is the workflow orchestrator: the only component allowed to
// mutate a filing. Every mutation wraps a step-ledger entry around the
// record update and publishes a domain event.
type Service interface {
	Create(ctx context.Context, key period.Key, actor string) (*Filing, error)
	FileSubReturnA(ctx context.Context, orgID, filingID snowflake.ID, reference string, filedDate time.Time, actor string) (*Filing, error)
	FileSubReturnB(ctx context.Context, orgID, filingID snowflake.ID, reference string, filedDate time.Time, figures TaxFigures, actor string) (*Filing, error)
	Lock(ctx context.Context, orgID, filingID snowflake.ID, actor, reason string) (*Filing, error)
	// Unlock reopens a locked filing for amendment. The actor role is an
	// input the caller must supply correctly; privilege is enforced upstream.
	Unlock(ctx context.Context, orgID, filingID snowflake.ID, actor, reason string) (*Filing, error)
	StartAmendment(ctx context.Context, orgID, filingID snowflake.ID, actor, reason string) (*Filing, error)
	CompleteAmendment(ctx context.Context, orgID, filingID snowflake.ID, actor string) (*Filing, error)
	// RecalculateCharges runs the pluggable late-fee/interest strategy once.
	RecalculateCharges(ctx context.Context, orgID, filingID snowflake.ID, actor string) (*Filing, error)

	GetByID(ctx context.Context, orgID, filingID snowflake.ID) (*Filing, error)
	GetByPeriod(ctx context.Context, key period.Key) (*Filing, error)
	ListByClientFY(ctx context.Context, orgID, clientID snowflake.ID, fiscalYear string) ([]Filing, error)
	ListOverdue(ctx context.Context, orgID snowflake.ID) ([]Filing, error)
	ListDueWithin(ctx context.Context, orgID snowflake.ID, days int) ([]Filing, error)
}
