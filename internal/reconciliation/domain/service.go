package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/period"
)

// Service is the reconciliation engine. Claimed-credit computation is
// idempotent and never touches counterparty figures; a counterparty merge
// never touches the cached claimed figures.
type Service interface {
	ComputeClaimed(ctx context.Context, key period.Key) (*Reconciliation, error)
	MergeCounterparty(ctx context.Context, key period.Key, sync SyncData) (*Reconciliation, error)
	GetAnalysis(ctx context.Context, key period.Key) (*Reconciliation, error)
	Resolve(ctx context.Context, key period.Key, resolution, actor string) (*Reconciliation, error)
	GenerateFYReport(ctx context.Context, orgID, clientID snowflake.ID, fiscalYear string) (*FYReport, error)
}

// FYReport aggregates one client's reconciliation state across a fiscal year.
type FYReport struct {
	ClientID   snowflake.ID `json:"client_id"`
	FiscalYear string       `json:"fiscal_year"`

	MonthsTracked         int     `json:"months_tracked"`
	MonthsWithDiscrepancy int     `json:"months_with_discrepancy"`
	TotalClaimed          int64   `json:"total_claimed"`
	TotalReported         int64   `json:"total_reported"`
	AvgDiscrepancyPct     float64 `json:"avg_discrepancy_pct"`

	ByReason        map[DiscrepancyReason]int `json:"by_reason"`
	Recommendations []string                  `json:"recommendations"`
}
