// Package domain holds the reconciliation record: claimed input credit
// versus counterparty-reported credit for one period key.
package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
)

// DiscrepancyReason classifies why claimed and reported figures diverge.
type DiscrepancyReason string

const (
	ReasonExcessClaimed        DiscrepancyReason = "excess_claimed"
	ReasonUnclaimed            DiscrepancyReason = "unclaimed"
	ReasonCounterpartyRejected DiscrepancyReason = "counterparty_rejected"
	ReasonPendingAcceptance    DiscrepancyReason = "pending_acceptance"
	ReasonReconciled           DiscrepancyReason = "reconciled"
	ReasonAwaitingSync         DiscrepancyReason = "awaiting_sync"
)

// ClaimedBreakdown splits the claimed credit into its tax components.
type ClaimedBreakdown struct {
	CentralTax    int64 `gorm:"not null;default:0" json:"central_tax"`
	StateTax      int64 `gorm:"not null;default:0" json:"state_tax"`
	IntegratedTax int64 `gorm:"not null;default:0" json:"integrated_tax"`
}

// Total sums the component subtotals.
func (b ClaimedBreakdown) Total() int64 {
	return b.CentralTax + b.StateTax + b.IntegratedTax
}

// Reconciliation is one period key's credit reconciliation state. It has
// its own lifecycle and may exist before any filing does. The claimed
// figures are a cache; the source ledger remains the source of truth.
type Reconciliation struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"not null;uniqueIndex:ux_reconciliations_period_key,priority:1"`
	ClientID   snowflake.ID `gorm:"not null;uniqueIndex:ux_reconciliations_period_key,priority:2"`
	Period     string       `gorm:"type:text;not null;uniqueIndex:ux_reconciliations_period_key,priority:3"`
	FiscalYear string       `gorm:"type:text;not null;uniqueIndex:ux_reconciliations_period_key,priority:4"`

	ClaimedCredit      int64            `gorm:"not null;default:0"`
	ClaimedSourceCount int              `gorm:"not null;default:0"`
	Claimed            ClaimedBreakdown `gorm:"embedded;embeddedPrefix:claimed_"`

	CounterpartyReportedCredit *int64 `gorm:""`
	PendingCredit              *int64 `gorm:""`
	RejectedCredit             *int64 `gorm:""`

	Discrepancy       int64             `gorm:"not null;default:0"`
	DiscrepancyPct    float64           `gorm:"column:discrepancy_pct;not null;default:0"`
	DiscrepancyReason DiscrepancyReason `gorm:"type:text;not null"`
	HasDiscrepancy    bool              `gorm:"not null;default:false"`
	NeedsReview       bool              `gorm:"not null;default:false"`

	Resolution *string    `gorm:"type:text"`
	ResolvedAt *time.Time `gorm:""`
	ResolvedBy *string    `gorm:"type:text"`

	ComputedAt *time.Time `gorm:""`
	SyncedAt   *time.Time `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Reconciliation) TableName() string { return "reconciliations" }

// SyncData is one counterparty sync snapshot from the external portal.
type SyncData struct {
	CounterpartyReportedCredit int64 `json:"counterparty_reported_credit"`
	PendingCredit              int64 `json:"pending_credit"`
	RejectedCredit             int64 `json:"rejected_credit"`
}

// Thresholds are the tunable auto-review limits.
type Thresholds struct {
	MaxDiscrepancyPct float64
	MaxDiscrepancyAbs int64
	MaxPendingCredit  int64
	MaxRejectedCredit int64
}

// NeedsReview is true when at least one threshold is breached.
func (t Thresholds) NeedsReview(discrepancy int64, pct float64, pending, rejected int64) bool {
	if math.Abs(pct) > t.MaxDiscrepancyPct {
		return true
	}
	if discrepancy < 0 {
		discrepancy = -discrepancy
	}
	if discrepancy > t.MaxDiscrepancyAbs {
		return true
	}
	if pending > t.MaxPendingCredit {
		return true
	}
	if rejected > t.MaxRejectedCredit {
		return true
	}
	return false
}

// Classify picks the deterministic discrepancy reason for a synced record.
// Rejections explain a mismatch before pending acceptances do; a plain
// mismatch falls back to the sign of the discrepancy.
func Classify(discrepancy, pending, rejected int64) DiscrepancyReason {
	switch {
	case rejected > 0:
		return ReasonCounterpartyRejected
	case pending > 0:
		return ReasonPendingAcceptance
	case discrepancy > 0:
		return ReasonExcessClaimed
	case discrepancy < 0:
		return ReasonUnclaimed
	default:
		return ReasonReconciled
	}
}
