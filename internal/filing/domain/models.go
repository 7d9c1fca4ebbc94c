// Package domain owns the filing record and its workflow state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// WorkflowStatus is the authoritative lifecycle state of a filing.
type WorkflowStatus string

const (
	StatusDraft               WorkflowStatus = "draft"
	StatusSubReturnAFiled     WorkflowStatus = "sub_return_a_filed"
	StatusSubReturnBFiled     WorkflowStatus = "sub_return_b_filed"
	StatusLocked              WorkflowStatus = "locked"
	StatusAmendmentInProgress WorkflowStatus = "amendment_in_progress"
)

// ValidWorkflowStatus rejects unknown values at the boundary.
func ValidWorkflowStatus(s WorkflowStatus) bool {
	switch s {
	case StatusDraft, StatusSubReturnAFiled, StatusSubReturnBFiled,
		StatusLocked, StatusAmendmentInProgress:
		return true
	}
	return false
}

// FilingStatus is a derived projection of timeliness, recomputed on every
// relevant write. It is never authoritative on its own.
type FilingStatus string

const (
	FilingStatusPending FilingStatus = "pending"
	FilingStatusFiled   FilingStatus = "filed"
	FilingStatusLate    FilingStatus = "late"
	FilingStatusOverdue FilingStatus = "overdue"
)

// SubReturn carries one of the two linked returns that close out a period.
type SubReturn struct {
	Filed           bool       `gorm:"not null;default:false"`
	FiledDate       *time.Time `gorm:""`
	ReferenceNumber *string    `gorm:"type:text"`
	DueDate         time.Time  `gorm:"not null"`
}

// FiledLate reports whether the return was filed past its due date.
func (r SubReturn) FiledLate() bool {
	return r.Filed && r.FiledDate != nil && r.FiledDate.After(r.DueDate)
}

// Filing is the compliance obligation for one period key. It is mutated
// only through the orchestrator; a locked filing is immutable except via
// the amendment path.
type Filing struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"not null;uniqueIndex:ux_filings_period_key,priority:1"`
	ClientID   snowflake.ID `gorm:"not null;uniqueIndex:ux_filings_period_key,priority:2"`
	Period     string       `gorm:"type:text;not null;uniqueIndex:ux_filings_period_key,priority:3"`
	FiscalYear string       `gorm:"type:text;not null;uniqueIndex:ux_filings_period_key,priority:4"`

	WorkflowStatus WorkflowStatus `gorm:"type:text;not null"`
	FilingStatus   FilingStatus   `gorm:"type:text;not null"`

	SubReturnA SubReturn `gorm:"embedded;embeddedPrefix:sub_return_a_"`
	SubReturnB SubReturn `gorm:"embedded;embeddedPrefix:sub_return_b_"`

	TaxPaid           int64 `gorm:"not null;default:0"`
	LateFee           int64 `gorm:"not null;default:0"`
	Interest          int64 `gorm:"not null;default:0"`
	LateFeeCalculated bool  `gorm:"not null;default:false"`

	IsLocked   bool       `gorm:"not null;default:false"`
	LockedAt   *time.Time `gorm:""`
	LockedBy   *string    `gorm:"type:text"`
	LockReason *string    `gorm:"type:text"`

	// Version is the optimistic concurrency token; every successful update
	// increments it and stale writers lose.
	Version int64 `gorm:"not null;default:1"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Filing) TableName() string { return "filings" }

// TaxFigures is the monetary payload required when filing the summary
// sub-return.
type TaxFigures struct {
	TaxPaid       int64 `json:"tax_paid"`
	CentralTax    int64 `json:"central_tax"`
	StateTax      int64 `json:"state_tax"`
	IntegratedTax int64 `json:"integrated_tax"`
}
