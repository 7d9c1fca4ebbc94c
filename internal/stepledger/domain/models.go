// Package domain holds the append-only audit trail for filing transitions.
// Every transition attempt gets exactly one entry; entries reach one
// terminal status and are never mutated afterwards.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/pkg/db/pagination"
	"gorm.io/datatypes"
)

// StepType enumerates the transition attempts recorded against a filing.
type StepType string

const (
	StepPrepareA  StepType = "prepare_a"
	StepValidateA StepType = "validate_a"
	StepFileA     StepType = "file_a"
	StepPrepareB  StepType = "prepare_b"
	StepValidateB StepType = "validate_b"
	StepFileB     StepType = "file_b"
	StepAmendment StepType = "amendment"
	StepLock      StepType = "lock"
	StepUnlock    StepType = "unlock"
)

// ValidStepType rejects unknown values at the boundary.
func ValidStepType(t StepType) bool {
	switch t {
	case StepPrepareA, StepValidateA, StepFileA,
		StepPrepareB, StepValidateB, StepFileB,
		StepAmendment, StepLock, StepUnlock:
		return true
	}
	return false
}

// StepStatus is the lifecycle of one entry.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
	StepStatusSkipped    StepStatus = "skipped"
)

// Terminal reports whether a status closes the entry for good.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	}
	return false
}

// FilingStep is one transition attempt. Steps hold the back-reference to
// the filing; the filing never embeds its steps.
type FilingStep struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	OrgID        snowflake.ID      `gorm:"not null"`
	FilingID     snowflake.ID      `gorm:"not null;index:ix_filing_steps_filing,priority:1"`
	StepType     StepType          `gorm:"type:text;not null"`
	Status       StepStatus        `gorm:"type:text;not null"`
	PerformedBy  string            `gorm:"type:text;not null"`
	StartedAt    time.Time         `gorm:"not null"`
	CompletedAt  *time.Time        `gorm:""`
	Comments     *string           `gorm:"type:text"`
	Changes      datatypes.JSONMap `gorm:"type:jsonb"`
	ErrorCode    *string           `gorm:"type:text"`
	ErrorMessage *string           `gorm:"type:text"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index:ix_filing_steps_filing,priority:2"`
}

// TableName sets the database table name.
func (FilingStep) TableName() string { return "filing_steps" }

// Change records a single field mutation inside a step's change set.
type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// ChangeSet flattens field changes into the JSON shape stored on the entry.
func ChangeSet(changes map[string]Change) datatypes.JSONMap {
	if len(changes) == 0 {
		return nil
	}
	out := datatypes.JSONMap{}
	for field, change := range changes {
		out[field] = map[string]any{
			"before": change.Before,
			"after":  change.After,
		}
	}
	return out
}

// Service is the only writer of filing steps.
type Service interface {
	// Begin opens an in_progress entry for a transition attempt.
	Begin(ctx context.Context, orgID, filingID snowflake.ID, stepType StepType, performedBy string) (*FilingStep, error)
	// Complete closes an open entry with the applied change set.
	Complete(ctx context.Context, stepID snowflake.ID, changes map[string]Change, comments string) error
	// Fail closes an open entry with error details.
	Fail(ctx context.Context, stepID snowflake.ID, errorCode, errorMessage string) error
	// Skip closes an open entry without applying anything.
	Skip(ctx context.Context, stepID snowflake.ID, comments string) error
	ListByFiling(ctx context.Context, orgID, filingID snowflake.ID) ([]FilingStep, error)
	// ListByFilingPage pages through the trail oldest-first with an opaque
	// cursor token.
	ListByFilingPage(ctx context.Context, orgID, filingID snowflake.ID, pageToken string, pageSize int) ([]*FilingStep, *pagination.PageInfo, error)
}
