// Package domain holds the read-only view over raw purchase/sale records.
// The engine never writes these; ingestion belongs to the document pipeline.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type RecordType string

const (
	RecordTypePurchase RecordType = "purchase"
	RecordTypeSale     RecordType = "sale"
)

// SourceRecord is one purchase or sale line item for a client period.
// Tax amounts are minor currency units.
type SourceRecord struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	OrgID           snowflake.ID `gorm:"not null;index:ix_source_records_period,priority:1"`
	ClientID        snowflake.ID `gorm:"not null;index:ix_source_records_period,priority:2"`
	Period          string       `gorm:"type:text;not null;index:ix_source_records_period,priority:3"`
	RecordType      RecordType   `gorm:"type:text;not null"`
	CounterpartyTIN *string      `gorm:"column:counterparty_tin;type:text"`
	DocumentNumber  *string      `gorm:"type:text"`
	Amount          int64        `gorm:"not null"`
	CentralTax      int64        `gorm:"not null"`
	StateTax        int64        `gorm:"not null"`
	IntegratedTax   int64        `gorm:"not null"`
	RecordedAt      time.Time    `gorm:"not null"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SourceRecord) TableName() string { return "source_records" }

// Reader exposes period-scoped queries over source records.
type Reader interface {
	QueryRecords(ctx context.Context, orgID, clientID snowflake.ID, periodToken string) ([]SourceRecord, error)
	LatestRecordedAt(ctx context.Context, orgID, clientID snowflake.ID, periodToken string) (*time.Time, error)
}
