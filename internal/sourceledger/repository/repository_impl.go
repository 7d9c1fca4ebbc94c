package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/complyops/taxtrail/internal/sourceledger/domain"
	"gorm.io/gorm"
)

type reader struct {
	db *gorm.DB
}

func NewReader(db *gorm.DB) ledgerdomain.Reader {
	return &reader{db: db}
}

func (r *reader) QueryRecords(ctx context.Context, orgID, clientID snowflake.ID, periodToken string) ([]ledgerdomain.SourceRecord, error) {
	var records []ledgerdomain.SourceRecord
	err := r.db.WithContext(ctx).
		Model(&ledgerdomain.SourceRecord{}).
		Where("org_id = ? AND client_id = ? AND period = ?", orgID, clientID, periodToken).
		Order("recorded_at asc, id asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *reader) LatestRecordedAt(ctx context.Context, orgID, clientID snowflake.ID, periodToken string) (*time.Time, error) {
	var latest *time.Time
	err := r.db.WithContext(ctx).
		Model(&ledgerdomain.SourceRecord{}).
		Where("org_id = ? AND client_id = ? AND period = ?", orgID, clientID, periodToken).
		Select("MAX(recorded_at)").
		Scan(&latest).Error
	if err != nil {
		return nil, err
	}
	return latest, nil
}
