package events

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/clock"
	"github.com/complyops/taxtrail/internal/period"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupEventsDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	assert.NoError(t, err)
	db.Exec(`CREATE TABLE IF NOT EXISTS engine_events (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT,
		published BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL
	)`)
	return db
}

func TestPublishStampsClockTime(t *testing.T) {
	db := setupEventsDB(t)
	node, err := snowflake.NewNode(30)
	assert.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC))
	pub := NewOutboxPublisher(db, node, fake)

	key := period.Key{
		OrgID:      node.Generate(),
		ClientID:   node.Generate(),
		Period:     "2024-06",
		FiscalYear: "2024-25",
	}
	assert.NoError(t, pub.Publish(context.Background(), FilingCreatedTopic, key, map[string]any{
		"workflow_status": "draft",
	}))

	var row struct {
		EventType string
		CreatedAt time.Time
	}
	err = db.Raw(`SELECT event_type, created_at FROM engine_events WHERE org_id = ?`, key.OrgID).
		Scan(&row).Error
	assert.NoError(t, err)
	assert.Equal(t, FilingCreatedTopic, row.EventType)
	assert.True(t, row.CreatedAt.Equal(fake.Now()))
}
