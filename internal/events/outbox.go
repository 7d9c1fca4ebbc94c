package events

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/clock"
	"github.com/complyops/taxtrail/internal/period"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Domain event types emitted by the engine.
const (
	FilingCreatedTopic         = "filing.created"
	FilingStatusChangedTopic   = "filing.status_changed"
	FilingLockedTopic          = "filing.locked"
	FilingUnlockedTopic        = "filing.unlocked"
	ReconciliationSyncedTopic  = "reconciliation.synced"
	DiscrepancyDetectedTopic   = "reconciliation.discrepancy_detected"
	ReconciliationClaimedTopic = "reconciliation.claimed_computed"
)

// Module provides the outbox-backed publisher.
var Module = fx.Module("events",
	fx.Provide(NewOutboxPublisher),
)

// Publisher delivers engine events asynchronously. Delivery guarantees
// belong to the downstream relay, not the engine: publish failures are the
// caller's to log, never to fail an operation on.
type Publisher interface {
	Publish(ctx context.Context, eventType string, key period.Key, payload map[string]any) error
}

type outboxPublisher struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewOutboxPublisher(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) Publisher {
	return &outboxPublisher{
		db:    db,
		genID: genID,
		clock: clk,
	}
}

func (p *outboxPublisher) Publish(ctx context.Context, eventType string, key period.Key, payload map[string]any) error {
	body := map[string]any{
		"client_id":   key.ClientID.String(),
		"period":      key.Period,
		"fiscal_year": key.FiscalYear,
	}
	for k, v := range payload {
		if k == "" {
			continue
		}
		body[k] = v
	}

	now := p.clock.Now()
	return p.db.WithContext(ctx).Exec(
		`INSERT INTO engine_events (id, org_id, event_type, payload, published, created_at)
		 VALUES (?, ?, ?, ?, false, ?)`,
		p.genID.Generate(),
		key.OrgID,
		eventType,
		datatypes.JSONMap(body),
		now,
	).Error
}
