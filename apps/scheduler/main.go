package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/clock"
	"github.com/complyops/taxtrail/internal/config"
	"github.com/complyops/taxtrail/internal/events"
	"github.com/complyops/taxtrail/internal/filing"
	"github.com/complyops/taxtrail/internal/latefee"
	"github.com/complyops/taxtrail/internal/migration"
	"github.com/complyops/taxtrail/internal/observability/metrics"
	"github.com/complyops/taxtrail/internal/reconciliation"
	"github.com/complyops/taxtrail/internal/scheduler"
	"github.com/complyops/taxtrail/internal/sourceledger"
	"github.com/complyops/taxtrail/internal/stepledger"
	"github.com/complyops/taxtrail/pkg/db"
	"github.com/complyops/taxtrail/pkg/log"
	"go.uber.org/fx"
)

// Standalone sweep worker. Runs the same engine modules as the API
// binary without the HTTP surface.
func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		metrics.Module,
		events.Module,
		latefee.Module,
		sourceledger.Module,
		stepledger.Module,
		filing.Module,
		reconciliation.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
