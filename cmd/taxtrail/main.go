package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/clock"
	"github.com/complyops/taxtrail/internal/config"
	"github.com/complyops/taxtrail/internal/migration"
	"github.com/complyops/taxtrail/internal/scheduler"
	"github.com/complyops/taxtrail/internal/server"
	"github.com/complyops/taxtrail/pkg/db"
	"github.com/complyops/taxtrail/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains; server.Module pulls in the engine modules.
		server.Module,
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
