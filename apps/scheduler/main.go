package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/briefing"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/config"
	"github.com/mi42hq/mi42/internal/migration"
	"github.com/mi42hq/mi42/internal/observability"
	"github.com/mi42hq/mi42/internal/providers/llm"
	"github.com/mi42hq/mi42/internal/ratelimit"
	"github.com/mi42hq/mi42/internal/scheduler"
	"github.com/mi42hq/mi42/internal/systemlog"
	"github.com/mi42hq/mi42/pkg/db"
	"go.uber.org/fx"
)

// Standalone briefing scheduler. Runs the daily and weekly slot loops
// without the HTTP server; the redis slot lock keeps it from double
// generating next to a monolith instance.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		llm.Module,
		systemlog.Module,
		briefing.Module,

		scheduler.Module,
		fx.Invoke(scheduler.StartScheduler),
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
