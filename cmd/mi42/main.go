package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/agent"
	"github.com/mi42hq/mi42/internal/auth"
	"github.com/mi42hq/mi42/internal/briefing"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/config"
	"github.com/mi42hq/mi42/internal/credit"
	"github.com/mi42hq/mi42/internal/creditpackage"
	"github.com/mi42hq/mi42/internal/emailverify"
	"github.com/mi42hq/mi42/internal/freemium"
	"github.com/mi42hq/mi42/internal/migration"
	"github.com/mi42hq/mi42/internal/observability"
	"github.com/mi42hq/mi42/internal/providers/email"
	"github.com/mi42hq/mi42/internal/providers/llm"
	"github.com/mi42hq/mi42/internal/ratelimit"
	"github.com/mi42hq/mi42/internal/registration"
	"github.com/mi42hq/mi42/internal/scheduler"
	"github.com/mi42hq/mi42/internal/server"
	"github.com/mi42hq/mi42/internal/systemlog"
	"github.com/mi42hq/mi42/internal/user"
	"github.com/mi42hq/mi42/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		// Providers
		email.Module,
		llm.Module,

		// Functional domains
		user.Module,
		credit.Module,
		creditpackage.Module,
		freemium.Module,
		emailverify.Module,
		registration.Module,
		auth.Module,
		systemlog.Module,
		briefing.Module,
		agent.Module,

		// HTTP surface and the briefing scheduler run in-process in the
		// monolith. apps/scheduler runs the scheduler standalone.
		server.Module,
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
