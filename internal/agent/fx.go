package agent

import (
	"github.com/mi42hq/mi42/internal/agent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("agent",
	fx.Provide(service.Provide),
)
