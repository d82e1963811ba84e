package briefing

import (
	"github.com/mi42hq/mi42/internal/briefing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("briefing",
	fx.Provide(service.Provide),
)
