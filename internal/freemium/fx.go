package freemium

import (
	"github.com/mi42hq/mi42/internal/freemium/service"
	"go.uber.org/fx"
)

var Module = fx.Module("freemium",
	fx.Provide(service.Provide),
)
