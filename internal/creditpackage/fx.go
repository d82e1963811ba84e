package creditpackage

import (
	"github.com/mi42hq/mi42/internal/creditpackage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("creditpackage",
	fx.Provide(service.Provide),
)
