package systemlog

import (
	"github.com/mi42hq/mi42/internal/systemlog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("systemlog",
	fx.Provide(service.Provide),
)
