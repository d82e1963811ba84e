package credit

import (
	"github.com/mi42hq/mi42/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit",
	fx.Provide(service.Provide),
)
