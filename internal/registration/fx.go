package registration

import (
	"github.com/mi42hq/mi42/internal/registration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("registration",
	fx.Provide(service.Provide),
)
