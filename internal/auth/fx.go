package auth

import (
	"github.com/mi42hq/mi42/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(service.Provide),
)
