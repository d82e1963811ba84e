package emailverify

import (
	"github.com/mi42hq/mi42/internal/emailverify/service"
	"go.uber.org/fx"
)

var Module = fx.Module("emailverify",
	fx.Provide(service.Provide),
)
