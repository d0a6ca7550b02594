package convmem

import (
	"github.com/edgebank/assist/internal/convmem/repository"
	"github.com/edgebank/assist/internal/convmem/service"
	"go.uber.org/fx"
)

var Module = fx.Module("convmem",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
