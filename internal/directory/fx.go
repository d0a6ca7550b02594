package directory

import (
	"github.com/edgebank/assist/internal/directory/repository"
	"github.com/edgebank/assist/internal/directory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("directory",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
