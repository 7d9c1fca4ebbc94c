package filing

import (
	"github.com/complyops/taxtrail/internal/filing/repository"
	"github.com/complyops/taxtrail/internal/filing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("filing.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
