package reconciliation

import (
	"github.com/complyops/taxtrail/internal/reconciliation/repository"
	"github.com/complyops/taxtrail/internal/reconciliation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
