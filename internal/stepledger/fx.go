package stepledger

import (
	"github.com/complyops/taxtrail/internal/stepledger/repository"
	"github.com/complyops/taxtrail/internal/stepledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stepledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
