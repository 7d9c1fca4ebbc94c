package sourceledger

import (
	"github.com/complyops/taxtrail/internal/sourceledger/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("sourceledger",
	fx.Provide(repository.NewReader),
)
