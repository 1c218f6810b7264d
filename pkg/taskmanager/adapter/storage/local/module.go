package local

import (
	"go.uber.org/fx"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage"
)

// Module contributes the local StorageProvider to the storage_providers group.
var Module = fx.Provide(fx.Annotate(
	NewLocalProvider,
	fx.ResultTags(`group:"`+storage.StorageProviderGroup+`"`),
))
