package gcs

import (
	"go.uber.org/fx"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage"
)

// Module contributes the GCS StorageProvider to the storage_providers group.
var Module = fx.Provide(fx.Annotate(
	NewGCSProvider,
	fx.ResultTags(`group:"`+storage.StorageProviderGroup+`"`),
))
