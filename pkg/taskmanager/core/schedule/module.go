package schedule

import "go.uber.org/fx"

// Module provides *BatchJobService. A Scheduler and a BatchLauncher must be provided elsewhere.
var Module = fx.Provide(NewBatchJobService)
