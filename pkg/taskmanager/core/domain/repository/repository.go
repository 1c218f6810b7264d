// Package repository declares the persistence ports of the task manager.
//
// Every list and lookup applies the soft-delete visibility rule: rows flagged inactive are hidden,
// and batches additionally disappear with an inactive or template configuration. Lookups by id are
// the exception so that history can still be resolved for removed entities.
package repository

// Repository aggregates all persistence ports.
type Repository interface {
	Configuration
	Task
	Batch
	Run
	BatchRun

	// Close releases resources held by the repository.
	Close() error
}
