package inmemory

import (
	"testing"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/test"
)

func TestInMemoryRepositoryContract(t *testing.T) {
	test.RunRepositoryContract(t, func(t *testing.T) repository.Repository {
		return NewInMemoryRepository()
	})
}
