package backend

import (
	"context"

	"finbits/internal/core"
)

// Repository ports. Implementations return errors wrapping core.ErrNotFound
// when a record does not exist or belongs to another owner.
type (
	BudgetRepository interface {
		// CreateBudget assigns an ID and stores the budget.
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		GetBudget(ctx context.Context, owner, id string) (core.Budget, error)
		// ListBudgets returns the owner's budgets, newest first.
		ListBudgets(ctx context.Context, owner string) ([]core.Budget, error)
		// SaveBudget replaces the whole document.
		SaveBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, owner, id string) error
	}

	BitRepository interface {
		CreateBit(ctx context.Context, b core.Bit) (core.Bit, error)
		GetBit(ctx context.Context, id string) (core.Bit, error)
		// ListBits returns bits newest first.
		ListBits(ctx context.Context, activeOnly bool) ([]core.Bit, error)
		DeleteBit(ctx context.Context, id string) error
	}

	ProgressRepository interface {
		GetProgress(ctx context.Context, userID, bitID string) (core.Progress, error)
		SaveProgress(ctx context.Context, p core.Progress) error
		DeleteProgressForBit(ctx context.Context, bitID string) error
	}

	ProfileRepository interface {
		GetProfile(ctx context.Context, userID string) (core.Profile, error)
		SaveProfile(ctx context.Context, p core.Profile) error
	}
)

// Backend represents a unified backend interface that provides all necessary operations
type Backend interface {
	BudgetRepository
	BitRepository
	ProgressRepository
	ProfileRepository
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// MongoDB specific
	MongoURI      string
	MongoDatabase string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MongoBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
