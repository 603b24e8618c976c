package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values match everything.
type TransactionFilter struct {
	AccountID string
	Kind      core.Kind
	Tag       string
	Limit     int
	Offset    int
}

// Ports implemented by the storage adapters.
type (
	// Reader exposes lookups. Missing entities are reported as core.NotFoundError.
	Reader interface {
		GetAccount(ctx context.Context, id string) (core.Account, error)
		ListAccounts(ctx context.Context) ([]core.Account, error)

		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// ListTransactions returns matches ordered by creation time, oldest first.
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)

		GetCategory(ctx context.Context, id string) (core.Category, error)
		FindCategory(ctx context.Context, key core.CategoryKey) (core.Category, error)
		// ListCategories lists the categories of accountID, or all when empty.
		ListCategories(ctx context.Context, accountID string) ([]core.Category, error)

		GetGoal(ctx context.Context, id string) (core.Goal, error)
		// ListGoals lists the goals of accountID, or all when empty.
		ListGoals(ctx context.Context, accountID string) ([]core.Goal, error)
	}

	// UnitOfWork groups reads and writes that become visible together on Commit.
	// Reads made through a unit observe its own pending writes.
	UnitOfWork interface {
		Reader

		CreateAccount(ctx context.Context, a core.Account) error
		UpdateAccount(ctx context.Context, a core.Account) error
		DeleteAccount(ctx context.Context, id string) error
		// CountAccountDependents counts transactions, categories and goals referencing the account.
		CountAccountDependents(ctx context.Context, accountID string) (int, error)

		CreateTransaction(ctx context.Context, t core.Transaction) error
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error

		CreateCategory(ctx context.Context, c core.Category) error
		UpdateCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, id string) error
		// UpsertCategoryDelta adds delta to the category keyed by key, creating it at zero first.
		UpsertCategoryDelta(ctx context.Context, key core.CategoryKey, delta decimal.Decimal, at time.Time) (core.Category, error)
		// SetCategoryBalance overwrites the balance of the category keyed by key, creating it if needed.
		SetCategoryBalance(ctx context.Context, key core.CategoryKey, balance decimal.Decimal, at time.Time) (core.Category, error)

		CreateGoal(ctx context.Context, g core.Goal) error
		UpdateGoal(ctx context.Context, g core.Goal) error
		DeleteGoal(ctx context.Context, id string) error

		Commit() error
		Rollback() error
	}

	// Store is the durable aggregate store.
	Store interface {
		Reader
		// Begin opens a unit of work. It blocks while another unit holds the
		// write lock, bounded by ctx and the adapter's lock timeout.
		Begin(ctx context.Context) (UnitOfWork, error)
		Ping(ctx context.Context) error
		Close() error
	}
)
