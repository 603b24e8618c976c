package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/storage"
)

type (
	NewCategory struct {
		AccountID string
		Name      string
		Kind      core.Kind
	}

	// CategoryChanges renames a category or moves it to the other kind.
	CategoryChanges struct {
		Name *string
		Kind *core.Kind
	}
)

// CategoryService exposes categories and their per-account views. Balances
// are never written by callers; they follow the tagged transactions.
type CategoryService struct {
	store      storage.Store
	aggregator *CategoryAggregator
	logger     *log.Logger
	now        func() time.Time
}

func NewCategoryService(store storage.Store, aggregator *CategoryAggregator) *CategoryService {
	if aggregator == nil {
		aggregator = NewCategoryAggregator(store)
	}
	return &CategoryService{
		store:      store,
		aggregator: aggregator,
		logger:     log.Default(log.ComponentCategories),
		now:        time.Now,
	}
}

func (s *CategoryService) Get(ctx context.Context, id string) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, core.Infra("get category", err)
	}
	return c, nil
}

// List returns the categories of accountID, or of every account when empty.
func (s *CategoryService) List(ctx context.Context, accountID string) ([]core.Category, error) {
	if accountID != "" {
		if _, err := s.store.GetAccount(ctx, accountID); err != nil {
			return nil, core.Infra("get account", err)
		}
	}
	cats, err := s.store.ListCategories(ctx, accountID)
	if err != nil {
		return nil, core.Infra("list categories", err)
	}
	return cats, nil
}

// Create adds an empty category. Its balance starts from the transactions
// already carrying the tag, so a manual category never disagrees with them.
func (s *CategoryService) Create(ctx context.Context, in NewCategory) (core.Category, error) {
	now := s.now().UTC()
	c := core.Category{
		ID:        uuid.NewString(),
		AccountID: strings.TrimSpace(in.AccountID),
		Name:      strings.TrimSpace(in.Name),
		Kind:      in.Kind,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Validate(); err != nil {
		s.logger.LogOutcome(ctx, "Category create", err, log.NewFields().WithOperation(log.OpCreate))
		return core.Category{}, err
	}

	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		if _, err := uow.GetAccount(ctx, c.AccountID); err != nil {
			return core.Infra("get account", err)
		}
		if err := uow.CreateCategory(ctx, c); err != nil {
			return core.Infra("create category", err)
		}
		if err := s.aggregator.rebuildInUnit(ctx, uow, c.AccountID, now); err != nil {
			return err
		}
		created, err := uow.GetCategory(ctx, c.ID)
		if err != nil {
			return core.Infra("get category", err)
		}
		c = created
		return nil
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Category create", err, log.NewFields().
			WithOperation(log.OpCreate).
			With(log.FieldAccountID, c.AccountID))
		return core.Category{}, err
	}

	s.logger.InfoContext(ctx, "Category created",
		log.FieldCategoryID, c.ID,
		log.FieldAccountID, c.AccountID,
		"name", c.Name,
		log.FieldKind, string(c.Kind))
	return c, nil
}

// Update renames a category or changes its kind. The natural key must stay
// unique; balances of the account are recomputed in the same unit.
func (s *CategoryService) Update(ctx context.Context, id string, changes CategoryChanges) (core.Category, error) {
	var updated core.Category
	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		c, err := uow.GetCategory(ctx, id)
		if err != nil {
			return core.Infra("get category", err)
		}
		if changes.Name != nil {
			c.Name = strings.TrimSpace(*changes.Name)
		}
		if changes.Kind != nil {
			c.Kind = *changes.Kind
		}
		if err := c.Validate(); err != nil {
			return err
		}
		now := s.now().UTC()
		c.UpdatedAt = now
		if err := uow.UpdateCategory(ctx, c); err != nil {
			return core.Infra("update category", err)
		}
		if err := s.aggregator.rebuildInUnit(ctx, uow, c.AccountID, now); err != nil {
			return err
		}
		updated, err = uow.GetCategory(ctx, id)
		return core.Infra("get category", err)
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Category update", err, log.NewFields().
			WithOperation(log.OpUpdate).
			With(log.FieldCategoryID, id))
		return core.Category{}, err
	}

	s.logger.InfoContext(ctx, "Category updated",
		log.FieldCategoryID, id,
		"name", updated.Name,
		log.FieldKind, string(updated.Kind))
	return updated, nil
}

// Delete removes a category that no transaction contributes to. A category
// still referenced by a tag is rejected with a ConflictError.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		c, err := uow.GetCategory(ctx, id)
		if err != nil {
			return core.Infra("get category", err)
		}
		used, err := uow.ListTransactions(ctx, storage.TransactionFilter{
			AccountID: c.AccountID,
			Kind:      c.Kind,
			Tag:       c.Name,
			Limit:     1,
		})
		if err != nil {
			return core.Infra("list transactions", err)
		}
		if len(used) > 0 {
			return core.Conflict("category", "category is still referenced by transactions")
		}
		return core.Infra("delete category", uow.DeleteCategory(ctx, id))
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Category delete", err, log.NewFields().
			WithOperation(log.OpDelete).
			With(log.FieldCategoryID, id))
		return err
	}

	s.logger.InfoContext(ctx, "Category deleted", log.FieldCategoryID, id)
	return nil
}

// Summary returns income and expense totals per tag for the account.
func (s *CategoryService) Summary(ctx context.Context, accountID string) (core.CategorySummary, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return core.CategorySummary{}, core.Infra("get account", err)
	}
	cats, err := s.store.ListCategories(ctx, accountID)
	if err != nil {
		return core.CategorySummary{}, core.Infra("list categories", err)
	}
	return core.SummarizeCategories(accountID, cats), nil
}

// Regenerate rebuilds every category balance of the account from scratch.
func (s *CategoryService) Regenerate(ctx context.Context, accountID string) ([]core.Category, error) {
	return s.aggregator.RebuildForAccount(ctx, accountID)
}

// Categorized lists the account's transactions grouped by tag and kind.
func (s *CategoryService) Categorized(ctx context.Context, accountID string) ([]core.CategorizedTransactions, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, core.Infra("get account", err)
	}
	txs, err := s.store.ListTransactions(ctx, storage.TransactionFilter{AccountID: accountID})
	if err != nil {
		return nil, core.Infra("list transactions", err)
	}
	return core.GroupByCategory(txs), nil
}
