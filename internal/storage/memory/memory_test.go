package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/storage"
)

func TestUnitCommitMakesWritesVisible(t *testing.T) {
	ctx := context.Background()
	s := New()

	uow, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := uow.CreateAccount(ctx, core.Account{ID: "a1", Username: "ann", Email: "ann@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := uow.GetAccount(ctx, "a1"); err != nil {
		t.Fatalf("unit should read its own write: %v", err)
	}
	if _, err := s.GetAccount(ctx, "a1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("uncommitted write leaked: %v", err)
	}
	if err := uow.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.GetAccount(ctx, "a1"); err != nil {
		t.Fatalf("expected committed account: %v", err)
	}
	if err := uow.Commit(); !errors.Is(err, storage.ErrUnitClosed) {
		t.Fatalf("expected closed unit, got %v", err)
	}
}

func TestUnitRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := storage.WithinUnit(ctx, s, func(uow storage.UnitOfWork) error {
		if err := uow.CreateAccount(ctx, core.Account{ID: "a1", Username: "ann", Email: "ann@example.com"}); err != nil {
			return err
		}
		return core.Invalid("amount", core.ErrInvalidAmount)
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if accts, _ := s.ListAccounts(ctx); len(accts) != 0 {
		t.Fatalf("rollback left %d accounts", len(accts))
	}

	// The write lock must have been released.
	uow, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin after rollback: %v", err)
	}
	_ = uow.Rollback()
}

func TestWithinUnitRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()

	func() {
		defer func() { _ = recover() }()
		_ = storage.WithinUnit(ctx, s, func(uow storage.UnitOfWork) error {
			_ = uow.CreateAccount(ctx, core.Account{ID: "a1", Username: "ann", Email: "ann@example.com"})
			panic("boom")
		})
	}()

	if accts, _ := s.ListAccounts(ctx); len(accts) != 0 {
		t.Fatalf("panic left %d accounts", len(accts))
	}
	uow, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("lock not released after panic: %v", err)
	}
	_ = uow.Rollback()
}

func TestBeginTimesOutWhileLocked(t *testing.T) {
	ctx := context.Background()
	s := NewWithLockTimeout(20 * time.Millisecond)

	held, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer held.Rollback()

	if _, err := s.Begin(ctx); err == nil {
		t.Fatalf("expected timeout while another unit holds the lock")
	}
}

func TestUpsertCategoryDelta(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := core.CategoryKey{AccountID: "a1", Name: "food", Kind: core.Expense}
	now := time.Now()

	err := storage.WithinUnit(ctx, s, func(uow storage.UnitOfWork) error {
		c, err := uow.UpsertCategoryDelta(ctx, key, decimal.NewFromInt(300), now)
		if err != nil {
			return err
		}
		if !c.Balance.Equal(decimal.NewFromInt(300)) {
			t.Fatalf("expected 300, got %s", c.Balance)
		}
		c2, err := uow.UpsertCategoryDelta(ctx, key, decimal.NewFromInt(-100), now)
		if err != nil {
			return err
		}
		if c2.ID != c.ID || !c2.Balance.Equal(decimal.NewFromInt(200)) {
			t.Fatalf("expected same category at 200, got %+v", c2)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit: %v", err)
	}

	cats, _ := s.ListCategories(ctx, "a1")
	if len(cats) != 1 {
		t.Fatalf("expected a single category for the key, got %d", len(cats))
	}
}

func TestAccountUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := storage.WithinUnit(ctx, s, func(uow storage.UnitOfWork) error {
		if err := uow.CreateAccount(ctx, core.Account{ID: "a1", Username: "ann", Email: "ann@example.com"}); err != nil {
			return err
		}
		return uow.CreateAccount(ctx, core.Account{ID: "a2", Username: "ANN", Email: "other@example.com"})
	})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestListTransactionsFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := storage.WithinUnit(ctx, s, func(uow storage.UnitOfWork) error {
		txs := []core.Transaction{
			{ID: "t3", AccountID: "a1", Kind: core.Expense, Amount: decimal.NewFromInt(3), Tags: []string{"food"}, CreatedAt: base.Add(3 * time.Hour)},
			{ID: "t1", AccountID: "a1", Kind: core.Income, Amount: decimal.NewFromInt(1), CreatedAt: base.Add(time.Hour)},
			{ID: "t2", AccountID: "a2", Kind: core.Expense, Amount: decimal.NewFromInt(2), Tags: []string{"food"}, CreatedAt: base.Add(2 * time.Hour)},
		}
		for _, tx := range txs {
			if err := uow.CreateTransaction(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, _ := s.ListTransactions(ctx, storage.TransactionFilter{AccountID: "a1"})
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t3" {
		t.Fatalf("unexpected order: %+v", got)
	}
	got, _ = s.ListTransactions(ctx, storage.TransactionFilter{Tag: "food", Kind: core.Expense})
	if len(got) != 2 {
		t.Fatalf("expected 2 tagged expenses, got %d", len(got))
	}
	got, _ = s.ListTransactions(ctx, storage.TransactionFilter{Limit: 1, Offset: 1})
	if len(got) != 1 || got[0].ID != "t2" {
		t.Fatalf("unexpected page: %+v", got)
	}
}
