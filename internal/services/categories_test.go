package services

import (
	"context"
	"errors"
	"testing"

	"saldo/internal/core"
)

func TestCategoryService_Create(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	a := env.account(t, "cat")
	env.transact(t, a.ID, core.Expense, "25", "books")

	t.Run("duplicate natural key conflicts", func(t *testing.T) {
		_, err := env.categories.Create(ctx, NewCategory{AccountID: a.ID, Name: "books", Kind: core.Expense})
		if !errors.Is(err, core.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("same name other kind is distinct", func(t *testing.T) {
		c, err := env.categories.Create(ctx, NewCategory{AccountID: a.ID, Name: "books", Kind: core.Income})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		assertDecimal(t, "balance", c.Balance, d("0"))
	})

	t.Run("validation and unknown account", func(t *testing.T) {
		if _, err := env.categories.Create(ctx, NewCategory{AccountID: a.ID, Name: " ", Kind: core.Expense}); !errors.Is(err, core.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
		if _, err := env.categories.Create(ctx, NewCategory{AccountID: "ghost", Name: "x", Kind: core.Expense}); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("new category picks up later transactions", func(t *testing.T) {
		c, err := env.categories.Create(ctx, NewCategory{AccountID: a.ID, Name: "rent", Kind: core.Expense})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		env.transact(t, a.ID, core.Expense, "700", "rent")
		got, err := env.categories.Get(ctx, c.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		assertDecimal(t, "rent", got.Balance, d("700"))
	})
}

func TestCategoryService_UpdateKeepsTotalsConsistent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	a := env.account(t, "rename")
	env.transact(t, a.ID, core.Expense, "40", "food")
	env.transact(t, a.ID, core.Expense, "5", "snacks")

	food, err := env.store.FindCategory(ctx, core.CategoryKey{AccountID: a.ID, Name: "food", Kind: core.Expense})
	if err != nil {
		t.Fatalf("find category: %v", err)
	}

	taken := "snacks"
	if _, err := env.categories.Update(ctx, food.ID, CategoryChanges{Name: &taken}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	name := "groceries"
	renamed, err := env.categories.Update(ctx, food.ID, CategoryChanges{Name: &name})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if renamed.Name != "groceries" {
		t.Errorf("name = %q", renamed.Name)
	}
	assertDecimal(t, "groceries", renamed.Balance, d("0"))
	assertConsistent(t, env.store, a.ID)
	assertDecimal(t, "food recreated", env.categoryBalance(t, a.ID, "food", core.Expense), d("40"))
}

func TestCategoryService_Delete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	a := env.account(t, "deleter")
	env.transact(t, a.ID, core.Expense, "9", "used")

	used, _ := env.store.FindCategory(ctx, core.CategoryKey{AccountID: a.ID, Name: "used", Kind: core.Expense})
	if err := env.categories.Delete(ctx, used.ID); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	unused, err := env.categories.Create(ctx, NewCategory{AccountID: a.ID, Name: "unused", Kind: core.Income})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := env.categories.Delete(ctx, unused.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.categories.Get(ctx, unused.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCategoryService_SummaryAndCategorized(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	a := env.account(t, "summary")
	env.transact(t, a.ID, core.Income, "1000", "salary")
	env.transact(t, a.ID, core.Expense, "300", "food", "family")
	env.transact(t, a.ID, core.Expense, "50", "food")
	env.transact(t, a.ID, core.Expense, "10")

	s, err := env.categories.Summary(ctx, a.ID)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	assertDecimal(t, "income", s.TotalIncome, d("1000"))
	assertDecimal(t, "expense", s.TotalExpense, d("650"))
	assertDecimal(t, "net", s.Net, d("350"))
	if len(s.ByCategory) != 3 || s.ByCategory[0].Name != "salary" {
		t.Errorf("unexpected breakdown %+v", s.ByCategory)
	}

	groups, err := env.categories.Categorized(ctx, a.ID)
	if err != nil {
		t.Fatalf("Categorized() error = %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[1].Name != "food" || len(groups[1].Transactions) != 2 {
		t.Errorf("food group = %+v", groups[1])
	}
	assertDecimal(t, "food total", groups[1].Total, d("350"))

	if _, err := env.categories.Summary(ctx, "ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	regenerated, err := env.categories.Regenerate(ctx, a.ID)
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if len(regenerated) != 3 {
		t.Errorf("Regenerate() returned %d categories", len(regenerated))
	}
}
