//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/storage"
)

// Integration tests require a reachable PostgreSQL database.
// Run with: SALDO_TEST_DATABASE_URL=postgres://... go test -tags=integration ./internal/storage/postgres

func openIntegrationStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := os.Getenv("SALDO_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SALDO_TEST_DATABASE_URL not set, skipping integration test")
	}
	s, err := Open(context.Background(), url, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIntegration_CategoryUpsert(t *testing.T) {
	s := openIntegrationStore(t)
	ctx := context.Background()
	key := core.CategoryKey{AccountID: uuid.NewString(), Name: "food", Kind: core.Expense}

	for _, delta := range []int64{300, 200, -100} {
		err := storage.WithinUnit(ctx, s, func(uow storage.UnitOfWork) error {
			_, err := uow.UpsertCategoryDelta(ctx, key, decimal.NewFromInt(delta), time.Now())
			return err
		})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	c, err := s.FindCategory(ctx, key)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !c.Balance.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected 400, got %s", c.Balance)
	}
}

func TestIntegration_ConcurrentBalanceUpdates(t *testing.T) {
	s := openIntegrationStore(t)
	ctx := context.Background()
	now := time.Now()
	id := uuid.NewString()
	acct := core.Account{ID: id, Username: "it-" + id, Email: id + "@example.com", Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}
	if err := storage.WithinUnit(ctx, s, func(uow storage.UnitOfWork) error { return uow.CreateAccount(ctx, acct) }); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := storage.WithinUnit(ctx, s, func(uow storage.UnitOfWork) error {
				a, err := uow.GetAccount(ctx, id)
				if err != nil {
					return err
				}
				a.Balance = a.Balance.Add(decimal.NewFromInt(1))
				return uow.UpdateAccount(ctx, a)
			})
			if err != nil {
				t.Errorf("unit: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.GetAccount(ctx, id)
	if !got.Balance.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("lost updates: %s", got.Balance)
	}

	dup := acct
	dup.ID = uuid.NewString()
	err := storage.WithinUnit(ctx, s, func(uow storage.UnitOfWork) error { return uow.CreateAccount(ctx, dup) })
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
