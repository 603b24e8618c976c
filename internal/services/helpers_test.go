package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/storage"
	"saldo/internal/storage/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// faultyStore fails a chosen unit step so abort paths can be observed.
type faultyStore struct {
	*memory.Store
	failUpsert error
	failCommit error
}

func (s *faultyStore) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	uow, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyUnit{UnitOfWork: uow, store: s}, nil
}

type faultyUnit struct {
	storage.UnitOfWork
	store *faultyStore
}

func (u *faultyUnit) UpsertCategoryDelta(ctx context.Context, key core.CategoryKey, delta decimal.Decimal, at time.Time) (core.Category, error) {
	if u.store.failUpsert != nil {
		return core.Category{}, u.store.failUpsert
	}
	return u.UnitOfWork.UpsertCategoryDelta(ctx, key, delta, at)
}

func (u *faultyUnit) Commit() error {
	if u.store.failCommit != nil {
		_ = u.UnitOfWork.Rollback()
		return u.store.failCommit
	}
	return u.UnitOfWork.Commit()
}

var errDiskFull = errors.New("disk full")

type testEnv struct {
	store      storage.Store
	ledger     *LedgerService
	accounts   *AccountService
	categories *CategoryService
	goals      *GoalService
	events     *recordingPublisher
}

func newTestEnv(t *testing.T, store storage.Store) *testEnv {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	events := &recordingPublisher{}
	agg := NewCategoryAggregator(store)
	return &testEnv{
		store:      store,
		ledger:     NewLedgerService(store, agg, events),
		accounts:   NewAccountService(store),
		categories: NewCategoryService(store, agg),
		goals:      NewGoalService(store),
		events:     events,
	}
}

func (e *testEnv) account(t *testing.T, username string) core.Account {
	t.Helper()
	a, err := e.accounts.Create(context.Background(), NewAccount{Username: username, Email: username + "@example.com"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func (e *testEnv) transact(t *testing.T, accountID string, kind core.Kind, amount string, tags ...string) core.Transaction {
	t.Helper()
	tx, err := e.ledger.CreateTransaction(context.Background(), NewTransaction{
		AccountID: accountID,
		Kind:      kind,
		Amount:    d(amount),
		Tags:      tags,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

func (e *testEnv) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	a, err := e.store.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return a.Balance
}

func (e *testEnv) categoryBalance(t *testing.T, accountID, name string, kind core.Kind) decimal.Decimal {
	t.Helper()
	c, err := e.store.FindCategory(context.Background(), core.CategoryKey{AccountID: accountID, Name: name, Kind: kind})
	if err != nil {
		t.Fatalf("find category %s/%s: %v", name, kind, err)
	}
	return c.Balance
}

func assertDecimal(t *testing.T, what string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}

// expectedState recomputes balance and category totals from the stored transactions.
func expectedState(t *testing.T, store storage.Store, accountID string) (decimal.Decimal, map[core.CategoryKey]decimal.Decimal) {
	t.Helper()
	txs, err := store.ListTransactions(context.Background(), storage.TransactionFilter{AccountID: accountID})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	balance := decimal.Zero
	totals := map[core.CategoryKey]decimal.Decimal{}
	for _, tx := range txs {
		balance = balance.Add(tx.BalanceDelta())
		for _, key := range tx.CategoryKeys() {
			totals[key] = totals[key].Add(tx.Amount)
		}
	}
	return balance, totals
}

func assertConsistent(t *testing.T, store storage.Store, accountID string) {
	t.Helper()
	ctx := context.Background()
	wantBalance, wantTotals := expectedState(t, store, accountID)

	acct, err := store.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	assertDecimal(t, "account balance", acct.Balance, wantBalance)

	cats, err := store.ListCategories(ctx, accountID)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	for _, c := range cats {
		assertDecimal(t, "category "+c.Name+"/"+string(c.Kind), c.Balance, wantTotals[c.Key()])
		delete(wantTotals, c.Key())
	}
	for key, total := range wantTotals {
		t.Errorf("missing category %s/%s with total %s", key.Name, key.Kind, total)
	}
}
