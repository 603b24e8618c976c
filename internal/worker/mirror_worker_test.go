package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/amqp"
	"saldo/internal/core"
	sheetsmem "saldo/internal/sheets/memory"
	"saldo/internal/storage"
	"saldo/internal/storage/memory"
)

type failingMirror struct {
	*sheetsmem.Mirror
	err error
}

func (m *failingMirror) UpsertTransaction(ctx context.Context, t core.Transaction) error {
	return m.err
}

func seedStore(t *testing.T) (*memory.Store, core.Transaction, core.Goal) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	now := time.Now().UTC()
	acct := core.Account{ID: "acc-1", Username: "mario", Email: "mario@example.com", Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}
	tx := core.Transaction{ID: "tx-1", AccountID: acct.ID, Kind: core.Expense, Amount: decimal.NewFromInt(12), Tags: []string{"food"}, CreatedAt: now, UpdatedAt: now}
	goal := core.Goal{ID: "goal-1", AccountID: acct.ID, Title: "Bike", TargetAmount: decimal.NewFromInt(10), SavedAmount: decimal.NewFromInt(10), Status: core.GoalActive, CreatedAt: now, UpdatedAt: now}

	err := storage.WithinUnit(ctx, store, func(uow storage.UnitOfWork) error {
		if err := uow.CreateAccount(ctx, acct); err != nil {
			return err
		}
		if err := uow.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		return uow.CreateGoal(ctx, goal)
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store, tx, goal
}

func TestMirrorWorker_HandleEvent(t *testing.T) {
	ctx := context.Background()
	store, tx, goal := seedStore(t)
	mirror := sheetsmem.New()
	w := NewMirrorWorker(store, mirror)

	created := amqp.NewLedgerEvent(amqp.TransactionCreated, tx.AccountID)
	created.TransactionID = tx.ID
	if err := w.HandleEvent(ctx, created); err != nil {
		t.Fatalf("HandleEvent(created) error = %v", err)
	}
	if err := w.HandleEvent(ctx, created); err != nil {
		t.Fatalf("redelivered HandleEvent(created) error = %v", err)
	}
	if rows := mirror.Transactions(); len(rows) != 1 || rows[0].ID != tx.ID {
		t.Fatalf("mirrored transactions = %+v", rows)
	}

	allocated := amqp.NewLedgerEvent(amqp.GoalAllocated, goal.AccountID)
	allocated.GoalID = goal.ID
	if err := w.HandleEvent(ctx, allocated); err != nil {
		t.Fatalf("HandleEvent(allocated) error = %v", err)
	}
	goals := mirror.Goals()
	if len(goals) != 1 || goals[0].Status != core.GoalCompleted {
		t.Errorf("mirrored goals = %+v", goals)
	}

	deleted := amqp.NewLedgerEvent(amqp.TransactionDeleted, tx.AccountID)
	deleted.TransactionID = tx.ID
	if err := w.HandleEvent(ctx, deleted); err != nil {
		t.Fatalf("HandleEvent(deleted) error = %v", err)
	}
	if rows := mirror.Transactions(); len(rows) != 0 {
		t.Errorf("expected no mirrored transactions, got %+v", rows)
	}
}

func TestMirrorWorker_SkipsVanishedEntities(t *testing.T) {
	store, _, _ := seedStore(t)
	mirror := sheetsmem.New()
	w := NewMirrorWorker(store, mirror)

	ev := amqp.NewLedgerEvent(amqp.TransactionUpdated, "acc-1")
	ev.TransactionID = "gone"
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("expected vanished transaction to be skipped, got %v", err)
	}
	gev := amqp.NewLedgerEvent(amqp.GoalWithdrawn, "acc-1")
	gev.GoalID = "gone"
	if err := w.HandleEvent(context.Background(), gev); err != nil {
		t.Fatalf("expected vanished goal to be skipped, got %v", err)
	}
	if len(mirror.Transactions()) != 0 || len(mirror.Goals()) != 0 {
		t.Error("nothing should have been mirrored")
	}
}

func TestMirrorWorker_MirrorFailureRequeues(t *testing.T) {
	store, tx, _ := seedStore(t)
	boom := errors.New("quota exceeded")
	w := NewMirrorWorker(store, &failingMirror{Mirror: sheetsmem.New(), err: boom})

	ev := amqp.NewLedgerEvent(amqp.TransactionCreated, tx.AccountID)
	ev.TransactionID = tx.ID
	if err := w.HandleEvent(context.Background(), ev); !errors.Is(err, boom) {
		t.Fatalf("expected mirror error, got %v", err)
	}
}

func TestMirrorWorker_Reconcile(t *testing.T) {
	store, _, _ := seedStore(t)
	mirror := sheetsmem.New()
	if err := NewMirrorWorker(store, mirror).Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(mirror.Transactions()) != 1 || len(mirror.Goals()) != 1 {
		t.Errorf("reconcile mirrored %d transactions and %d goals", len(mirror.Transactions()), len(mirror.Goals()))
	}

	failing := &failingMirror{Mirror: sheetsmem.New(), err: errors.New("down")}
	if err := NewMirrorWorker(store, failing).Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() should log failures and continue, got %v", err)
	}
	if len(failing.Goals()) != 1 {
		t.Error("goals should still be mirrored when transactions fail")
	}
}
