package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func TestMirrorUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	m := New()

	tx := core.Transaction{ID: "t1", Kind: core.Expense, Amount: decimal.NewFromInt(3), Tags: []string{"food"}}
	if err := m.UpsertTransaction(ctx, tx); err != nil {
		t.Fatalf("UpsertTransaction() error = %v", err)
	}
	tx.Amount = decimal.NewFromInt(5)
	if err := m.UpsertTransaction(ctx, tx); err != nil {
		t.Fatalf("UpsertTransaction() error = %v", err)
	}
	if err := m.UpsertTransaction(ctx, core.Transaction{ID: "t2"}); err != nil {
		t.Fatalf("UpsertTransaction() error = %v", err)
	}

	rows := m.Transactions()
	if len(rows) != 2 || rows[0].ID != "t1" || !rows[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if err := m.DeleteTransaction(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if err := m.DeleteTransaction(ctx, "missing"); err != nil {
		t.Fatalf("deleting a missing row should succeed, got %v", err)
	}
	if rows := m.Transactions(); len(rows) != 1 || rows[0].ID != "t2" {
		t.Errorf("unexpected rows after delete %+v", rows)
	}
}

func TestMirrorGoals(t *testing.T) {
	ctx := context.Background()
	m := New()
	g := core.Goal{ID: "g1", Status: core.GoalActive}
	_ = m.UpsertGoal(ctx, g)
	g.Status = core.GoalCompleted
	_ = m.UpsertGoal(ctx, g)

	goals := m.Goals()
	if len(goals) != 1 || goals[0].Status != core.GoalCompleted {
		t.Errorf("unexpected goals %+v", goals)
	}
}
