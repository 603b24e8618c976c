package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"saldo/internal/core"
)

func TestGoalService_Create(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	a := env.account(t, "goals")
	due := time.Date(2027, 6, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))

	g, err := env.goals.Create(ctx, NewGoal{AccountID: a.ID, Title: " Holiday ", TargetAmount: d("1500"), TargetDate: &due})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.Title != "Holiday" || g.Status != core.GoalActive || !g.SavedAmount.IsZero() {
		t.Errorf("unexpected goal %+v", g)
	}
	if g.TargetDate == nil || !g.TargetDate.Equal(due) || g.TargetDate.Location() != time.UTC {
		t.Errorf("target date = %v", g.TargetDate)
	}

	tests := []struct {
		name string
		in   NewGoal
		want error
	}{
		{"empty title", NewGoal{AccountID: a.ID, TargetAmount: d("1")}, core.ErrValidation},
		{"negative target", NewGoal{AccountID: a.ID, Title: "x", TargetAmount: d("-1")}, core.ErrValidation},
		{"unfunded completed", NewGoal{AccountID: a.ID, Title: "x", TargetAmount: d("1"), Status: core.GoalCompleted}, core.ErrValidation},
		{"bad status", NewGoal{AccountID: a.ID, Title: "x", TargetAmount: d("1"), Status: "archived"}, core.ErrValidation},
		{"unknown account", NewGoal{AccountID: "ghost", Title: "x", TargetAmount: d("1")}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.goals.Create(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGoalService_UpdateRederivesStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	a := env.account(t, "planner")
	g, err := env.goals.Create(ctx, NewGoal{AccountID: a.ID, Title: "Laptop", TargetAmount: d("1000")})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if _, err := env.ledger.AllocateFunds(ctx, g.ID, d("600"), FundsOptions{}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	paused := core.GoalPaused
	got, err := env.goals.Update(ctx, g.ID, GoalChanges{Status: &paused})
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if got.Status != core.GoalPaused {
		t.Errorf("status = %s, want paused", got.Status)
	}

	lower := d("500")
	got, err = env.goals.Update(ctx, g.ID, GoalChanges{TargetAmount: &lower})
	if err != nil {
		t.Fatalf("lower target: %v", err)
	}
	if got.Status != core.GoalCompleted || got.Progress() != 100 {
		t.Errorf("status %s progress %d, want completed at 100", got.Status, got.Progress())
	}

	higher := d("2000")
	got, err = env.goals.Update(ctx, g.ID, GoalChanges{TargetAmount: &higher, ClearTargetDate: true})
	if err != nil {
		t.Fatalf("raise target: %v", err)
	}
	if got.Status != core.GoalActive || got.Progress() != 30 {
		t.Errorf("status %s progress %d, want active at 30", got.Status, got.Progress())
	}
	assertDecimal(t, "remaining", got.Remaining(), d("1400"))

	completed := core.GoalCompleted
	if _, err := env.goals.Update(ctx, g.ID, GoalChanges{Status: &completed}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGoalService_RaiseTargetOfFundedGoal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	a := env.account(t, "saver")
	g, err := env.goals.Create(ctx, NewGoal{AccountID: a.ID, Title: "Trip", TargetAmount: d("100")})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	funded, err := env.ledger.AllocateFunds(ctx, g.ID, d("100"), FundsOptions{})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if funded.Status != core.GoalCompleted {
		t.Fatalf("status = %s, want completed", funded.Status)
	}

	title := "Longer trip"
	higher := d("300")
	got, err := env.goals.Update(ctx, g.ID, GoalChanges{Title: &title, TargetAmount: &higher})
	if err != nil {
		t.Fatalf("raise target: %v", err)
	}
	if got.Status != core.GoalActive || got.Progress() != 33 {
		t.Errorf("status %s progress %d, want active at 33", got.Status, got.Progress())
	}

	stored, err := env.goals.Get(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != core.GoalActive || stored.Title != title {
		t.Errorf("stored goal = %+v", stored)
	}

	completed := core.GoalCompleted
	if _, err := env.goals.Update(ctx, g.ID, GoalChanges{Status: &completed}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("explicit completed on unfunded goal: got %v, want validation error", err)
	}
}

func TestGoalService_DeleteAndSummary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	a := env.account(t, "summary")

	mk := func(title, target string) core.Goal {
		g, err := env.goals.Create(ctx, NewGoal{AccountID: a.ID, Title: title, TargetAmount: d(target)})
		if err != nil {
			t.Fatalf("create goal: %v", err)
		}
		return g
	}
	car := mk("Car", "400")
	mk("Phone", "100")
	spare := mk("Spare", "50")

	if _, err := env.ledger.AllocateFunds(ctx, car.ID, d("90"), FundsOptions{}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := env.goals.Delete(ctx, spare.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := env.goals.Delete(ctx, spare.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}

	s, err := env.goals.Summary(ctx, a.ID)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if s.Total != 2 || s.Active != 2 || s.Completed != 0 {
		t.Errorf("unexpected counts %+v", s)
	}
	assertDecimal(t, "total target", s.TotalTarget, d("500"))
	assertDecimal(t, "total saved", s.TotalSaved, d("90"))
	if s.Progress != 18 {
		t.Errorf("progress = %d, want 18", s.Progress)
	}
}
