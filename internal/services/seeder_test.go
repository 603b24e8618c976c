package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"saldo/internal/core"
	"saldo/internal/storage/memory"
)

func TestGoalSeeder_Seed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	var ids []string
	for i := 0; i < 9; i++ {
		ids = append(ids, env.account(t, fmt.Sprintf("user%d", i)).ID)
	}
	if _, err := env.goals.Create(ctx, NewGoal{AccountID: ids[0], Title: "Own goal", TargetAmount: d("5")}); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	seeder := NewGoalSeeder(env.store, SeedConfig{Title: "Emergency fund", Target: d("1000"), Concurrency: 3})
	report, err := seeder.Seed(ctx)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if report.Accounts != 9 || report.Seeded != 8 || report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("unexpected report %+v", report)
	}

	for _, id := range ids {
		goals, err := env.store.ListGoals(ctx, id)
		if err != nil {
			t.Fatalf("list goals: %v", err)
		}
		if len(goals) != 1 {
			t.Errorf("account %s has %d goals", id, len(goals))
		}
	}

	again, err := seeder.Seed(ctx)
	if err != nil {
		t.Fatalf("second Seed() error = %v", err)
	}
	if again.Seeded != 0 || again.Skipped != 9 {
		t.Errorf("second pass should skip everything, got %+v", again)
	}
}

func TestGoalSeeder_InvalidConfig(t *testing.T) {
	seeder := NewGoalSeeder(memory.New(), SeedConfig{Title: "", Target: d("10")})
	if _, err := seeder.Seed(context.Background()); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGoalSeeder_ReportsFailures(t *testing.T) {
	store := &faultyStore{Store: memory.New()}
	env := newTestEnv(t, store)
	env.account(t, "a")
	env.account(t, "b")

	store.failCommit = errDiskFull
	report, err := NewGoalSeeder(store, SeedConfig{Title: "Fund", Target: d("1")}).Seed(context.Background())
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected joined disk error, got %v", err)
	}
	if report.Failed != 2 || report.Seeded != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}
