package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/storage"
)

// DefaultSeedConcurrency bounds how many accounts are seeded in parallel.
const DefaultSeedConcurrency = 4

// SeedConfig describes the default goal given to accounts without goals.
type SeedConfig struct {
	Title       string
	Description string
	Target      decimal.Decimal
	Concurrency int
}

// SeedReport counts the outcome of one seeding pass.
type SeedReport struct {
	Accounts int
	Seeded   int
	Skipped  int
	Failed   int
}

// GoalSeeder gives every account without goals one default goal. Each account
// is handled in its own unit, so an interrupted pass can simply be run again.
type GoalSeeder struct {
	store  storage.Store
	config SeedConfig
	logger *log.Logger
	now    func() time.Time
}

func NewGoalSeeder(store storage.Store, config SeedConfig) *GoalSeeder {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultSeedConcurrency
	}
	return &GoalSeeder{
		store:  store,
		config: config,
		logger: log.Default(log.ComponentSeeder),
		now:    time.Now,
	}
}

// Seed runs one pass over all accounts. Failures on one account do not stop
// the others; they are joined into the returned error.
func (s *GoalSeeder) Seed(ctx context.Context) (SeedReport, error) {
	probe := core.Goal{AccountID: "probe", Title: s.config.Title, TargetAmount: s.config.Target, Status: core.GoalActive}
	if err := probe.Validate(); err != nil {
		return SeedReport{}, err
	}

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return SeedReport{}, core.Infra("list accounts", err)
	}

	var (
		seeded, skipped atomic.Int64
		mu              sync.Mutex
		errs            []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for _, acct := range accounts {
		g.Go(func() error {
			created, err := s.seedAccount(gctx, acct.ID)
			switch {
			case err != nil:
				s.logger.LogOutcome(gctx, "Goal seeding", err, log.NewFields().
					WithOperation(log.OpSeed).
					With(log.FieldAccountID, acct.ID))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			case created:
				seeded.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := SeedReport{
		Accounts: len(accounts),
		Seeded:   int(seeded.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   len(errs),
	}
	s.logger.InfoContext(ctx, "Goal seeding pass finished",
		log.FieldOperation, log.OpSeed,
		"accounts", report.Accounts,
		"seeded", report.Seeded,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, errors.Join(errs...)
}

// seedAccount re-checks for existing goals inside the unit and reports whether
// a goal was created.
func (s *GoalSeeder) seedAccount(ctx context.Context, accountID string) (bool, error) {
	created := false
	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		goals, err := uow.ListGoals(ctx, accountID)
		if err != nil {
			return core.Infra("list goals", err)
		}
		if len(goals) > 0 {
			return nil
		}
		now := s.now().UTC()
		g := core.Goal{
			ID:           uuid.NewString(),
			AccountID:    accountID,
			Title:        s.config.Title,
			Description:  s.config.Description,
			TargetAmount: s.config.Target,
			SavedAmount:  decimal.Zero,
			Status:       core.GoalActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}.Derive()
		if err := uow.CreateGoal(ctx, g); err != nil {
			return core.Infra("create goal", err)
		}
		created = true
		return nil
	})
	return created, err
}
