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
	NewGoal struct {
		AccountID    string
		Title        string
		Description  string
		TargetAmount decimal.Decimal
		TargetDate   *time.Time
		Status       core.GoalStatus
	}

	// GoalChanges is a partial update. The saved amount is moved only by
	// LedgerService.AllocateFunds and WithdrawFunds. ClearTargetDate drops the
	// target date.
	GoalChanges struct {
		Title           *string
		Description     *string
		TargetAmount    *decimal.Decimal
		TargetDate      *time.Time
		ClearTargetDate bool
		Status          *core.GoalStatus
	}
)

// GoalService manages savings goals. Status is derived on every write and read.
type GoalService struct {
	store  storage.Store
	logger *log.Logger
	now    func() time.Time
}

func NewGoalService(store storage.Store) *GoalService {
	return &GoalService{
		store:  store,
		logger: log.Default(log.ComponentGoals),
		now:    time.Now,
	}
}

func (s *GoalService) Get(ctx context.Context, id string) (core.Goal, error) {
	g, err := s.store.GetGoal(ctx, id)
	if err != nil {
		return core.Goal{}, core.Infra("get goal", err)
	}
	return g.Derive(), nil
}

// List returns the goals of accountID, or of every account when empty.
func (s *GoalService) List(ctx context.Context, accountID string) ([]core.Goal, error) {
	if accountID != "" {
		if _, err := s.store.GetAccount(ctx, accountID); err != nil {
			return nil, core.Infra("get account", err)
		}
	}
	goals, err := s.store.ListGoals(ctx, accountID)
	if err != nil {
		return nil, core.Infra("list goals", err)
	}
	for i := range goals {
		goals[i] = goals[i].Derive()
	}
	return goals, nil
}

func (s *GoalService) Create(ctx context.Context, in NewGoal) (core.Goal, error) {
	now := s.now().UTC()
	status := in.Status
	if status == "" {
		status = core.GoalActive
	}
	g := core.Goal{
		ID:           uuid.NewString(),
		AccountID:    strings.TrimSpace(in.AccountID),
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		TargetAmount: in.TargetAmount,
		SavedAmount:  decimal.Zero,
		TargetDate:   utcPtr(in.TargetDate),
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := validateGoal(g); err != nil {
		s.logger.LogOutcome(ctx, "Goal create", err, log.NewFields().WithOperation(log.OpCreate))
		return core.Goal{}, err
	}
	g = g.Derive()

	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		if _, err := uow.GetAccount(ctx, g.AccountID); err != nil {
			return core.Infra("get account", err)
		}
		return core.Infra("create goal", uow.CreateGoal(ctx, g))
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Goal create", err, log.NewFields().
			WithOperation(log.OpCreate).
			With(log.FieldAccountID, g.AccountID))
		return core.Goal{}, err
	}

	s.logger.InfoContext(ctx, "Goal created",
		log.FieldGoalID, g.ID,
		log.FieldAccountID, g.AccountID,
		"target", g.TargetAmount.String())
	return g, nil
}

func (s *GoalService) Update(ctx context.Context, id string, changes GoalChanges) (core.Goal, error) {
	var updated core.Goal
	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		g, err := uow.GetGoal(ctx, id)
		if err != nil {
			return core.Infra("get goal", err)
		}
		if changes.Title != nil {
			g.Title = strings.TrimSpace(*changes.Title)
		}
		if changes.Description != nil {
			g.Description = strings.TrimSpace(*changes.Description)
		}
		if changes.TargetAmount != nil {
			g.TargetAmount = *changes.TargetAmount
		}
		if changes.ClearTargetDate {
			g.TargetDate = nil
		} else if changes.TargetDate != nil {
			g.TargetDate = utcPtr(changes.TargetDate)
		}
		// Without an explicit status the stored one is re-derived first, so a
		// completed goal whose target was raised falls back to active.
		if changes.Status != nil {
			g.Status = *changes.Status
		} else {
			g = g.Derive()
		}
		if err := validateGoal(g); err != nil {
			return err
		}
		g = g.Derive()
		g.UpdatedAt = s.now().UTC()
		if err := uow.UpdateGoal(ctx, g); err != nil {
			return core.Infra("update goal", err)
		}
		updated = g
		return nil
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Goal update", err, log.NewFields().
			WithOperation(log.OpUpdate).
			With(log.FieldGoalID, id))
		return core.Goal{}, err
	}

	s.logger.InfoContext(ctx, "Goal updated",
		log.FieldGoalID, id,
		"status", string(updated.Status))
	return updated, nil
}

// Delete removes a goal. Transactions recorded for it keep their tag.
func (s *GoalService) Delete(ctx context.Context, id string) error {
	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		if _, err := uow.GetGoal(ctx, id); err != nil {
			return core.Infra("get goal", err)
		}
		return core.Infra("delete goal", uow.DeleteGoal(ctx, id))
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Goal delete", err, log.NewFields().
			WithOperation(log.OpDelete).
			With(log.FieldGoalID, id))
		return err
	}

	s.logger.InfoContext(ctx, "Goal deleted", log.FieldGoalID, id)
	return nil
}

// Summary aggregates the account's goals.
func (s *GoalService) Summary(ctx context.Context, accountID string) (core.GoalSummary, error) {
	goals, err := s.List(ctx, accountID)
	if err != nil {
		return core.GoalSummary{}, err
	}
	return core.SummarizeGoals(accountID, goals), nil
}

// validateGoal also rejects a completed status the saved amount does not back.
func validateGoal(g core.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if g.Status == core.GoalCompleted && !g.IsFunded() {
		return core.Invalid("status", core.ErrInvalidStatus)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
