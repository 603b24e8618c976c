package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/storage"
)

const (
	// GoalTagPrefix prefixes the tag of transactions recorded for goal funds.
	GoalTagPrefix = "goal:"
	// SavingsCategory is the label of transactions recorded for goal funds.
	SavingsCategory = "savings"

	maxDescriptionBytes = 200
)

type (
	// NewTransaction is the caller-supplied part of a transaction.
	NewTransaction struct {
		AccountID   string
		Kind        core.Kind
		Amount      decimal.Decimal
		Description string
		Category    string
		Tags        []string
	}

	// TransactionChanges is a partial update; nil fields are left unchanged.
	// The owning account cannot be changed.
	TransactionChanges struct {
		Kind        *core.Kind
		Amount      *decimal.Decimal
		Description *string
		Category    *string
		Tags        *[]string
	}

	// FundsOptions controls the optional ledger record of a goal allocation
	// or withdrawal.
	FundsOptions struct {
		RecordTransaction bool
		Note              string
	}
)

// LedgerService keeps account balances, category totals and goal funds
// consistent with the transaction history. Every operation is one unit.
type LedgerService struct {
	store      storage.Store
	categories *CategoryAggregator
	events     EventPublisher
	logger     *log.Logger
	now        func() time.Time
}

// NewLedgerService wires the engine. events may be nil.
func NewLedgerService(store storage.Store, categories *CategoryAggregator, events EventPublisher) *LedgerService {
	if categories == nil {
		categories = NewCategoryAggregator(store)
	}
	return &LedgerService{
		store:      store,
		categories: categories,
		events:     events,
		logger:     log.Default(log.ComponentLedger),
		now:        time.Now,
	}
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, core.Infra("get transaction", err)
	}
	return t, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	if f.AccountID != "" {
		if _, err := s.store.GetAccount(ctx, f.AccountID); err != nil {
			return nil, core.Infra("get account", err)
		}
	}
	txs, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, core.Infra("list transactions", err)
	}
	return txs, nil
}

// CreateTransaction records a transaction, moves the account balance by its
// signed amount and adds the amount to the category of each tag.
func (s *LedgerService) CreateTransaction(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	now := s.now().UTC()
	tx := core.Transaction{
		ID:          uuid.NewString(),
		AccountID:   strings.TrimSpace(in.AccountID),
		Kind:        in.Kind,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Tags:        core.NormalizeTags(in.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.Validate(); err != nil {
		s.logger.LogOutcome(ctx, "Transaction create", err, log.NewFields().WithOperation(log.OpCreate))
		return core.Transaction{}, err
	}

	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		return s.recordInUnit(ctx, uow, tx)
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Transaction create", err, log.NewFields().
			WithOperation(log.OpCreate).
			WithTransaction(tx))
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction created", log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(tx).ToSlice()...)
	publishAll(ctx, s.events, s.logger, transactionEvent(amqp.TransactionCreated, tx))
	return tx, nil
}

// UpdateTransaction reverses the stored transaction's effects, applies changes
// and reapplies the effects of the result, all in one unit.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, changes TransactionChanges) (core.Transaction, error) {
	if err := changes.validate(); err != nil {
		s.logger.LogOutcome(ctx, "Transaction update", err, log.NewFields().WithOperation(log.OpUpdate))
		return core.Transaction{}, err
	}

	var updated core.Transaction
	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		original, err := uow.GetTransaction(ctx, id)
		if err != nil {
			return core.Infra("get transaction", err)
		}
		acct, err := uow.GetAccount(ctx, original.AccountID)
		if err != nil {
			return core.Infra("get account", err)
		}
		now := s.now().UTC()

		acct.Balance = acct.Balance.Sub(original.BalanceDelta())
		if err := s.categories.ApplyTransaction(ctx, uow, original, Reverse, now); err != nil {
			return err
		}

		updated = changes.apply(original)
		updated.UpdatedAt = now
		if err := updated.Validate(); err != nil {
			return err
		}
		if err := uow.UpdateTransaction(ctx, updated); err != nil {
			return core.Infra("update transaction", err)
		}

		acct.Balance = acct.Balance.Add(updated.BalanceDelta())
		acct.UpdatedAt = now
		if err := uow.UpdateAccount(ctx, acct); err != nil {
			return core.Infra("update account", err)
		}
		return s.categories.ApplyTransaction(ctx, uow, updated, Absorb, now)
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Transaction update", err, log.NewFields().
			WithOperation(log.OpUpdate).
			With(log.FieldTransactionID, id))
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction updated", log.NewFields().
		WithOperation(log.OpUpdate).
		WithTransaction(updated).ToSlice()...)
	publishAll(ctx, s.events, s.logger, transactionEvent(amqp.TransactionUpdated, updated))
	return updated, nil
}

// DeleteTransaction removes a transaction and reverses its balance and
// category effects.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	var removed core.Transaction
	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		tx, err := uow.GetTransaction(ctx, id)
		if err != nil {
			return core.Infra("get transaction", err)
		}
		acct, err := uow.GetAccount(ctx, tx.AccountID)
		if err != nil {
			return core.Infra("get account", err)
		}
		now := s.now().UTC()

		if err := uow.DeleteTransaction(ctx, id); err != nil {
			return core.Infra("delete transaction", err)
		}
		acct.Balance = acct.Balance.Sub(tx.BalanceDelta())
		acct.UpdatedAt = now
		if err := uow.UpdateAccount(ctx, acct); err != nil {
			return core.Infra("update account", err)
		}
		if err := s.categories.ApplyTransaction(ctx, uow, tx, Reverse, now); err != nil {
			return err
		}
		removed = tx
		return nil
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Transaction delete", err, log.NewFields().
			WithOperation(log.OpDelete).
			With(log.FieldTransactionID, id))
		return err
	}

	s.logger.InfoContext(ctx, "Transaction deleted", log.NewFields().
		WithOperation(log.OpDelete).
		WithTransaction(removed).ToSlice()...)
	publishAll(ctx, s.events, s.logger, transactionEvent(amqp.TransactionDeleted, removed))
	return nil
}

// AllocateFunds adds amount to a goal's saved amount. With RecordTransaction
// the same unit also records a savings expense, moving the account balance
// and the goal category.
func (s *LedgerService) AllocateFunds(ctx context.Context, goalID string, amount decimal.Decimal, opts FundsOptions) (core.Goal, error) {
	return s.moveFunds(ctx, goalID, amount, opts, log.OpAllocate)
}

// WithdrawFunds takes amount out of a goal's saved amount. It fails with
// core.InsufficientFundsError when amount exceeds what is saved. With
// RecordTransaction the same unit records a savings income.
func (s *LedgerService) WithdrawFunds(ctx context.Context, goalID string, amount decimal.Decimal, opts FundsOptions) (core.Goal, error) {
	return s.moveFunds(ctx, goalID, amount, opts, log.OpWithdraw)
}

func (s *LedgerService) moveFunds(ctx context.Context, goalID string, amount decimal.Decimal, opts FundsOptions, op string) (core.Goal, error) {
	msg := "Goal allocation"
	if op == log.OpWithdraw {
		msg = "Goal withdrawal"
	}
	if err := core.ValidatePositive(amount); err != nil {
		s.logger.LogOutcome(ctx, msg, err, log.NewFields().WithOperation(op))
		return core.Goal{}, err
	}

	var (
		goal     core.Goal
		recorded *core.Transaction
	)
	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		g, err := uow.GetGoal(ctx, goalID)
		if err != nil {
			return core.Infra("get goal", err)
		}
		now := s.now().UTC()

		kind := core.Expense
		if op == log.OpWithdraw {
			if amount.GreaterThan(g.SavedAmount) {
				return &core.InsufficientFundsError{GoalID: g.ID, Requested: amount, Available: g.SavedAmount}
			}
			g.SavedAmount = g.SavedAmount.Sub(amount)
			kind = core.Income
		} else {
			g.SavedAmount = g.SavedAmount.Add(amount)
		}
		g = g.Derive()
		g.UpdatedAt = now
		if err := uow.UpdateGoal(ctx, g); err != nil {
			return core.Infra("update goal", err)
		}
		goal = g

		if !opts.RecordTransaction {
			return nil
		}
		tx := core.Transaction{
			ID:          uuid.NewString(),
			AccountID:   g.AccountID,
			Kind:        kind,
			Amount:      amount,
			Description: fundsDescription(op, g, opts.Note),
			Category:    SavingsCategory,
			Tags:        []string{GoalTagPrefix + g.ID},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Validate(); err != nil {
			return err
		}
		if err := s.recordInUnit(ctx, uow, tx); err != nil {
			return err
		}
		recorded = &tx
		return nil
	})
	if err != nil {
		s.logger.LogOutcome(ctx, msg, err, log.NewFields().
			WithOperation(op).
			With(log.FieldGoalID, goalID).
			With(log.FieldAmount, amount.String()))
		return core.Goal{}, err
	}

	s.logger.InfoContext(ctx, msg+" applied", log.NewFields().
		WithOperation(op).
		WithGoal(goal, amount).ToSlice()...)

	evType := amqp.GoalAllocated
	if op == log.OpWithdraw {
		evType = amqp.GoalWithdrawn
	}
	ev := amqp.NewLedgerEvent(evType, goal.AccountID)
	ev.GoalID = goal.ID
	ev.Amount = amount.String()
	events := []*amqp.LedgerEvent{ev}
	if recorded != nil {
		ev.TransactionID = recorded.ID
		events = append(events, transactionEvent(amqp.TransactionCreated, *recorded))
	}
	publishAll(ctx, s.events, s.logger, events...)
	return goal, nil
}

// recordInUnit persists tx and applies its account and category effects.
func (s *LedgerService) recordInUnit(ctx context.Context, uow storage.UnitOfWork, tx core.Transaction) error {
	acct, err := uow.GetAccount(ctx, tx.AccountID)
	if err != nil {
		return core.Infra("get account", err)
	}
	if err := uow.CreateTransaction(ctx, tx); err != nil {
		return core.Infra("create transaction", err)
	}
	acct.Balance = acct.Balance.Add(tx.BalanceDelta())
	acct.UpdatedAt = tx.CreatedAt
	if err := uow.UpdateAccount(ctx, acct); err != nil {
		return core.Infra("update account", err)
	}
	return s.categories.ApplyTransaction(ctx, uow, tx, Absorb, tx.CreatedAt)
}

func (c TransactionChanges) validate() error {
	if c.Kind != nil && !c.Kind.IsValid() {
		return core.Invalid("kind", core.ErrInvalidKind)
	}
	if c.Amount != nil {
		if err := core.ValidatePositive(*c.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (c TransactionChanges) apply(t core.Transaction) core.Transaction {
	if c.Kind != nil {
		t.Kind = *c.Kind
	}
	if c.Amount != nil {
		t.Amount = *c.Amount
	}
	if c.Description != nil {
		t.Description = strings.TrimSpace(*c.Description)
	}
	if c.Category != nil {
		t.Category = strings.TrimSpace(*c.Category)
	}
	if c.Tags != nil {
		t.Tags = core.NormalizeTags(*c.Tags)
	}
	return t
}

func fundsDescription(op string, g core.Goal, note string) string {
	if note = strings.TrimSpace(note); note != "" {
		return note
	}
	desc := fmt.Sprintf("Allocation to goal %s", g.Title)
	if op == log.OpWithdraw {
		desc = fmt.Sprintf("Withdrawal from goal %s", g.Title)
	}
	return truncateUTF8(desc, maxDescriptionBytes)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func transactionEvent(t amqp.EventType, tx core.Transaction) *amqp.LedgerEvent {
	ev := amqp.NewLedgerEvent(t, tx.AccountID)
	ev.TransactionID = tx.ID
	ev.Amount = tx.Amount.String()
	return ev
}
