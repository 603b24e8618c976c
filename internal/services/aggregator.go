package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/storage"
)

// Sign selects whether a transaction's effect is absorbed or reversed.
type Sign int

const (
	Absorb  Sign = 1
	Reverse Sign = -1
)

// CategoryAggregator keeps each category balance equal to the sum of amounts
// of the account's transactions carrying that tag and kind.
type CategoryAggregator struct {
	store  storage.Store
	logger *log.Logger
	now    func() time.Time
}

func NewCategoryAggregator(store storage.Store) *CategoryAggregator {
	return &CategoryAggregator{
		store:  store,
		logger: log.Default(log.ComponentCategories),
		now:    time.Now,
	}
}

// ApplyTransaction adds sign*amount to the category of every distinct tag on
// tx, inside the caller's unit. Untagged transactions touch nothing; a
// multi-tag transaction contributes its full amount to each tag.
func (a *CategoryAggregator) ApplyTransaction(ctx context.Context, uow storage.UnitOfWork, tx core.Transaction, sign Sign, at time.Time) error {
	delta := tx.Amount.Mul(decimal.NewFromInt(int64(sign)))
	for _, key := range tx.CategoryKeys() {
		if _, err := uow.UpsertCategoryDelta(ctx, key, delta, at); err != nil {
			return core.Infra("apply category delta", err)
		}
	}
	return nil
}

// RebuildForAccount recomputes every category balance of the account from its
// transaction history in one unit. Existing categories without contributors
// are set to zero rather than deleted. Running it twice yields the same state.
func (a *CategoryAggregator) RebuildForAccount(ctx context.Context, accountID string) ([]core.Category, error) {
	var out []core.Category
	err := storage.WithinUnit(ctx, a.store, func(uow storage.UnitOfWork) error {
		if _, err := uow.GetAccount(ctx, accountID); err != nil {
			return core.Infra("load account", err)
		}
		if err := a.rebuildInUnit(ctx, uow, accountID, a.now().UTC()); err != nil {
			return err
		}
		cats, err := uow.ListCategories(ctx, accountID)
		if err != nil {
			return core.Infra("list categories", err)
		}
		out = cats
		return nil
	})
	if err != nil {
		a.logger.LogOutcome(ctx, "Category rebuild", err, log.NewFields().
			WithOperation(log.OpRebuild))
		return nil, err
	}

	a.logger.InfoContext(ctx, "Categories rebuilt from transactions",
		log.FieldAccountID, accountID,
		"categories", len(out))
	return out, nil
}

func (a *CategoryAggregator) rebuildInUnit(ctx context.Context, uow storage.UnitOfWork, accountID string, at time.Time) error {
	txs, err := uow.ListTransactions(ctx, storage.TransactionFilter{AccountID: accountID})
	if err != nil {
		return core.Infra("list transactions", err)
	}

	totals := map[core.CategoryKey]decimal.Decimal{}
	order := []core.CategoryKey{}
	for _, tx := range txs {
		for _, key := range tx.CategoryKeys() {
			sum, seen := totals[key]
			if !seen {
				order = append(order, key)
				sum = decimal.Zero
			}
			totals[key] = sum.Add(tx.Amount)
		}
	}

	existing, err := uow.ListCategories(ctx, accountID)
	if err != nil {
		return core.Infra("list categories", err)
	}
	for _, c := range existing {
		if _, ok := totals[c.Key()]; !ok {
			order = append(order, c.Key())
			totals[c.Key()] = decimal.Zero
		}
	}

	for _, key := range order {
		if _, err := uow.SetCategoryBalance(ctx, key, totals[key], at); err != nil {
			return core.Infra("set category balance", err)
		}
	}
	return nil
}
