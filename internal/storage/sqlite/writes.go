package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func (u *unit) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.Email, a.Balance.String(), a.IsAdmin, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	return mapWriteError("insert account", "account", err)
}

func (u *unit) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := u.tx.ExecContext(ctx,
		`UPDATE accounts SET username = ?, email = ?, balance = ?, is_admin = ?, updated_at = ? WHERE id = ?`,
		a.Username, a.Email, a.Balance.String(), a.IsAdmin, formatTime(a.UpdatedAt), a.ID)
	if err != nil {
		return mapWriteError("update account", "account", err)
	}
	return requireAffected(res, "account", a.ID)
}

func (u *unit) DeleteAccount(ctx context.Context, id string) error {
	res, err := u.tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireAffected(res, "account", id)
}

func (u *unit) CountAccountDependents(ctx context.Context, accountID string) (int, error) {
	var n int
	err := u.tx.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM transactions WHERE account_id = ?)
		     + (SELECT COUNT(*) FROM categories WHERE account_id = ?)
		     + (SELECT COUNT(*) FROM goals WHERE account_id = ?)`,
		accountID, accountID, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count account dependents: %w", err)
	}
	return n, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func (u *unit) CreateTransaction(ctx context.Context, t core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	_, err = u.tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, string(t.Kind), t.Description, t.Amount.String(), t.Category, tags,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	return mapWriteError("insert transaction", "transaction", err)
}

func (u *unit) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	res, err := u.tx.ExecContext(ctx,
		`UPDATE transactions SET kind = ?, description = ?, amount = ?, category = ?, tags = ?, updated_at = ? WHERE id = ?`,
		string(t.Kind), t.Description, t.Amount.String(), t.Category, tags, formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return mapWriteError("update transaction", "transaction", err)
	}
	return requireAffected(res, "transaction", t.ID)
}

func (u *unit) DeleteTransaction(ctx context.Context, id string) error {
	res, err := u.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res, "transaction", id)
}

func (u *unit) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.AccountID, c.Name, string(c.Kind), c.Balance.String(), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	return mapWriteError("insert category", "category", err)
}

func (u *unit) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := u.tx.ExecContext(ctx,
		`UPDATE categories SET name = ?, kind = ?, balance = ?, updated_at = ? WHERE id = ?`,
		c.Name, string(c.Kind), c.Balance.String(), formatTime(c.UpdatedAt), c.ID)
	if err != nil {
		return mapWriteError("update category", "category", err)
	}
	return requireAffected(res, "category", c.ID)
}

func (u *unit) DeleteCategory(ctx context.Context, id string) error {
	res, err := u.tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(res, "category", id)
}

// UpsertCategoryDelta reads and rewrites the row inside the immediate
// transaction, which already holds the database write lock.
func (u *unit) UpsertCategoryDelta(ctx context.Context, key core.CategoryKey, delta decimal.Decimal, at time.Time) (core.Category, error) {
	return u.upsertCategory(ctx, key, at, func(c core.Category) decimal.Decimal { return c.Balance.Add(delta) })
}

func (u *unit) SetCategoryBalance(ctx context.Context, key core.CategoryKey, balance decimal.Decimal, at time.Time) (core.Category, error) {
	return u.upsertCategory(ctx, key, at, func(core.Category) decimal.Decimal { return balance })
}

func (u *unit) upsertCategory(ctx context.Context, key core.CategoryKey, at time.Time, next func(core.Category) decimal.Decimal) (core.Category, error) {
	c, err := u.FindCategory(ctx, key)
	switch {
	case errors.Is(err, core.ErrNotFound):
		c = core.Category{
			ID:        uuid.NewString(),
			AccountID: key.AccountID,
			Name:      key.Name,
			Kind:      key.Kind,
			Balance:   decimal.Zero,
			CreatedAt: at,
			UpdatedAt: at,
		}
		c.Balance = next(c)
		if err := u.CreateCategory(ctx, c); err != nil {
			return core.Category{}, err
		}
		return c, nil
	case err != nil:
		return core.Category{}, err
	}

	c.Balance = next(c)
	c.UpdatedAt = at
	_, err = u.tx.ExecContext(ctx,
		`UPDATE categories SET balance = ?, updated_at = ? WHERE id = ?`,
		c.Balance.String(), formatTime(at), c.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category balance: %w", err)
	}
	return c, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func (u *unit) CreateGoal(ctx context.Context, g core.Goal) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.AccountID, g.Title, g.Description, g.TargetAmount.String(), g.SavedAmount.String(),
		nullableTime(g.TargetDate), string(g.Status), formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
	return mapWriteError("insert goal", "goal", err)
}

func (u *unit) UpdateGoal(ctx context.Context, g core.Goal) error {
	res, err := u.tx.ExecContext(ctx, `
		UPDATE goals
		SET title = ?, description = ?, target_amount = ?, saved_amount = ?, target_date = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		g.Title, g.Description, g.TargetAmount.String(), g.SavedAmount.String(),
		nullableTime(g.TargetDate), string(g.Status), formatTime(g.UpdatedAt), g.ID)
	if err != nil {
		return mapWriteError("update goal", "goal", err)
	}
	return requireAffected(res, "goal", g.ID)
}

func (u *unit) DeleteGoal(ctx context.Context, id string) error {
	res, err := u.tx.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return requireAffected(res, "goal", id)
}
