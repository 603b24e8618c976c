package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func (u *unit) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO accounts (id, username, email, balance, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)`,
		a.ID, a.Username, a.Email, a.Balance.String(), a.IsAdmin, a.CreatedAt, a.UpdatedAt)
	return mapWriteError("insert account", "account", err)
}

func (u *unit) UpdateAccount(ctx context.Context, a core.Account) error {
	tag, err := u.tx.Exec(ctx, `
		UPDATE accounts
		SET username = $1, email = $2, balance = $3::numeric, is_admin = $4, updated_at = $5
		WHERE id = $6`,
		a.Username, a.Email, a.Balance.String(), a.IsAdmin, a.UpdatedAt, a.ID)
	if err != nil {
		return mapWriteError("update account", "account", err)
	}
	return requireAffected(tag, "account", a.ID)
}

func (u *unit) DeleteAccount(ctx context.Context, id string) error {
	tag, err := u.tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireAffected(tag, "account", id)
}

func (u *unit) CountAccountDependents(ctx context.Context, accountID string) (int, error) {
	var n int
	err := u.tx.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM transactions WHERE account_id = $1)
		     + (SELECT COUNT(*) FROM categories WHERE account_id = $1)
		     + (SELECT COUNT(*) FROM goals WHERE account_id = $1)`,
		accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count account dependents: %w", err)
	}
	return n, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func (u *unit) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO transactions (id, account_id, kind, description, amount, category, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)`,
		t.ID, t.AccountID, string(t.Kind), t.Description, t.Amount.String(), t.Category, tagsOrEmpty(t.Tags), t.CreatedAt, t.UpdatedAt)
	return mapWriteError("insert transaction", "transaction", err)
}

func (u *unit) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	tag, err := u.tx.Exec(ctx, `
		UPDATE transactions
		SET kind = $1, description = $2, amount = $3::numeric, category = $4, tags = $5, updated_at = $6
		WHERE id = $7`,
		string(t.Kind), t.Description, t.Amount.String(), t.Category, tagsOrEmpty(t.Tags), t.UpdatedAt, t.ID)
	if err != nil {
		return mapWriteError("update transaction", "transaction", err)
	}
	return requireAffected(tag, "transaction", t.ID)
}

func (u *unit) DeleteTransaction(ctx context.Context, id string) error {
	tag, err := u.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(tag, "transaction", id)
}

func (u *unit) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO categories (id, account_id, name, kind, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`,
		c.ID, c.AccountID, c.Name, string(c.Kind), c.Balance.String(), c.CreatedAt, c.UpdatedAt)
	return mapWriteError("insert category", "category", err)
}

func (u *unit) UpdateCategory(ctx context.Context, c core.Category) error {
	tag, err := u.tx.Exec(ctx, `
		UPDATE categories SET name = $1, kind = $2, balance = $3::numeric, updated_at = $4
		WHERE id = $5`,
		c.Name, string(c.Kind), c.Balance.String(), c.UpdatedAt, c.ID)
	if err != nil {
		return mapWriteError("update category", "category", err)
	}
	return requireAffected(tag, "category", c.ID)
}

func (u *unit) DeleteCategory(ctx context.Context, id string) error {
	tag, err := u.tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(tag, "category", id)
}

func (u *unit) UpsertCategoryDelta(ctx context.Context, key core.CategoryKey, delta decimal.Decimal, at time.Time) (core.Category, error) {
	row := u.tx.QueryRow(ctx, `
		INSERT INTO categories (id, account_id, name, kind, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $6)
		ON CONFLICT (account_id, name, kind)
		DO UPDATE SET balance = categories.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		RETURNING `+categoryColumns,
		uuid.NewString(), key.AccountID, key.Name, string(key.Kind), delta.String(), at)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("upsert category delta: %w", err)
	}
	return c, nil
}

func (u *unit) SetCategoryBalance(ctx context.Context, key core.CategoryKey, balance decimal.Decimal, at time.Time) (core.Category, error) {
	row := u.tx.QueryRow(ctx, `
		INSERT INTO categories (id, account_id, name, kind, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $6)
		ON CONFLICT (account_id, name, kind)
		DO UPDATE SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		RETURNING `+categoryColumns,
		uuid.NewString(), key.AccountID, key.Name, string(key.Kind), balance.String(), at)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("set category balance: %w", err)
	}
	return c, nil
}

func (u *unit) CreateGoal(ctx context.Context, g core.Goal) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO goals (id, account_id, title, description, target_amount, saved_amount, target_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10)`,
		g.ID, g.AccountID, g.Title, g.Description, g.TargetAmount.String(), g.SavedAmount.String(),
		g.TargetDate, string(g.Status), g.CreatedAt, g.UpdatedAt)
	return mapWriteError("insert goal", "goal", err)
}

func (u *unit) UpdateGoal(ctx context.Context, g core.Goal) error {
	tag, err := u.tx.Exec(ctx, `
		UPDATE goals
		SET title = $1, description = $2, target_amount = $3::numeric, saved_amount = $4::numeric,
		    target_date = $5, status = $6, updated_at = $7
		WHERE id = $8`,
		g.Title, g.Description, g.TargetAmount.String(), g.SavedAmount.String(),
		g.TargetDate, string(g.Status), g.UpdatedAt, g.ID)
	if err != nil {
		return mapWriteError("update goal", "goal", err)
	}
	return requireAffected(tag, "goal", g.ID)
}

func (u *unit) DeleteGoal(ctx context.Context, id string) error {
	tag, err := u.tx.Exec(ctx, `DELETE FROM goals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return requireAffected(tag, "goal", id)
}
