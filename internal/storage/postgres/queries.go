package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/storage"
)

// queries implements storage.Reader over the pool or a transaction. With lock
// set, single-row reads take a row lock held until the transaction ends.
type queries struct {
	q    querier
	lock bool
}

const (
	accountColumns     = `id, username, email, balance::text, is_admin, created_at, updated_at`
	transactionColumns = `id, account_id, kind, description, amount::text, category, tags, created_at, updated_at`
	categoryColumns    = `id, account_id, name, kind, balance::text, created_at, updated_at`
	goalColumns        = `id, account_id, title, description, target_amount::text, saved_amount::text, target_date, status, created_at, updated_at`
)

func (q queries) forUpdate(query string) string {
	if q.lock {
		return query + " FOR UPDATE"
	}
	return query
}

func (q queries) GetAccount(ctx context.Context, id string) (core.Account, error) {
	row := q.q.QueryRow(ctx, q.forUpdate(`SELECT `+accountColumns+` FROM accounts WHERE id = $1`), id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Account{}, core.NotFound("account", id)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (q queries) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q queries) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := q.q.QueryRow(ctx, q.forUpdate(`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`), id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (q queries) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.AccountID != "" {
		where = append(where, "account_id = "+arg(f.AccountID))
	}
	if f.Kind != "" {
		where = append(where, "kind = "+arg(string(f.Kind)))
	}
	if f.Tag != "" {
		where = append(where, arg(strings.TrimSpace(f.Tag))+" = ANY (SELECT trim(x) FROM unnest(tags) AS x)")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q queries) GetCategory(ctx context.Context, id string) (core.Category, error) {
	row := q.q.QueryRow(ctx, q.forUpdate(`SELECT `+categoryColumns+` FROM categories WHERE id = $1`), id)
	c, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Category{}, core.NotFound("category", id)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (q queries) FindCategory(ctx context.Context, key core.CategoryKey) (core.Category, error) {
	row := q.q.QueryRow(ctx,
		q.forUpdate(`SELECT `+categoryColumns+` FROM categories WHERE account_id = $1 AND name = $2 AND kind = $3`),
		key.AccountID, key.Name, string(key.Kind))
	c, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Category{}, core.NotFound("category", key.Name+"/"+string(key.Kind))
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	return c, nil
}

func (q queries) ListCategories(ctx context.Context, accountID string) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = $1`
		args = append(args, accountID)
	}
	query += ` ORDER BY account_id, name, kind`

	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q queries) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	row := q.q.QueryRow(ctx, q.forUpdate(`SELECT `+goalColumns+` FROM goals WHERE id = $1`), id)
	g, err := scanGoal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Goal{}, core.NotFound("goal", id)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (q queries) ListGoals(ctx context.Context, accountID string) ([]core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = $1`
		args = append(args, accountID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	out := []core.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (core.Account, error) {
	var (
		a       core.Account
		balance string
	)
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &balance, &a.IsAdmin, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return core.Account{}, err
	}
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return core.Account{}, fmt.Errorf("parse balance: %w", err)
	}
	return a, nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		t            core.Transaction
		kind, amount string
	)
	if err := row.Scan(&t.ID, &t.AccountID, &kind, &t.Description, &amount, &t.Category, &t.Tags, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount: %w", err)
	}
	return t, nil
}

func scanCategory(row pgx.Row) (core.Category, error) {
	var (
		c             core.Category
		kind, balance string
	)
	if err := row.Scan(&c.ID, &c.AccountID, &c.Name, &kind, &balance, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.Kind(kind)
	var err error
	if c.Balance, err = decimal.NewFromString(balance); err != nil {
		return core.Category{}, fmt.Errorf("parse balance: %w", err)
	}
	return c, nil
}

func scanGoal(row pgx.Row) (core.Goal, error) {
	var (
		g             core.Goal
		target, saved string
		status        string
	)
	if err := row.Scan(&g.ID, &g.AccountID, &g.Title, &g.Description, &target, &saved, &g.TargetDate, &status, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return core.Goal{}, err
	}
	g.Status = core.GoalStatus(status)
	var err error
	if g.TargetAmount, err = decimal.NewFromString(target); err != nil {
		return core.Goal{}, fmt.Errorf("parse target_amount: %w", err)
	}
	if g.SavedAmount, err = decimal.NewFromString(saved); err != nil {
		return core.Goal{}, fmt.Errorf("parse saved_amount: %w", err)
	}
	return g, nil
}
