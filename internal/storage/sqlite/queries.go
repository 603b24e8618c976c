package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/storage"
)

// Fixed-width UTC layout; stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// queries implements storage.Reader over a *sql.DB or a *sql.Tx.
type queries struct {
	q querier
}

const (
	accountColumns     = `id, username, email, balance, is_admin, created_at, updated_at`
	transactionColumns = `id, account_id, kind, description, amount, category, tags, created_at, updated_at`
	categoryColumns    = `id, account_id, name, kind, balance, created_at, updated_at`
	goalColumns        = `id, account_id, title, description, target_amount, saved_amount, target_date, status, created_at, updated_at`
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func (q queries) GetAccount(ctx context.Context, id string) (core.Account, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NotFound("account", id)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (q queries) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
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
	row := q.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(transactions.tags) WHERE trim(json_each.value) = ?)")
		args = append(args, strings.TrimSpace(f.Tag))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, f.Offset)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
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
	row := q.q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NotFound("category", id)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (q queries) FindCategory(ctx context.Context, key core.CategoryKey) (core.Category, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE account_id = ? AND name = ? AND kind = ?`,
		key.AccountID, key.Name, string(key.Kind))
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
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
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY account_id, name, kind`

	rows, err := q.q.QueryContext(ctx, query, args...)
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
	row := q.q.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
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
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.q.QueryContext(ctx, query, args...)
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

func scanAccount(s scanner) (core.Account, error) {
	var (
		a                core.Account
		balance          string
		created, updated string
	)
	if err := s.Scan(&a.ID, &a.Username, &a.Email, &balance, &a.IsAdmin, &created, &updated); err != nil {
		return core.Account{}, err
	}
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return core.Account{}, fmt.Errorf("parse balance: %w", err)
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return core.Account{}, fmt.Errorf("parse created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Account{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return a, nil
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                core.Transaction
		kind, amount     string
		tags             string
		created, updated string
	)
	if err := s.Scan(&t.ID, &t.AccountID, &kind, &t.Description, &amount, &t.Category, &tags, &created, &updated); err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return core.Transaction{}, fmt.Errorf("decode tags: %w", err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Transaction{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return t, nil
}

func scanCategory(s scanner) (core.Category, error) {
	var (
		c                core.Category
		kind, balance    string
		created, updated string
	)
	if err := s.Scan(&c.ID, &c.AccountID, &c.Name, &kind, &balance, &created, &updated); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.Kind(kind)
	var err error
	if c.Balance, err = decimal.NewFromString(balance); err != nil {
		return core.Category{}, fmt.Errorf("parse balance: %w", err)
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return core.Category{}, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Category{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return c, nil
}

func scanGoal(s scanner) (core.Goal, error) {
	var (
		g                core.Goal
		target, saved    string
		targetDate       sql.NullString
		status           string
		created, updated string
	)
	if err := s.Scan(&g.ID, &g.AccountID, &g.Title, &g.Description, &target, &saved, &targetDate, &status, &created, &updated); err != nil {
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
	if targetDate.Valid && targetDate.String != "" {
		td, err := parseTime(targetDate.String)
		if err != nil {
			return core.Goal{}, fmt.Errorf("parse target_date: %w", err)
		}
		g.TargetDate = &td
	}
	if g.CreatedAt, err = parseTime(created); err != nil {
		return core.Goal{}, fmt.Errorf("parse created_at: %w", err)
	}
	if g.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Goal{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return g, nil
}
