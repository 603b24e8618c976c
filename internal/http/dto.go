package http

import (
	"time"

	"saldo/internal/core"
)

// Wire representations. Money is rendered as exact decimal strings.
type (
	accountJSON struct {
		ID        string    `json:"id"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		Balance   string    `json:"balance"`
		IsAdmin   bool      `json:"is_admin"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	transactionJSON struct {
		ID          string    `json:"id"`
		AccountID   string    `json:"account_id"`
		Kind        core.Kind `json:"kind"`
		Description string    `json:"description"`
		Amount      string    `json:"amount"`
		Category    string    `json:"category"`
		Tags        []string  `json:"tags"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	categoryJSON struct {
		ID        string    `json:"id"`
		AccountID string    `json:"account_id"`
		Name      string    `json:"name"`
		Kind      core.Kind `json:"kind"`
		Balance   string    `json:"balance"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	goalJSON struct {
		ID           string          `json:"id"`
		AccountID    string          `json:"account_id"`
		Title        string          `json:"title"`
		Description  string          `json:"description"`
		TargetAmount string          `json:"target_amount"`
		SavedAmount  string          `json:"saved_amount"`
		Remaining    string          `json:"remaining"`
		Progress     int             `json:"progress"`
		TargetDate   *string         `json:"target_date"`
		Status       core.GoalStatus `json:"status"`
		CreatedAt    time.Time       `json:"created_at"`
		UpdatedAt    time.Time       `json:"updated_at"`
	}

	balanceJSON struct {
		AccountID string `json:"account_id"`
		Balance   string `json:"balance"`
	}

	categoryAmountJSON struct {
		Name   string    `json:"name"`
		Kind   core.Kind `json:"kind"`
		Amount string    `json:"amount"`
	}

	categorySummaryJSON struct {
		AccountID    string               `json:"account_id"`
		TotalIncome  string               `json:"total_income"`
		TotalExpense string               `json:"total_expense"`
		Net          string               `json:"net"`
		ByCategory   []categoryAmountJSON `json:"by_category"`
	}

	categorizedJSON struct {
		Name         string            `json:"name"`
		Kind         core.Kind         `json:"kind"`
		Total        string            `json:"total"`
		Transactions []transactionJSON `json:"transactions"`
	}

	goalSummaryJSON struct {
		AccountID   string `json:"account_id"`
		Total       int    `json:"total"`
		Active      int    `json:"active"`
		Completed   int    `json:"completed"`
		Paused      int    `json:"paused"`
		TotalTarget string `json:"total_target"`
		TotalSaved  string `json:"total_saved"`
		Progress    int    `json:"progress"`
	}

	listJSON[T any] struct {
		Items []T `json:"items"`
		Count int `json:"count"`
	}
)

func newList[T any](items []T) listJSON[T] {
	if items == nil {
		items = []T{}
	}
	return listJSON[T]{Items: items, Count: len(items)}
}

func mapAll[S, T any](in []S, f func(S) T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

func toAccountJSON(a core.Account) accountJSON {
	return accountJSON{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Balance:   a.Balance.String(),
		IsAdmin:   a.IsAdmin,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return transactionJSON{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Kind:        t.Kind,
		Description: t.Description,
		Amount:      t.Amount.String(),
		Category:    t.Category,
		Tags:        tags,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{
		ID:        c.ID,
		AccountID: c.AccountID,
		Name:      c.Name,
		Kind:      c.Kind,
		Balance:   c.Balance.String(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toGoalJSON(g core.Goal) goalJSON {
	out := goalJSON{
		ID:           g.ID,
		AccountID:    g.AccountID,
		Title:        g.Title,
		Description:  g.Description,
		TargetAmount: g.TargetAmount.String(),
		SavedAmount:  g.SavedAmount.String(),
		Remaining:    g.Remaining().String(),
		Progress:     g.Progress(),
		Status:       g.Status,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
	if g.TargetDate != nil {
		d := g.TargetDate.UTC().Format(dateLayout)
		out.TargetDate = &d
	}
	return out
}

func toCategorySummaryJSON(s core.CategorySummary) categorySummaryJSON {
	return categorySummaryJSON{
		AccountID:    s.AccountID,
		TotalIncome:  s.TotalIncome.String(),
		TotalExpense: s.TotalExpense.String(),
		Net:          s.Net.String(),
		ByCategory: mapAll(s.ByCategory, func(c core.CategoryAmount) categoryAmountJSON {
			return categoryAmountJSON{Name: c.Name, Kind: c.Kind, Amount: c.Amount.String()}
		}),
	}
}

func toCategorizedJSON(c core.CategorizedTransactions) categorizedJSON {
	return categorizedJSON{
		Name:         c.Name,
		Kind:         c.Kind,
		Total:        c.Total.String(),
		Transactions: mapAll(c.Transactions, toTransactionJSON),
	}
}

func toGoalSummaryJSON(s core.GoalSummary) goalSummaryJSON {
	return goalSummaryJSON{
		AccountID:   s.AccountID,
		Total:       s.Total,
		Active:      s.Active,
		Completed:   s.Completed,
		Paused:      s.Paused,
		TotalTarget: s.TotalTarget.String(),
		TotalSaved:  s.TotalSaved.String(),
		Progress:    s.Progress,
	}
}
