package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

type (
	CategoryAmount struct {
		Name   string
		Kind   Kind
		Amount decimal.Decimal
	}

	// CategorySummary is the per-account view of category balances.
	CategorySummary struct {
		AccountID    string
		TotalIncome  decimal.Decimal
		TotalExpense decimal.Decimal
		Net          decimal.Decimal
		ByCategory   []CategoryAmount
	}

	// CategorizedTransactions groups transactions under one tag and kind.
	CategorizedTransactions struct {
		Name         string
		Kind         Kind
		Total        decimal.Decimal
		Transactions []Transaction
	}
)

// SummarizeCategories sums category balances per kind. Net is income minus expense.
func SummarizeCategories(accountID string, cats []Category) CategorySummary {
	s := CategorySummary{
		AccountID:    accountID,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}
	for _, c := range cats {
		switch c.Kind {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(c.Balance)
		case Expense:
			s.TotalExpense = s.TotalExpense.Add(c.Balance)
		}
		s.ByCategory = append(s.ByCategory, CategoryAmount{Name: c.Name, Kind: c.Kind, Amount: c.Balance})
	}
	s.Net = s.TotalIncome.Sub(s.TotalExpense)
	sort.Slice(s.ByCategory, func(i, j int) bool {
		if !s.ByCategory[i].Amount.Equal(s.ByCategory[j].Amount) {
			return s.ByCategory[i].Amount.GreaterThan(s.ByCategory[j].Amount)
		}
		return s.ByCategory[i].Name < s.ByCategory[j].Name
	})
	return s
}

// GroupByCategory buckets transactions by (tag, kind). A multi-tag transaction
// appears under each of its tags; untagged transactions are left out.
func GroupByCategory(txs []Transaction) []CategorizedTransactions {
	index := map[CategoryKey]int{}
	var out []CategorizedTransactions
	for _, t := range txs {
		for _, key := range t.CategoryKeys() {
			key.AccountID = ""
			i, ok := index[key]
			if !ok {
				i = len(out)
				index[key] = i
				out = append(out, CategorizedTransactions{Name: key.Name, Kind: key.Kind, Total: decimal.Zero})
			}
			out[i].Transactions = append(out[i].Transactions, t)
			out[i].Total = out[i].Total.Add(t.Amount)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
