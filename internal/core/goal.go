package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Progress returns the funded percentage, rounded and clamped to 100.
// A goal without a positive target reports 0.
func (g Goal) Progress() int {
	if !g.TargetAmount.IsPositive() {
		return 0
	}
	pct := g.SavedAmount.Div(g.TargetAmount).Mul(hundred).Round(0)
	if pct.GreaterThan(hundred) {
		return 100
	}
	return int(pct.IntPart())
}

// Remaining returns max(target - saved, 0).
func (g Goal) Remaining() decimal.Decimal {
	r := g.TargetAmount.Sub(g.SavedAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// IsFunded reports whether the saved amount has reached the target.
func (g Goal) IsFunded() bool {
	return g.SavedAmount.GreaterThanOrEqual(g.TargetAmount)
}

// Derive re-evaluates status from the saved and target amounts.
//
// A funded goal is always completed. A completed goal that is no longer funded
// falls back to active; paused and active are left as the caller set them.
func (g Goal) Derive() Goal {
	switch {
	case g.IsFunded():
		g.Status = GoalCompleted
	case g.Status == GoalCompleted:
		g.Status = GoalActive
	case g.Status == "":
		g.Status = GoalActive
	}
	return g
}

// GoalSummary aggregates the goals of one account.
type GoalSummary struct {
	AccountID   string
	Total       int
	Active      int
	Completed   int
	Paused      int
	TotalTarget decimal.Decimal
	TotalSaved  decimal.Decimal
	Progress    int
}

// SummarizeGoals builds a GoalSummary; overall progress is computed on the sums.
func SummarizeGoals(accountID string, goals []Goal) GoalSummary {
	s := GoalSummary{AccountID: accountID, TotalTarget: decimal.Zero, TotalSaved: decimal.Zero}
	for _, g := range goals {
		s.Total++
		switch g.Status {
		case GoalActive:
			s.Active++
		case GoalCompleted:
			s.Completed++
		case GoalPaused:
			s.Paused++
		}
		s.TotalTarget = s.TotalTarget.Add(g.TargetAmount)
		s.TotalSaved = s.TotalSaved.Add(g.SavedAmount)
	}
	s.Progress = Goal{TargetAmount: s.TotalTarget, SavedAmount: s.TotalSaved}.Progress()
	return s
}
