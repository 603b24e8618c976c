package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
)

type (
	Kind string

	GoalStatus string

	Account struct {
		ID        string
		Username  string
		Email     string
		Balance   decimal.Decimal
		IsAdmin   bool
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Transaction struct {
		ID          string
		AccountID   string
		Kind        Kind
		Description string
		Amount      decimal.Decimal
		Category    string   // Free-text label, not aggregated
		Tags        []string // Drive category aggregation
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// CategoryKey is the natural key of a Category.
	CategoryKey struct {
		AccountID string
		Name      string
		Kind      Kind
	}

	Category struct {
		ID        string
		AccountID string
		Name      string
		Kind      Kind
		Balance   decimal.Decimal
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Goal struct {
		ID           string
		AccountID    string
		Title        string
		Description  string
		TargetAmount decimal.Decimal
		SavedAmount  decimal.Decimal
		TargetDate   *time.Time
		Status       GoalStatus
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrInvalidStatus    = errors.New("invalid goal status")
	ErrEmptyUsername    = errors.New("empty username")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrEmptyTitle       = errors.New("empty goal title")
	ErrEmptyAccount     = errors.New("empty account id")
	ErrEmptyCategory    = errors.New("empty category name")
	ErrNegativeTarget   = errors.New("target amount must not be negative")
	ErrNegativeSaved    = errors.New("saved amount must not be negative")
	ErrDescriptionLimit = errors.New("description too long (max 200 characters)")
)

// IsValid reports whether k is one of the two transaction polarities.
func (k Kind) IsValid() bool {
	switch k {
	case Income, Expense:
		return true
	default:
		return false
	}
}

// Sign returns +1 for income and -1 for expense.
func (k Kind) Sign() decimal.Decimal {
	if k == Income {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

func (s GoalStatus) IsValid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalPaused:
		return true
	default:
		return false
	}
}

// Key returns the category natural key.
func (c Category) Key() CategoryKey {
	return CategoryKey{AccountID: c.AccountID, Name: c.Name, Kind: c.Kind}
}

// BalanceDelta is the signed effect of t on its account balance.
func (t Transaction) BalanceDelta() decimal.Decimal {
	return t.Amount.Mul(t.Kind.Sign())
}

// CategoryKeys returns one key per distinct non-blank tag.
func (t Transaction) CategoryKeys() []CategoryKey {
	tags := NormalizeTags(t.Tags)
	keys := make([]CategoryKey, 0, len(tags))
	for _, tag := range tags {
		keys = append(keys, CategoryKey{AccountID: t.AccountID, Name: tag, Kind: t.Kind})
	}
	return keys
}

// HasTag reports whether the transaction carries tag after normalization.
func (t Transaction) HasTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	for _, v := range t.Tags {
		if strings.TrimSpace(v) == tag {
			return true
		}
	}
	return false
}

// NormalizeTags trims tags, drops blanks and duplicates, and keeps first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return Invalid("username", ErrEmptyUsername)
	}
	email := strings.TrimSpace(a.Email)
	if email == "" || !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
		return Invalid("email", ErrInvalidEmail)
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.AccountID) == "" {
		return Invalid("account_id", ErrEmptyAccount)
	}
	if !t.Kind.IsValid() {
		return Invalid("kind", ErrInvalidKind)
	}
	if !t.Amount.IsPositive() {
		return Invalid("amount", ErrInvalidAmount)
	}
	if len(t.Description) > 200 {
		return Invalid("description", ErrDescriptionLimit)
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.AccountID) == "" {
		return Invalid("account_id", ErrEmptyAccount)
	}
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("name", ErrEmptyCategory)
	}
	if !c.Kind.IsValid() {
		return Invalid("kind", ErrInvalidKind)
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.AccountID) == "" {
		return Invalid("account_id", ErrEmptyAccount)
	}
	if strings.TrimSpace(g.Title) == "" {
		return Invalid("title", ErrEmptyTitle)
	}
	if g.TargetAmount.IsNegative() {
		return Invalid("target_amount", ErrNegativeTarget)
	}
	if g.SavedAmount.IsNegative() {
		return Invalid("saved_amount", ErrNegativeSaved)
	}
	if !g.Status.IsValid() {
		return Invalid("status", ErrInvalidStatus)
	}
	return nil
}
