// Package memory is an in-process Store used for development and tests.
//
// A unit of work holds an exclusive semaphore for its lifetime and writes to a
// private copy of the state; Commit swaps the copy in. Readers outside a unit
// always see the last committed state.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"saldo/internal/core"
	"saldo/internal/storage"
)

// DefaultLockTimeout bounds how long Begin waits for the write lock.
const DefaultLockTimeout = 5 * time.Second

type state struct {
	accounts     map[string]core.Account
	transactions map[string]core.Transaction
	categories   map[string]core.Category
	goals        map[string]core.Goal
}

func newState() *state {
	return &state{
		accounts:     map[string]core.Account{},
		transactions: map[string]core.Transaction{},
		categories:   map[string]core.Category{},
		goals:        map[string]core.Goal{},
	}
}

func (s *state) clone() *state {
	return &state{
		accounts:     maps.Clone(s.accounts),
		transactions: maps.Clone(s.transactions),
		categories:   maps.Clone(s.categories),
		goals:        maps.Clone(s.goals),
	}
}

type Store struct {
	mu          sync.RWMutex
	current     *state
	writer      *semaphore.Weighted
	lockTimeout time.Duration
}

func New() *Store {
	return NewWithLockTimeout(DefaultLockTimeout)
}

func NewWithLockTimeout(d time.Duration) *Store {
	if d <= 0 {
		d = DefaultLockTimeout
	}
	return &Store{current: newState(), writer: semaphore.NewWeighted(1), lockTimeout: d}
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Begin implements storage.Store.
func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	if err := s.writer.Acquire(waitCtx, 1); err != nil {
		return nil, fmt.Errorf("acquire write lock: %w", err)
	}
	return &unit{store: s, st: s.snapshot().clone()}, nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) GetAccount(ctx context.Context, id string) (core.Account, error) {
	return getAccount(s.snapshot(), id)
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return listAccounts(s.snapshot()), nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return getTransaction(s.snapshot(), id)
}

func (s *Store) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return listTransactions(s.snapshot(), f), nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (core.Category, error) {
	return getCategory(s.snapshot(), id)
}

func (s *Store) FindCategory(ctx context.Context, key core.CategoryKey) (core.Category, error) {
	return findCategory(s.snapshot(), key)
}

func (s *Store) ListCategories(ctx context.Context, accountID string) ([]core.Category, error) {
	return listCategories(s.snapshot(), accountID), nil
}

func (s *Store) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	return getGoal(s.snapshot(), id)
}

func (s *Store) ListGoals(ctx context.Context, accountID string) ([]core.Goal, error) {
	return listGoals(s.snapshot(), accountID), nil
}

type unit struct {
	store *Store
	st    *state
	done  bool
}

func (u *unit) Commit() error {
	if u.done {
		return storage.ErrUnitClosed
	}
	u.done = true
	u.store.mu.Lock()
	u.store.current = u.st
	u.store.mu.Unlock()
	u.store.writer.Release(1)
	return nil
}

func (u *unit) Rollback() error {
	if u.done {
		return storage.ErrUnitClosed
	}
	u.done = true
	u.st = nil
	u.store.writer.Release(1)
	return nil
}

func (u *unit) check() error {
	if u.done {
		return storage.ErrUnitClosed
	}
	return nil
}

func (u *unit) GetAccount(ctx context.Context, id string) (core.Account, error) {
	if err := u.check(); err != nil {
		return core.Account{}, err
	}
	return getAccount(u.st, id)
}

func (u *unit) ListAccounts(ctx context.Context) ([]core.Account, error) {
	if err := u.check(); err != nil {
		return nil, err
	}
	return listAccounts(u.st), nil
}

func (u *unit) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	if err := u.check(); err != nil {
		return core.Transaction{}, err
	}
	return getTransaction(u.st, id)
}

func (u *unit) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	if err := u.check(); err != nil {
		return nil, err
	}
	return listTransactions(u.st, f), nil
}

func (u *unit) GetCategory(ctx context.Context, id string) (core.Category, error) {
	if err := u.check(); err != nil {
		return core.Category{}, err
	}
	return getCategory(u.st, id)
}

func (u *unit) FindCategory(ctx context.Context, key core.CategoryKey) (core.Category, error) {
	if err := u.check(); err != nil {
		return core.Category{}, err
	}
	return findCategory(u.st, key)
}

func (u *unit) ListCategories(ctx context.Context, accountID string) ([]core.Category, error) {
	if err := u.check(); err != nil {
		return nil, err
	}
	return listCategories(u.st, accountID), nil
}

func (u *unit) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	if err := u.check(); err != nil {
		return core.Goal{}, err
	}
	return getGoal(u.st, id)
}

func (u *unit) ListGoals(ctx context.Context, accountID string) ([]core.Goal, error) {
	if err := u.check(); err != nil {
		return nil, err
	}
	return listGoals(u.st, accountID), nil
}

func (u *unit) CreateAccount(ctx context.Context, a core.Account) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.accounts[a.ID]; ok {
		return core.Conflict("account", fmt.Sprintf("id %q already exists", a.ID))
	}
	if err := u.uniqueAccount(a); err != nil {
		return err
	}
	u.st.accounts[a.ID] = a
	return nil
}

func (u *unit) UpdateAccount(ctx context.Context, a core.Account) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.accounts[a.ID]; !ok {
		return core.NotFound("account", a.ID)
	}
	if err := u.uniqueAccount(a); err != nil {
		return err
	}
	u.st.accounts[a.ID] = a
	return nil
}

func (u *unit) uniqueAccount(a core.Account) error {
	for id, other := range u.st.accounts {
		if id == a.ID {
			continue
		}
		if strings.EqualFold(other.Username, a.Username) {
			return core.Conflict("account", "username already taken")
		}
		if strings.EqualFold(other.Email, a.Email) {
			return core.Conflict("account", "email already registered")
		}
	}
	return nil
}

func (u *unit) DeleteAccount(ctx context.Context, id string) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.accounts[id]; !ok {
		return core.NotFound("account", id)
	}
	delete(u.st.accounts, id)
	return nil
}

func (u *unit) CountAccountDependents(ctx context.Context, accountID string) (int, error) {
	if err := u.check(); err != nil {
		return 0, err
	}
	n := 0
	for _, t := range u.st.transactions {
		if t.AccountID == accountID {
			n++
		}
	}
	for _, c := range u.st.categories {
		if c.AccountID == accountID {
			n++
		}
	}
	for _, g := range u.st.goals {
		if g.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (u *unit) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.transactions[t.ID]; ok {
		return core.Conflict("transaction", fmt.Sprintf("id %q already exists", t.ID))
	}
	t.Tags = slices.Clone(t.Tags)
	u.st.transactions[t.ID] = t
	return nil
}

func (u *unit) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.transactions[t.ID]; !ok {
		return core.NotFound("transaction", t.ID)
	}
	t.Tags = slices.Clone(t.Tags)
	u.st.transactions[t.ID] = t
	return nil
}

func (u *unit) DeleteTransaction(ctx context.Context, id string) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.transactions[id]; !ok {
		return core.NotFound("transaction", id)
	}
	delete(u.st.transactions, id)
	return nil
}

func (u *unit) CreateCategory(ctx context.Context, c core.Category) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.categories[c.ID]; ok {
		return core.Conflict("category", fmt.Sprintf("id %q already exists", c.ID))
	}
	if _, err := findCategory(u.st, c.Key()); err == nil {
		return core.Conflict("category", fmt.Sprintf("%s/%s already exists", c.Name, c.Kind))
	}
	u.st.categories[c.ID] = c
	return nil
}

func (u *unit) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.categories[c.ID]; !ok {
		return core.NotFound("category", c.ID)
	}
	if other, err := findCategory(u.st, c.Key()); err == nil && other.ID != c.ID {
		return core.Conflict("category", fmt.Sprintf("%s/%s already exists", c.Name, c.Kind))
	}
	u.st.categories[c.ID] = c
	return nil
}

func (u *unit) DeleteCategory(ctx context.Context, id string) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.categories[id]; !ok {
		return core.NotFound("category", id)
	}
	delete(u.st.categories, id)
	return nil
}

func (u *unit) UpsertCategoryDelta(ctx context.Context, key core.CategoryKey, delta decimal.Decimal, at time.Time) (core.Category, error) {
	return u.upsertCategory(key, at, func(c core.Category) decimal.Decimal { return c.Balance.Add(delta) })
}

func (u *unit) SetCategoryBalance(ctx context.Context, key core.CategoryKey, balance decimal.Decimal, at time.Time) (core.Category, error) {
	return u.upsertCategory(key, at, func(core.Category) decimal.Decimal { return balance })
}

func (u *unit) upsertCategory(key core.CategoryKey, at time.Time, next func(core.Category) decimal.Decimal) (core.Category, error) {
	if err := u.check(); err != nil {
		return core.Category{}, err
	}
	c, err := findCategory(u.st, key)
	if err != nil {
		c = core.Category{
			ID:        uuid.NewString(),
			AccountID: key.AccountID,
			Name:      key.Name,
			Kind:      key.Kind,
			Balance:   decimal.Zero,
			CreatedAt: at,
		}
	}
	c.Balance = next(c)
	c.UpdatedAt = at
	u.st.categories[c.ID] = c
	return c, nil
}

func (u *unit) CreateGoal(ctx context.Context, g core.Goal) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.goals[g.ID]; ok {
		return core.Conflict("goal", fmt.Sprintf("id %q already exists", g.ID))
	}
	u.st.goals[g.ID] = g
	return nil
}

func (u *unit) UpdateGoal(ctx context.Context, g core.Goal) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.goals[g.ID]; !ok {
		return core.NotFound("goal", g.ID)
	}
	u.st.goals[g.ID] = g
	return nil
}

func (u *unit) DeleteGoal(ctx context.Context, id string) error {
	if err := u.check(); err != nil {
		return err
	}
	if _, ok := u.st.goals[id]; !ok {
		return core.NotFound("goal", id)
	}
	delete(u.st.goals, id)
	return nil
}

func getAccount(st *state, id string) (core.Account, error) {
	a, ok := st.accounts[id]
	if !ok {
		return core.Account{}, core.NotFound("account", id)
	}
	return a, nil
}

func listAccounts(st *state) []core.Account {
	out := make([]core.Account, 0, len(st.accounts))
	for _, a := range st.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out
}

func getTransaction(st *state, id string) (core.Transaction, error) {
	t, ok := st.transactions[id]
	if !ok {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	t.Tags = slices.Clone(t.Tags)
	return t, nil
}

func listTransactions(st *state, f storage.TransactionFilter) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, t := range st.transactions {
		if f.AccountID != "" && t.AccountID != f.AccountID {
			continue
		}
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if f.Tag != "" && !t.HasTag(f.Tag) {
			continue
		}
		t.Tags = slices.Clone(t.Tags)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []core.Transaction{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out
}

func getCategory(st *state, id string) (core.Category, error) {
	c, ok := st.categories[id]
	if !ok {
		return core.Category{}, core.NotFound("category", id)
	}
	return c, nil
}

func findCategory(st *state, key core.CategoryKey) (core.Category, error) {
	for _, c := range st.categories {
		if c.Key() == key {
			return c, nil
		}
	}
	return core.Category{}, core.NotFound("category", key.Name+"/"+string(key.Kind))
}

func listCategories(st *state, accountID string) []core.Category {
	out := make([]core.Category, 0)
	for _, c := range st.categories {
		if accountID != "" && c.AccountID != accountID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func getGoal(st *state, id string) (core.Goal, error) {
	g, ok := st.goals[id]
	if !ok {
		return core.Goal{}, core.NotFound("goal", id)
	}
	return g, nil
}

func listGoals(st *state, accountID string) []core.Goal {
	out := make([]core.Goal, 0)
	for _, g := range st.goals {
		if accountID != "" && g.AccountID != accountID {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out
}

func before(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return idA < idB
}
