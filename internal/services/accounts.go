package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/storage"
)

type (
	NewAccount struct {
		Username string
		Email    string
		IsAdmin  bool
	}

	// AccountChanges is a partial update. Balance is owned by the ledger and
	// cannot be set here.
	AccountChanges struct {
		Username *string
		Email    *string
		IsAdmin  *bool
	}
)

// AccountService manages account records.
type AccountService struct {
	store  storage.Store
	logger *log.Logger
	now    func() time.Time
}

func NewAccountService(store storage.Store) *AccountService {
	return &AccountService{
		store:  store,
		logger: log.Default(log.ComponentAccounts),
		now:    time.Now,
	}
}

func (s *AccountService) Get(ctx context.Context, id string) (core.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, core.Infra("get account", err)
	}
	return a, nil
}

func (s *AccountService) List(ctx context.Context) ([]core.Account, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, core.Infra("list accounts", err)
	}
	return accounts, nil
}

// Balance returns the current signed balance of the account.
func (s *AccountService) Balance(ctx context.Context, id string) (decimal.Decimal, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

// Create registers an account with a zero balance. Username and email must be
// unique, compared case-insensitively.
func (s *AccountService) Create(ctx context.Context, in NewAccount) (core.Account, error) {
	now := s.now().UTC()
	a := core.Account{
		ID:        uuid.NewString(),
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.TrimSpace(in.Email),
		Balance:   decimal.Zero,
		IsAdmin:   in.IsAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Validate(); err != nil {
		s.logger.LogOutcome(ctx, "Account create", err, log.NewFields().WithOperation(log.OpCreate))
		return core.Account{}, err
	}

	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		return core.Infra("create account", uow.CreateAccount(ctx, a))
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Account create", err, log.NewFields().
			WithOperation(log.OpCreate).
			With(log.FieldAccountID, a.ID))
		return core.Account{}, err
	}

	s.logger.InfoContext(ctx, "Account created",
		log.FieldAccountID, a.ID,
		"username", a.Username)
	return a, nil
}

func (s *AccountService) Update(ctx context.Context, id string, changes AccountChanges) (core.Account, error) {
	var updated core.Account
	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		a, err := uow.GetAccount(ctx, id)
		if err != nil {
			return core.Infra("get account", err)
		}
		if changes.Username != nil {
			a.Username = strings.TrimSpace(*changes.Username)
		}
		if changes.Email != nil {
			a.Email = strings.TrimSpace(*changes.Email)
		}
		if changes.IsAdmin != nil {
			a.IsAdmin = *changes.IsAdmin
		}
		if err := a.Validate(); err != nil {
			return err
		}
		a.UpdatedAt = s.now().UTC()
		if err := uow.UpdateAccount(ctx, a); err != nil {
			return core.Infra("update account", err)
		}
		updated = a
		return nil
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Account update", err, log.NewFields().
			WithOperation(log.OpUpdate).
			With(log.FieldAccountID, id))
		return core.Account{}, err
	}

	s.logger.InfoContext(ctx, "Account updated", log.FieldAccountID, id)
	return updated, nil
}

// Delete removes an account that owns no transactions, categories or goals.
// Accounts with dependents are rejected with a ConflictError.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	err := storage.WithinUnit(ctx, s.store, func(uow storage.UnitOfWork) error {
		if _, err := uow.GetAccount(ctx, id); err != nil {
			return core.Infra("get account", err)
		}
		n, err := uow.CountAccountDependents(ctx, id)
		if err != nil {
			return core.Infra("count account dependents", err)
		}
		if n > 0 {
			return core.Conflict("account", "account still owns transactions, categories or goals")
		}
		return core.Infra("delete account", uow.DeleteAccount(ctx, id))
	})
	if err != nil {
		s.logger.LogOutcome(ctx, "Account delete", err, log.NewFields().
			WithOperation(log.OpDelete).
			With(log.FieldAccountID, id))
		return err
	}

	s.logger.InfoContext(ctx, "Account deleted", log.FieldAccountID, id)
	return nil
}
