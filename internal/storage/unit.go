package storage

import (
	"context"
	"errors"
	"log/slog"

	"saldo/internal/core"
)

// ErrUnitClosed is returned when a unit of work is used after Commit or Rollback.
var ErrUnitClosed = errors.New("unit of work already closed")

// WithinUnit runs fn inside a fresh unit of work. The unit is committed when fn
// returns nil and rolled back on error, panic or a failed commit.
func WithinUnit(ctx context.Context, s Store, fn func(uow UnitOfWork) error) (err error) {
	uow, err := s.Begin(ctx)
	if err != nil {
		return core.Infra("begin unit of work", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := uow.Rollback(); rbErr != nil && !errors.Is(rbErr, ErrUnitClosed) {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
	}()

	if err = fn(uow); err != nil {
		return err
	}
	if err = uow.Commit(); err != nil {
		return core.Infra("commit unit of work", err)
	}
	committed = true
	return nil
}
