package worker

import (
	"context"
	"errors"
	"fmt"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/sheets"
	"saldo/internal/storage"
)

// MirrorWorker copies committed ledger state into an external mirror. Events
// only carry ids; current state is read back from the store.
type MirrorWorker struct {
	store  storage.Reader
	mirror sheets.Mirror
	logger *log.Logger
}

func NewMirrorWorker(store storage.Reader, mirror sheets.Mirror) *MirrorWorker {
	return &MirrorWorker{
		store:  store,
		mirror: mirror,
		logger: log.Default(log.ComponentWorker),
	}
}

// HandleEvent mirrors one ledger event. A returned error requeues the event,
// so entities deleted since the event was published are skipped, not retried.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventType, ev.Type,
		log.FieldAccountID, ev.AccountID,
		log.FieldTransactionID, ev.TransactionID,
		log.FieldGoalID, ev.GoalID)

	switch ev.Type {
	case amqp.TransactionCreated, amqp.TransactionUpdated:
		return w.mirrorTransaction(ctx, ev.TransactionID)
	case amqp.TransactionDeleted:
		if err := w.mirror.DeleteTransaction(ctx, ev.TransactionID); err != nil {
			return fmt.Errorf("delete mirrored transaction: %w", err)
		}
		return nil
	case amqp.GoalAllocated, amqp.GoalWithdrawn:
		return w.mirrorGoal(ctx, ev.GoalID)
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown ledger event", log.FieldEventType, ev.Type)
		return nil
	}
}

func (w *MirrorWorker) mirrorTransaction(ctx context.Context, id string) error {
	t, err := w.store.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.InfoContext(ctx, "Transaction gone before mirroring, skipping", log.FieldTransactionID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if err := w.mirror.UpsertTransaction(ctx, t); err != nil {
		return fmt.Errorf("mirror transaction: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirrored transaction", log.NewFields().
		WithOperation(log.OpMirror).
		WithTransaction(t).ToSlice()...)
	return nil
}

func (w *MirrorWorker) mirrorGoal(ctx context.Context, id string) error {
	g, err := w.store.GetGoal(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.InfoContext(ctx, "Goal gone before mirroring, skipping", log.FieldGoalID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get goal: %w", err)
	}
	if err := w.mirror.UpsertGoal(ctx, g.Derive()); err != nil {
		return fmt.Errorf("mirror goal: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirrored goal",
		log.FieldGoalID, g.ID,
		"saved", g.SavedAmount.String())
	return nil
}

// Reconcile re-mirrors every transaction and goal. It is run at startup to
// recover from events lost while the worker was down. Failures are counted
// and logged; the pass continues with the remaining entities.
func (w *MirrorWorker) Reconcile(ctx context.Context) error {
	txs, err := w.store.ListTransactions(ctx, storage.TransactionFilter{})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	goals, err := w.store.ListGoals(ctx, "")
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}

	synced, failed := 0, 0
	for _, t := range txs {
		if err := w.mirror.UpsertTransaction(ctx, t); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror transaction during reconcile",
				log.FieldTransactionID, t.ID, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}
	for _, g := range goals {
		if err := w.mirror.UpsertGoal(ctx, g.Derive()); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror goal during reconcile",
				log.FieldGoalID, g.ID, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Reconcile completed",
		"transactions", len(txs),
		"goals", len(goals),
		"synced", synced,
		"errors", failed)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
