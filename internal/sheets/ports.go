package sheets

import (
	"context"

	"saldo/internal/core"
)

// Ports for outbound mirror adapters. Writes are keyed by entity id and must
// be idempotent: events are delivered at least once.
type (
	TransactionMirror interface {
		// UpsertTransaction writes the row of t, appending it when absent.
		UpsertTransaction(ctx context.Context, t core.Transaction) error
		// DeleteTransaction removes the row of id. A missing row is not an error.
		DeleteTransaction(ctx context.Context, id string) error
	}

	GoalMirror interface {
		UpsertGoal(ctx context.Context, g core.Goal) error
	}

	Mirror interface {
		TransactionMirror
		GoalMirror
	}
)

// Column headers written to the first row of each mirrored sheet.
var (
	TransactionHeaders = []string{"ID", "Date", "Account", "Kind", "Description", "Amount", "Category", "Tags"}
	GoalHeaders        = []string{"ID", "Account", "Title", "Target", "Saved", "Progress", "Status", "Target date"}
)
