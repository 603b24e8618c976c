package memory

import (
	"context"
	"slices"
	"sync"

	"saldo/internal/core"
	ports "saldo/internal/sheets"
)

// Mirror keeps mirrored rows in process, in insertion order. It stands in for
// the Google adapter in development and tests.
type Mirror struct {
	mu    sync.Mutex
	txs   []core.Transaction
	goals []core.Goal
}

var _ ports.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) UpsertTransaction(_ context.Context, t core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Tags = slices.Clone(t.Tags)
	for i := range m.txs {
		if m.txs[i].ID == t.ID {
			m.txs[i] = t
			return nil
		}
	}
	m.txs = append(m.txs, t)
	return nil
}

func (m *Mirror) DeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = slices.DeleteFunc(m.txs, func(t core.Transaction) bool { return t.ID == id })
	return nil
}

func (m *Mirror) UpsertGoal(_ context.Context, g core.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.goals {
		if m.goals[i].ID == g.ID {
			m.goals[i] = g
			return nil
		}
	}
	m.goals = append(m.goals, g)
	return nil
}

// Transactions returns a copy of the mirrored transaction rows.
func (m *Mirror) Transactions() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.txs)
}

// Goals returns a copy of the mirrored goal rows.
func (m *Mirror) Goals() []core.Goal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.goals)
}
