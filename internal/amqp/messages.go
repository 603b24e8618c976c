package amqp

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// EventType names a committed ledger mutation.
type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
	GoalAllocated      EventType = "goal.allocated"
	GoalWithdrawn      EventType = "goal.withdrawn"
)

func (t EventType) IsValid() bool {
	switch t {
	case TransactionCreated, TransactionUpdated, TransactionDeleted, GoalAllocated, GoalWithdrawn:
		return true
	default:
		return false
	}
}

// LedgerEvent is published after a unit of work commits. It only carries
// identifiers; consumers read current state back from the store.
type LedgerEvent struct {
	Type          EventType `json:"type"`
	AccountID     string    `json:"account_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	GoalID        string    `json:"goal_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps a new event with the current time.
func NewLedgerEvent(t EventType, accountID string) *LedgerEvent {
	return &LedgerEvent{
		Type:      t,
		AccountID: accountID,
		Timestamp: time.Now().UTC(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return &ev, nil
}
