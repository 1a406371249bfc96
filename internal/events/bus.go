package events

import (
	"sync"
	"time"
)

// Event types mirror the contract event surface off-chain observers key on.
const (
	TypeRandomnessRequested  = "RandomnessRequested"
	TypeRandomnessFulfilled  = "RandomnessFulfilled"
	TypeTransactionSubmitted = "TransactionSubmitted"
	TypeTransactionApproved  = "TransactionApproved"
	TypeTransactionExecuted  = "TransactionExecuted"
	TypeRandomEventTriggered = "RandomEventTriggered"
	TypeGameCreated          = "GameCreated"
	TypeCardDealt            = "CardDealt"
	TypeCardRequested        = "CardRequested"
	TypePlayerAction         = "PlayerAction"
)

type Event struct {
	Type   string                 `json:"type"`
	At     time.Time              `json:"at"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// Bus is a small in-process fanout. Publishing never blocks: slow
// subscribers drop events rather than stall game or treasury operations.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

func (b *Bus) Publish(typ string, fields map[string]interface{}) {
	ev := Event{Type: typ, At: time.Now().UTC(), Fields: fields}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a buffered subscriber channel. Call the returned
// cancel func to unsubscribe; the channel is closed then.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
