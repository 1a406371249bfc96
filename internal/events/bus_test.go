package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishReachesSubscribers(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Publish(TypeGameCreated, map[string]interface{}{"game_id": uint64(1)})

	ev := <-ch
	assert.Equal(t, TypeGameCreated, ev.Type)
	assert.Equal(t, uint64(1), ev.Fields["game_id"])
	assert.False(t, ev.At.IsZero())
}

func TestBus_SlowSubscriberDropsEvents(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	// Second publish must not block even though nobody is draining.
	b.Publish(TypeCardDealt, nil)
	b.Publish(TypeCardDealt, nil)

	<-ch
	select {
	case <-ch:
		t.Fatal("expected the overflow event to be dropped")
	default:
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(1)
	cancel()

	_, open := <-ch
	require.False(t, open)

	// Publishing after cancel must not panic on the closed channel.
	b.Publish(TypePlayerAction, nil)

	// Cancel is idempotent.
	cancel()
}
