package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-chart-lab/internal/domain"
)

func testMessage(provenance string) Message {
	return Message{
		MarketID:          "0x01",
		NewYesProbability: 0.62,
		NewNoProbability:  0.38,
		Provenance:        provenance,
		Classification:    domain.ClassConfirmedEvent,
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(nil)
	a := bus.Subscribe(4)
	b := bus.Subscribe(4)
	defer a.Close()
	defer b.Close()

	n := bus.Publish(testMessage("0xabc"))
	assert.Equal(t, 2, n)

	for _, sub := range []*Subscription{a, b} {
		select {
		case msg := <-sub.C():
			assert.Equal(t, "0xabc", msg.Provenance)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestBus_FullBufferDrops(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(1)
	defer sub.Close()

	assert.Equal(t, 1, bus.Publish(testMessage("0x1")))
	assert.Equal(t, 0, bus.Publish(testMessage("0x2")))

	msg := <-sub.C()
	assert.Equal(t, "0x1", msg.Provenance)
	select {
	case extra := <-sub.C():
		t.Fatalf("unexpected message %+v", extra)
	default:
	}
}

func TestSubscription_Close(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(1)
	require.Equal(t, 1, bus.Subscribers())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, bus.Subscribers())
	_, ok := <-sub.C()
	assert.False(t, ok, "channel should be closed")

	assert.Equal(t, 0, bus.Publish(testMessage("0x1")))
}

func TestSubscribe_DefaultBuffer(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(0)
	defer sub.Close()
	assert.Equal(t, DefaultBuffer, cap(sub.ch))
}
