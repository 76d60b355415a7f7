package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	th := NewThrottle(4)
	th.now = func() time.Time { return now }

	assert.True(t, th.CanSend(4, 0))
	assert.False(t, th.CanSend(5, 0))
	assert.False(t, th.CanSend(3, 2))

	th.Enqueue(3)
	assert.True(t, th.CanSend(1, 0))
	assert.False(t, th.CanSend(1, 1))

	// finished, but still inside the one second window
	th.Done(3)
	assert.Equal(t, 0, th.InFlight())
	assert.False(t, th.CanSend(2, 0))

	now = now.Add(1001 * time.Millisecond)
	assert.True(t, th.CanSend(4, 0))

	th.Done(1)
	assert.Equal(t, 0, th.InFlight())
}

// Long running sends keep their slots after the window has moved on.
func TestThrottleCountsEnqueued(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	th := NewThrottle(2)
	th.now = func() time.Time { return now }
	th.Enqueue(2)
	now = now.Add(5 * time.Second)
	assert.False(t, th.CanSend(1, 0))
	th.Done(1)
	assert.True(t, th.CanSend(1, 0))
}
