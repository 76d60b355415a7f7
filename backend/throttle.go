package backend

import "time"

// Throttle caps transactions per second. It is owned by one goroutine.
type Throttle struct {
	maxTPS   int
	enqueued int
	sent     []time.Time
	now      func() time.Time
}

func NewThrottle(maxTPS int) *Throttle {
	return &Throttle{maxTPS: maxTPS, now: time.Now}
}

func (t *Throttle) inLastSecond() int {
	cutoff := t.now().Add(-time.Second)
	i := 0
	for i < len(t.sent) && !t.sent[i].After(cutoff) {
		i++
	}
	t.sent = t.sent[i:]
	return len(t.sent)
}

// CanSend reports whether n more transactions fit next to the ones in
// flight and pendingExecutions already promised.
func (t *Throttle) CanSend(n, pendingExecutions int) bool {
	used := t.inLastSecond()
	if t.enqueued > used {
		used = t.enqueued
	}
	return used+pendingExecutions+n <= t.maxTPS
}

func (t *Throttle) Enqueue(n int) {
	t.enqueued += n
	now := t.now()
	for i := 0; i < n; i++ {
		t.sent = append(t.sent, now)
	}
}

func (t *Throttle) Done(n int) {
	t.enqueued -= n
	if t.enqueued < 0 {
		t.enqueued = 0
	}
}

func (t *Throttle) InFlight() int {
	return t.enqueued
}
