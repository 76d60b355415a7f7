package app

import "time"

// SendDelay is how long to wait before sending an improvement so that it
// lands just ahead of the auction's end.
func SendDelay(slotsRemaining uint64, processing, slotDuration, buffer time.Duration) time.Duration {
	delay := time.Duration(slotsRemaining)*slotDuration - (processing + buffer)
	if delay < 0 {
		return 0
	}
	return delay
}

// Generations versions the scheduled sends of each auction. Any newer
// observation of an auction makes the sends scheduled before it stale.
type Generations struct {
	gens map[[32]byte]uint64
}

func NewGenerations() *Generations {
	return &Generations{gens: make(map[[32]byte]uint64)}
}

func (g *Generations) Bump(hash [32]byte) uint64 {
	g.gens[hash]++
	return g.gens[hash]
}

func (g *Generations) IsCurrent(hash [32]byte, gen uint64) bool {
	current, ok := g.gens[hash]
	return ok && current == gen
}

func (g *Generations) Forget(hash [32]byte) {
	delete(g.gens, hash)
}
