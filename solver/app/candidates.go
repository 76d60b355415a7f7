package app

import (
	"github.com/badgerodon/collections/queue"
	"github.com/egaotan/fast-transfer-solver/matchingengine"
)

type candidate struct {
	endSlot uint64
	auction *matchingengine.Auction
	execute bool
}

// Execution is an auction this solver holds the best offer on, due for
// execution.
type Execution struct {
	Hash     [32]byte
	EndSlot  uint64
	Auction  *matchingengine.Auction
	Attempts int
}

// ExecutionQueue is a FIFO of executions.
type ExecutionQueue struct {
	q *queue.Queue
}

func NewExecutionQueue() *ExecutionQueue {
	return &ExecutionQueue{q: queue.New()}
}

func (eq *ExecutionQueue) Push(e *Execution) {
	eq.q.Enqueue(e)
}

// Pop returns the oldest execution, nil when empty.
func (eq *ExecutionQueue) Pop() *Execution {
	if eq.q.Len() == 0 {
		return nil
	}
	return eq.q.Dequeue().(*Execution)
}

func (eq *ExecutionQueue) Len() int {
	return eq.q.Len()
}

// Candidates are the live auctions this solver has bid on.
type Candidates struct {
	items map[[32]byte]*candidate
}

func NewCandidates() *Candidates {
	return &Candidates{items: make(map[[32]byte]*candidate)}
}

// Add records auction as ours until told otherwise.
func (c *Candidates) Add(hash [32]byte, endSlot uint64, auction *matchingengine.Auction) {
	c.items[hash] = &candidate{endSlot: endSlot, auction: auction, execute: true}
}

// Update flips the execute flag of a known candidate.
func (c *Candidates) Update(hash [32]byte, execute bool) {
	if item, ok := c.items[hash]; ok {
		item.execute = execute
	}
}

func (c *Candidates) Remove(hash [32]byte) {
	delete(c.items, hash)
}

func (c *Candidates) Has(hash [32]byte) bool {
	_, ok := c.items[hash]
	return ok
}

func (c *Candidates) Len() int {
	return len(c.items)
}

// ExpiredAuctions moves every candidate whose auction ended by slot into the
// queue for its target protocol. Ended candidates we were outbid on are
// dropped.
func (c *Candidates) ExpiredAuctions(slot uint64, cctp, local *ExecutionQueue) {
	for hash, item := range c.items {
		if slot < item.endSlot {
			continue
		}
		delete(c.items, hash)
		if !item.execute {
			continue
		}
		e := &Execution{Hash: hash, EndSlot: item.endSlot, Auction: item.auction}
		if item.auction.TargetProtocol.Kind == matchingengine.ProtocolLocal {
			local.Push(e)
		} else {
			cctp.Push(e)
		}
	}
}
