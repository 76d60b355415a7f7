package app

import (
	"time"

	"github.com/egaotan/fast-transfer-solver/vaa"
)

type KnownOrder struct {
	Vaa      *vaa.VAA
	Order    *vaa.FastMarketOrder
	Hash     [32]byte
	SeenAt   time.Time
	SeenSlot uint64
	// Auctioned is set once an auction account was seen for the order.
	Auctioned bool
	// Tracked is set once the order was handed to the reconciler.
	Tracked bool
}

// KnownOrders are the fast orders seen on the feed, by digest.
type KnownOrders struct {
	orders map[[32]byte]*KnownOrder
}

func NewKnownOrders() *KnownOrders {
	return &KnownOrders{orders: make(map[[32]byte]*KnownOrder)}
}

// Add records v unless its digest is already known. The second result is
// false for a duplicate.
func (k *KnownOrders) Add(v *vaa.VAA, order *vaa.FastMarketOrder, slot uint64, now time.Time) (*KnownOrder, bool) {
	hash := v.Digest()
	if known, ok := k.orders[hash]; ok {
		return known, false
	}
	known := &KnownOrder{Vaa: v, Order: order, Hash: hash, SeenAt: now, SeenSlot: slot}
	k.orders[hash] = known
	return known, true
}

func (k *KnownOrders) Get(hash [32]byte) *KnownOrder {
	return k.orders[hash]
}

func (k *KnownOrders) Remove(hash [32]byte) {
	delete(k.orders, hash)
}

func (k *KnownOrders) Len() int {
	return len(k.orders)
}

// Prune forgets orders seen more than maxAge before now and returns their
// digests.
func (k *KnownOrders) Prune(now time.Time, maxAge time.Duration) [][32]byte {
	var pruned [][32]byte
	for hash, known := range k.orders {
		if now.Sub(known.SeenAt) > maxAge {
			delete(k.orders, hash)
			pruned = append(pruned, hash)
		}
	}
	return pruned
}

// Unauctioned returns the orders nobody bid on within grace slots of being
// seen and that were not handed over yet.
func (k *KnownOrders) Unauctioned(slot, grace uint64) []*KnownOrder {
	var out []*KnownOrder
	for _, known := range k.orders {
		if known.Auctioned || known.Tracked || slot < known.SeenSlot+grace {
			continue
		}
		out = append(out, known)
	}
	return out
}
