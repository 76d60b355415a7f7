package app

import (
	"context"
	"time"

	"github.com/badgerodon/collections/queue"
	"github.com/egaotan/fast-transfer-solver/attestation"
	"github.com/egaotan/fast-transfer-solver/monitor"
	"github.com/egaotan/fast-transfer-solver/vaa"
	"go.uber.org/zap"
)

const maxOrphans = 1024

type TxHashResolver interface {
	TxHash(ctx context.Context, id string) (string, error)
}

type MessageSource interface {
	Messages(ctx context.Context, sourceDomain uint32, txHash string) ([]*attestation.Message, error)
}

// SettlementSink receives finalized orders once their CCTP attestation is
// available.
type SettlementSink interface {
	OnSettlementReady(ready *SettlementReady)
}

// TrackedOrder is a fast order whose settlement the solver cares about.
type TrackedOrder struct {
	Fast  *vaa.VAA
	Order *vaa.FastMarketOrder
}

type SettlementReady struct {
	Fast      *vaa.VAA
	Finalized *vaa.VAA
	Deposit   *vaa.Deposit
	BaseFee   uint64
	Message   *attestation.Message
}

type trackKey struct {
	chain    uint16
	emitter  [32]byte
	sequence uint64
}

// pairedKey is the key of the fast order a finalized VAA settles: same
// emitter, next sequence.
func pairedKey(finalized *vaa.VAA) trackKey {
	return trackKey{chain: finalized.EmitterChain, emitter: finalized.EmitterAddress, sequence: finalized.Sequence + 1}
}

func fastKey(fast *vaa.VAA) trackKey {
	return trackKey{chain: fast.EmitterChain, emitter: fast.EmitterAddress, sequence: fast.Sequence}
}

type pendingSettlement struct {
	key       trackKey
	finalized *vaa.VAA
	deposit   *vaa.Deposit
	baseFee   uint64
	attempts  int
}

// Reconciler pairs finalized VAAs with tracked fast orders and fetches the
// attestation each needs before it can be settled. It owns its state and
// processes one pending settlement per tick.
type Reconciler struct {
	ctx          context.Context
	logger       *zap.SugaredLogger
	wormscan     TxHashResolver
	circle       MessageSource
	sink         SettlementSink
	metrics      *monitor.Metrics
	tickInterval time.Duration
	requeueDelay time.Duration

	finalizedChan chan *vaa.VAA
	trackChan     chan *TrackedOrder
	requeueChan   chan *pendingSettlement

	pending     *queue.Queue
	tracked     map[trackKey]*TrackedOrder
	orphans     map[trackKey]*pendingSettlement
	orphanOrder *queue.Queue
	baseFees    map[trackKey]uint64
	txHashes    map[string]string
}

func NewReconciler(ctx context.Context, wormscan TxHashResolver, circle MessageSource, sink SettlementSink,
	metrics *monitor.Metrics, tickInterval, requeueDelay time.Duration, logger *zap.SugaredLogger) *Reconciler {
	return &Reconciler{
		ctx:           ctx,
		logger:        logger,
		wormscan:      wormscan,
		circle:        circle,
		sink:          sink,
		metrics:       metrics,
		tickInterval:  tickInterval,
		requeueDelay:  requeueDelay,
		finalizedChan: make(chan *vaa.VAA, 64),
		trackChan:     make(chan *TrackedOrder, 64),
		requeueChan:   make(chan *pendingSettlement, 64),
		pending:       queue.New(),
		tracked:       make(map[trackKey]*TrackedOrder),
		orphans:       make(map[trackKey]*pendingSettlement),
		orphanOrder:   queue.New(),
		baseFees:      make(map[trackKey]uint64),
		txHashes:      make(map[string]string),
	}
}

// SetSink wires the consumer of ready settlements before Run.
func (r *Reconciler) SetSink(sink SettlementSink) {
	r.sink = sink
}

// OnFinalizedVaa takes a raw finalized VAA off the feed.
func (r *Reconciler) OnFinalizedVaa(raw []byte) {
	v, err := vaa.Parse(raw)
	if err != nil {
		r.logger.Warnw("parse finalized vaa", "err", err)
		return
	}
	select {
	case r.finalizedChan <- v:
	case <-r.ctx.Done():
	}
}

// Track asks for the settlement of fast once its finalized VAA shows up.
func (r *Reconciler) Track(order *TrackedOrder) {
	select {
	case r.trackChan <- order:
	case <-r.ctx.Done():
	}
}

func (r *Reconciler) Run() error {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case v := <-r.finalizedChan:
			r.onFinalized(v)
		case order := <-r.trackChan:
			r.onTrack(order)
		case item := <-r.requeueChan:
			r.pending.Enqueue(item)
		case <-ticker.C:
			if r.pending.Len() > 0 {
				r.process(r.pending.Dequeue().(*pendingSettlement))
			}
		case <-r.ctx.Done():
			r.logger.Infow("reconciler exit", "pending", r.pending.Len(), "tracked", len(r.tracked))
			return nil
		}
		if r.metrics != nil {
			r.metrics.SettlementsQueued.Set(float64(r.pending.Len()))
		}
	}
}

func (r *Reconciler) onFinalized(v *vaa.VAA) {
	deposit, response, err := vaa.ParseSlowOrder(v.Payload)
	if err != nil {
		r.logger.Warnw("skip finalized vaa", "id", v.ID(), "err", err)
		return
	}
	key := pairedKey(v)
	if previous, ok := r.baseFees[key]; ok && previous != response.BaseFee {
		r.logger.Infow("base fee changed", "id", v.ID(), "from", previous, "to", response.BaseFee)
	}
	r.baseFees[key] = response.BaseFee
	item := &pendingSettlement{key: key, finalized: v, deposit: deposit, baseFee: response.BaseFee}
	if _, ok := r.tracked[key]; !ok {
		r.keepOrphan(item)
		return
	}
	r.pending.Enqueue(item)
}

// keepOrphan holds a finalized VAA whose fast order is not tracked yet, in
// case execution is still under way. The oldest are evicted first.
func (r *Reconciler) keepOrphan(item *pendingSettlement) {
	if _, ok := r.orphans[item.key]; !ok {
		r.orphanOrder.Enqueue(item.key)
	}
	r.orphans[item.key] = item
	for r.orphanOrder.Len() > maxOrphans {
		key := r.orphanOrder.Dequeue().(trackKey)
		delete(r.orphans, key)
		delete(r.baseFees, key)
	}
}

func (r *Reconciler) onTrack(order *TrackedOrder) {
	key := fastKey(order.Fast)
	r.tracked[key] = order
	if item, ok := r.orphans[key]; ok {
		delete(r.orphans, key)
		r.pending.Enqueue(item)
	}
}

func (r *Reconciler) requeue(item *pendingSettlement, reason string, err error) {
	item.attempts++
	r.logger.Infow("requeue settlement", "id", item.finalized.ID(), "reason", reason, "attempts", item.attempts, "err", err)
	time.AfterFunc(r.requeueDelay, func() {
		select {
		case r.requeueChan <- item:
		case <-r.ctx.Done():
		}
	})
}

func (r *Reconciler) forget(item *pendingSettlement) {
	delete(r.tracked, item.key)
	delete(r.baseFees, item.key)
	delete(r.txHashes, item.finalized.ID())
}

func (r *Reconciler) process(item *pendingSettlement) {
	order, ok := r.tracked[item.key]
	if !ok {
		return
	}
	id := item.finalized.ID()
	txHash, ok := r.txHashes[id]
	if !ok {
		hash, err := r.wormscan.TxHash(r.ctx, id)
		if err != nil {
			r.requeue(item, "tx hash", err)
			return
		}
		txHash = hash
		r.txHashes[id] = txHash
	}
	messages, err := r.circle.Messages(r.ctx, item.deposit.SourceCctpDomain, txHash)
	if err != nil {
		r.requeue(item, "cctp attestation", err)
		return
	}
	message := attestation.FindByNonce(messages, item.deposit.CctpNonce)
	if message == nil {
		r.logger.Errorw("no cctp message with deposit nonce", "id", id, "tx", txHash,
			"nonce", item.deposit.CctpNonce, "messages", len(messages))
		r.forget(item)
		return
	}
	r.forget(item)
	r.logger.Infow("settlement ready", "id", id, "order", order.Fast.ID(), "baseFee", item.baseFee)
	r.sink.OnSettlementReady(&SettlementReady{
		Fast:      order.Fast,
		Finalized: item.finalized,
		Deposit:   item.deposit,
		BaseFee:   item.baseFee,
		Message:   message,
	})
}
