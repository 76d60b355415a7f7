package app

import (
	"time"

	"github.com/egaotan/fast-transfer-solver/backend"
	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/egaotan/fast-transfer-solver/store"
	"github.com/gagliardetto/solana-go"
)

// executeDue sends at most one execution per protocol queue.
func (s *Solver) executeDue() {
	for _, q := range []*ExecutionQueue{s.cctpQueue, s.localQueue} {
		if q.Len() == 0 || !s.throttle.CanSend(1, 0) {
			continue
		}
		e := q.Pop()
		if !s.execute(e) {
			q.Push(e)
		}
	}
}

// execute reports false when e has to wait for a payer.
func (s *Solver) execute(e *Execution) bool {
	known := s.known.Get(e.Hash)
	if known == nil {
		s.logger.Warnw("drop execution of unknown order", "order", orderID(e.Hash))
		return true
	}
	kind := backend.OpExecuteCctp
	enabled := s.cfg.ExecuteCctp
	if e.Auction.TargetProtocol.Kind == matchingengine.ProtocolLocal {
		kind = backend.OpExecuteLocal
		enabled = s.cfg.ExecuteLocal
	}
	if !enabled {
		s.logger.Warnw("drop execution, protocol disabled", "order", orderID(e.Hash), "protocol", e.Auction.TargetProtocol)
		return true
	}
	payer := s.payers.UseNext()
	if payer == nil {
		return false
	}
	ix := s.ixs.ExecuteFastOrder(payer.Key, payer.Token, known.Vaa, e.Auction.Info, e.Auction.TargetProtocol, known.Order.TargetChain)
	opts := backend.SubmitOpts{Retries: s.cfg.Retries, RetryDelay: s.cfg.RetryDelay}
	s.logger.Infow("execute", "order", orderID(e.Hash), "kind", kind.String(), "payer", payer.Key,
		"slot", s.slot, "endSlot", e.EndSlot, "attempt", e.Attempts+1)
	s.spawn(1, func() {
		res := s.send(kind, payer, e.Hash, []solana.Instruction{ix}, opts)
		if res.Err == nil {
			s.post(func() { s.onExecuted(e, known, res.Signature) })
			return
		}
		auction, err := s.fetchAuction(e.Hash)
		s.post(func() { s.onExecuteFailed(e, known, res, auction, err) })
	})
	return true
}

func (s *Solver) onExecuted(e *Execution, known *KnownOrder, sig solana.Signature) {
	s.logger.Infow("executed", "order", orderID(e.Hash), "signature", sig, "price", e.Auction.Info.OfferPrice)
	if s.store != nil {
		s.store.StoreExecutedOrder(&store.ExecutedOrder{
			OrderHash:   orderID(e.Hash),
			SourceChain: known.Vaa.EmitterChain,
			TargetChain: known.Order.TargetChain,
			Sequence:    known.Vaa.Sequence,
			AmountIn:    known.Order.AmountIn,
			OfferPrice:  e.Auction.Info.OfferPrice,
			Slot:        s.slot,
			Signature:   sig.String(),
			ExecutedAt:  s.now(),
		})
	}
	known.Tracked = true
	order := &TrackedOrder{Fast: known.Vaa, Order: known.Order}
	go s.tracker.Track(order)
}

// onExecuteFailed decides from the ledger whether a failed execution is
// worth another try.
func (s *Solver) onExecuteFailed(e *Execution, known *KnownOrder, res *backend.Result, auction *matchingengine.Auction, err error) {
	switch {
	case err != nil:
		s.logger.Warnw("recheck auction after failed execute", "order", orderID(e.Hash), "err", err)
	case auction == nil:
		s.logger.Warnw("drop execution, auction gone", "order", orderID(e.Hash), "err", res.Err)
		return
	case auction.Status.Kind == matchingengine.StatusCompleted:
		s.logger.Infow("auction already executed", "order", orderID(e.Hash))
		s.onExecuted(e, known, res.Signature)
		return
	case auction.Status.Kind != matchingengine.StatusActive || auction.Info == nil || !s.recognized[auction.Info.BestOfferToken]:
		s.logger.Infow("drop execution", "order", orderID(e.Hash), "status", auction.Status, "err", res.Err)
		return
	default:
		e.Auction = auction
	}
	e.Attempts++
	if e.Attempts >= s.cfg.MaxExecutionAttempts {
		s.logger.Errorw("give up execution", "order", orderID(e.Hash), "attempts", e.Attempts, "err", res.Err)
		s.alert("give up execution of %s after %d attempts: %v", orderID(e.Hash), e.Attempts, res.Err)
		return
	}
	s.logger.Warnw("requeue execution", "order", orderID(e.Hash), "attempts", e.Attempts, "err", res.Err)
	q := s.cctpQueue
	if e.Auction.TargetProtocol.Kind == matchingengine.ProtocolLocal {
		q = s.localQueue
	}
	time.AfterFunc(s.cfg.ExecuteRetryDelay, func() {
		s.post(func() { q.Push(e) })
	})
}
