package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/egaotan/fast-transfer-solver/backend"
	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/egaotan/fast-transfer-solver/store"
	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
)

const (
	OutcomeComplete = "complete"
	OutcomeNone     = "none"
	OutcomeAlready  = "already"
)

var errNotSettleable = errors.New("auction still active")

type settleJob struct {
	ready    *SettlementReady
	attempts int
}

type reclaim struct {
	payer *Payer
	at    time.Time
	busy  bool
}

// settleDue starts settlements while two transactions fit the throttle.
func (s *Solver) settleDue() {
	for s.settlements.Len() > 0 && s.custodian != nil && s.throttle.CanSend(2, s.pendingExecutions()) {
		payer := s.payers.UseNext()
		if payer == nil {
			return
		}
		job := s.settlements.Dequeue().(*settleJob)
		feeRecipient := s.custodian.FeeRecipientToken
		s.spawn(2, func() { s.settle(job, payer, feeRecipient) })
	}
	s.metrics.SettlementsQueued.Set(float64(s.settlements.Len()))
}

func (s *Solver) requeueSettlement(job *settleJob, err error) {
	job.attempts++
	hash := job.ready.Fast.Digest()
	if job.attempts >= MaxSettleAttempts {
		s.logger.Errorw("give up settlement", "order", orderID(hash), "attempts", job.attempts, "err", err)
		s.metrics.Settlements.WithLabelValues("abandoned").Inc()
		s.alert("give up settlement of %s after %d attempts: %v", orderID(hash), job.attempts, err)
		return
	}
	s.logger.Warnw("requeue settlement", "order", orderID(hash), "attempts", job.attempts, "err", err)
	time.AfterFunc(s.retry, func() {
		s.post(func() { s.settlements.Enqueue(job) })
	})
}

// settle prepares the order response, then settles the auction, or settles
// without one when nobody bid. Runs off the loop.
func (s *Solver) settle(job *settleJob, payer *Payer, feeRecipient solana.PublicKey) {
	ready := job.ready
	hash := ready.Fast.Digest()
	opts := backend.SubmitOpts{Retries: s.cfg.Retries, RetryDelay: s.cfg.RetryDelay}

	prepare := s.ixs.PrepareOrderResponse(payer.Key, payer.Token, ready.Finalized, ready.Fast,
		ready.Message.Message, ready.Message.Attestation)
	res := s.send(backend.OpPrepare, payer, hash, []solana.Instruction{prepare}, opts)
	if res.Err != nil && !errors.Is(res.Err, matchingengine.ErrOrderResponseAlreadyPrepared) {
		s.post(func() { s.requeueSettlement(job, res.Err) })
		return
	}

	outcome, ix, err := s.settleInstruction(ready, payer, feeRecipient)
	if err != nil {
		if errors.Is(err, errNotSettleable) {
			s.post(func() { s.requeueSettlement(job, err) })
			return
		}
		s.logger.Errorw("abandon settlement", "order", orderID(hash), "err", err)
		s.metrics.Settlements.WithLabelValues("abandoned").Inc()
		s.alert("abandon settlement of %s: %v", orderID(hash), err)
		return
	}
	var sig solana.Signature
	if ix != nil {
		res = s.send(backend.OpSettle, payer, hash, []solana.Instruction{ix}, opts)
		switch {
		case errors.Is(res.Err, matchingengine.ErrAuctionAlreadySettled):
			outcome = OutcomeAlready
		case res.Err != nil:
			s.post(func() { s.requeueSettlement(job, res.Err) })
			return
		default:
			sig = res.Signature
		}
	}
	s.logger.Infow("settled", "order", orderID(hash), "outcome", outcome, "baseFee", ready.BaseFee, "signature", sig)
	s.metrics.Settlements.WithLabelValues(outcome).Inc()
	if s.store != nil {
		record := &store.SettledOrder{
			OrderHash: orderID(hash),
			Outcome:   outcome,
			BaseFee:   ready.BaseFee,
			CctpNonce: ready.Deposit.CctpNonce,
			SettledAt: s.now(),
		}
		if !sig.IsZero() {
			record.Signature = sig.String()
		}
		s.store.StoreSettledOrder(record)
	}
}

// settleInstruction picks how to settle from the auction's current state. A
// nil instruction means there is nothing left to do.
func (s *Solver) settleInstruction(ready *SettlementReady, payer *Payer, feeRecipient solana.PublicKey) (string, solana.Instruction, error) {
	hash := ready.Fast.Digest()
	auction, err := s.fetchAuction(hash)
	if err != nil {
		return "", nil, fmt.Errorf("%w: fetch auction: %v", errNotSettleable, err)
	}
	if auction == nil {
		order, err := vaa.ParseFastMarketOrder(ready.Fast.Payload)
		if err != nil {
			return "", nil, err
		}
		endpoint, err := s.fetchEndpoint(order.TargetChain)
		if err != nil {
			return "", nil, err
		}
		ix := s.ixs.SettleAuctionNone(payer.Key, feeRecipient, ready.Fast, endpoint.Protocol, order.TargetChain)
		return OutcomeNone, ix, nil
	}
	switch auction.Status.Kind {
	case matchingengine.StatusSettled:
		return OutcomeAlready, nil, nil
	case matchingengine.StatusCompleted:
		prepared, err := s.fetchPrepared(hash)
		if err != nil {
			return "", nil, fmt.Errorf("%w: fetch prepared: %v", errNotSettleable, err)
		}
		if prepared == nil {
			return "", nil, fmt.Errorf("%w: prepared order response missing", errNotSettleable)
		}
		ix := s.ixs.SettleAuctionComplete(payer.Key, auction.Info.BestOfferToken, prepared.BaseFeeToken, hash)
		return OutcomeComplete, ix, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", errNotSettleable, auction.Status)
	}
}

func (s *Solver) fetchEndpoint(chain uint16) (*matchingengine.RouterEndpoint, error) {
	data, _, err := s.chain.GetAccountData(s.ctx, s.ixs.Addresses().RouterEndpoint(chain))
	if err != nil {
		return nil, fmt.Errorf("%w: fetch router endpoint: %v", errNotSettleable, err)
	}
	if data == nil {
		return nil, fmt.Errorf("no router endpoint for chain %d", chain)
	}
	return matchingengine.DecodeRouterEndpoint(data)
}

func (s *Solver) fetchPrepared(hash [32]byte) (*matchingengine.PreparedOrderResponse, error) {
	data, _, err := s.chain.GetAccountData(s.ctx, s.ixs.Addresses().PreparedOrderResponse(hash))
	if err != nil || data == nil {
		return nil, err
	}
	return matchingengine.DecodePreparedOrderResponse(data)
}

// scheduleReclaim closes a settled auction prepared by payer once its VAA
// has expired, returning the account rent.
func (s *Solver) scheduleReclaim(hash [32]byte, auction *matchingengine.Auction, payer *Payer) {
	if _, ok := s.reclaims[hash]; ok {
		return
	}
	at := time.Unix(int64(auction.VaaTimestamp)+matchingengine.VaaAuctionExpiration, 0)
	s.reclaims[hash] = &reclaim{payer: payer, at: at}
	s.logger.Infow("schedule reclaim", "order", orderID(hash), "payer", payer.Key, "at", at)
}

func (s *Solver) reclaimDue() {
	now := s.now()
	for hash, r := range s.reclaims {
		if r.busy || now.Before(r.at) {
			continue
		}
		if !s.throttle.CanSend(1, s.pendingExecutions()) {
			return
		}
		r.busy = true
		hash, r := hash, r
		ix := s.ixs.CloseAuction(r.payer.Key, hash)
		s.spawn(1, func() {
			res := s.send(backend.OpReclaim, r.payer, hash, []solana.Instruction{ix}, backend.SubmitOpts{})
			s.post(func() { s.onReclaimed(hash, r, res) })
		})
	}
}

func (s *Solver) onReclaimed(hash [32]byte, r *reclaim, res *backend.Result) {
	r.busy = false
	switch {
	case res.Err == nil:
		s.logger.Infow("auction reclaimed", "order", orderID(hash), "signature", res.Signature)
		delete(s.reclaims, hash)
	case errors.Is(res.Err, matchingengine.ErrCannotCloseAuctionYet):
		r.at = s.now().Add(s.cfg.ExecuteRetryDelay)
	case res.Rejected():
		s.logger.Infow("drop reclaim", "order", orderID(hash), "err", res.Err)
		delete(s.reclaims, hash)
	default:
		s.logger.Warnw("reclaim failed", "order", orderID(hash), "err", res.Err)
		r.at = s.now().Add(s.cfg.ExecuteRetryDelay)
	}
}
