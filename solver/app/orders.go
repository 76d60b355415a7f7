package app

import (
	"github.com/egaotan/fast-transfer-solver/backend"
	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
)

func (s *Solver) onFastVaa(v *vaa.VAA) {
	order, err := vaa.ParseFastMarketOrder(v.Payload)
	if err != nil {
		s.logger.Debugw("skip non fast order vaa", "id", v.ID(), "err", err)
		return
	}
	known, added := s.known.Add(v, order, s.slot, s.now())
	if !added {
		return
	}
	s.metrics.OrdersSeen.Inc()
	if _, ok := s.auctions[known.Hash]; ok {
		known.Auctioned = true
	}
	s.logger.Infow("fast order", "order", orderID(known.Hash), "id", v.ID(), "amountIn", order.AmountIn,
		"maxFee", order.MaxFee, "targetChain", order.TargetChain)
	if !s.cfg.PlaceInitialOffer || known.Auctioned {
		return
	}
	s.placeInitialOffer(known)
}

func (s *Solver) skip(known *KnownOrder, reason string, keysAndValues ...interface{}) {
	s.metrics.OrdersSkipped.WithLabelValues(reason).Inc()
	s.logger.Infow("skip order", append([]interface{}{"order", orderID(known.Hash), "reason", reason}, keysAndValues...)...)
}

func (s *Solver) deferOffer(known *KnownOrder, reason string) {
	if s.deferredSet[known.Hash] {
		return
	}
	s.deferredSet[known.Hash] = true
	s.deferred = append(s.deferred, known)
	s.logger.Infow("defer initial offer", "order", orderID(known.Hash), "reason", reason)
}

// executes reports whether the solver is allowed to execute orders headed to
// targetChain.
func (s *Solver) executes(targetChain uint16) bool {
	if targetChain == s.local {
		return s.cfg.ExecuteLocal
	}
	return s.cfg.ExecuteCctp
}

// placeInitialOffer offers the order's max fee when it clears fair value.
func (s *Solver) placeInitialOffer(known *KnownOrder) {
	order := known.Order
	if !s.executes(order.TargetChain) {
		s.skip(known, "target_disabled", "targetChain", order.TargetChain)
		return
	}
	p, ok := s.pricing.For(known.Vaa.EmitterChain)
	if !ok {
		s.skip(known, "no_pricing", "sourceChain", known.Vaa.EmitterChain)
		return
	}
	if place, fv := p.ShouldPlace(order.AmountIn, order.MaxFee); !place {
		s.skip(known, "below_fair_value", "fairValue", fv, "maxFee", order.MaxFee)
		return
	}
	if s.custodian == nil {
		s.deferOffer(known, "custodian_unknown")
		return
	}
	configID := s.custodian.AuctionConfigID
	params, ok := s.configs[configID]
	if !ok {
		s.fetchConfig(configID)
		s.deferOffer(known, "config_unknown")
		return
	}
	if !s.throttle.CanSend(1, s.pendingExecutions()) {
		s.deferOffer(known, "throttle")
		return
	}
	payer := s.payers.UseNext()
	if payer == nil {
		s.deferOffer(known, "no_payer")
		return
	}
	deposit, err := matchingengine.ComputeNotionalSecurityDeposit(params, order.AmountIn)
	if err != nil {
		s.skip(known, "deposit_overflow", "err", err)
		return
	}
	if total := order.AmountIn + order.MaxFee + deposit; payer.Tokens < total {
		s.skip(known, "insufficient_tokens", "payer", payer.Key, "tokens", payer.Tokens, "required", total)
		return
	}
	ix, err := s.ixs.PlaceInitialOffer(payer.Key, payer.Token, configID, known.Vaa, order.MaxFee)
	if err != nil {
		s.logger.Errorw("build initial offer", "order", orderID(known.Hash), "err", err)
		return
	}
	s.metrics.OffersSent.WithLabelValues(backend.OpPlace.String()).Inc()
	hash := known.Hash
	s.spawn(1, func() {
		res := s.send(backend.OpPlace, payer, hash, []solana.Instruction{ix}, backend.SubmitOpts{SkipPreflight: true})
		if res.Err == nil {
			s.logger.Infow("initial offer sent", "order", orderID(hash), "price", order.MaxFee, "signature", res.Signature)
			return
		}
		s.logger.Infow("initial offer failed", "order", orderID(hash), "err", res.Err)
		if res.Rejected() && isConfigMismatch(res.Err) {
			s.post(s.loadCustodian)
		}
	})
}

// retryDeferred gives deferred orders another try once nobody has started
// their auction meanwhile.
func (s *Solver) retryDeferred() {
	if len(s.deferred) == 0 || s.checkingDeferred || !s.throttle.CanSend(1, s.pendingExecutions()) {
		return
	}
	orders := s.deferred
	s.deferred = nil
	s.deferredSet = make(map[[32]byte]bool)
	s.checkingDeferred = true
	go func() {
		started := make(map[[32]byte]bool, len(orders))
		for _, known := range orders {
			data, _, err := s.chain.GetAccountData(s.ctx, s.ixs.Addresses().Auction(known.Hash))
			if err != nil {
				s.logger.Warnw("check deferred order", "order", orderID(known.Hash), "err", err)
				continue
			}
			started[known.Hash] = data != nil
		}
		s.post(func() {
			s.checkingDeferred = false
			for _, known := range orders {
				if s.known.Get(known.Hash) == nil || known.Auctioned {
					continue
				}
				isStarted, checked := started[known.Hash]
				switch {
				case !checked:
					s.deferOffer(known, "check_failed")
				case isStarted:
					s.logger.Infow("drop deferred order, auction already started", "order", orderID(known.Hash))
				default:
					s.placeInitialOffer(known)
				}
			}
		})
	}()
}

// trackUnauctioned hands orders nobody bid on to the reconciler, so that
// they get settled without an auction.
func (s *Solver) trackUnauctioned() {
	if s.custodian == nil {
		return
	}
	params, ok := s.configs[s.custodian.AuctionConfigID]
	if !ok {
		return
	}
	for _, known := range s.known.Unauctioned(s.slot, uint64(params.GracePeriod)) {
		known.Tracked = true
		s.logger.Infow("track unauctioned order", "order", orderID(known.Hash), "seenSlot", known.SeenSlot)
		order := &TrackedOrder{Fast: known.Vaa, Order: known.Order}
		go s.tracker.Track(order)
	}
}
