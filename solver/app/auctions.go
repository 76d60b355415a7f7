package app

import (
	"bytes"
	"errors"
	"time"

	"github.com/egaotan/fast-transfer-solver/backend"
	"github.com/egaotan/fast-transfer-solver/feed"
	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/gagliardetto/solana-go"
)

func isConfigMismatch(err error) bool {
	return errors.Is(err, matchingengine.ErrAuctionConfigMismatch)
}

func (s *Solver) onAuctionUpdate(u *feed.AccountUpdate) {
	if len(u.Data) == 0 {
		if hash, ok := s.auctionKeys[u.Address]; ok {
			s.logger.Infow("auction closed", "order", orderID(hash), "address", u.Address)
			s.forgetAuction(hash)
		}
		return
	}
	auction, err := matchingengine.DecodeAuction(u.Data)
	if errors.Is(err, matchingengine.ErrAccountDiscriminatorMismatch) {
		return
	}
	if err != nil {
		s.logger.Errorw("decode auction", "address", u.Address, "slot", u.Slot, "err", err)
		return
	}
	hash := auction.VaaHash
	if bytes.Equal(s.auctionData[hash], u.Data) {
		return
	}
	if auction.Status.Kind == matchingengine.StatusActive && auction.Info != nil {
		if _, ok := s.configs[auction.Info.ConfigID]; !ok {
			id := auction.Info.ConfigID
			s.waitingConfig[id] = append(s.waitingConfig[id], u)
			s.fetchConfig(id)
			return
		}
	}
	s.auctionData[hash] = u.Data
	s.auctionKeys[u.Address] = hash
	s.auctions[hash] = auction
	if known := s.known.Get(hash); known != nil {
		known.Auctioned = true
	}

	switch auction.Status.Kind {
	case matchingengine.StatusActive:
		s.onActiveAuction(hash, auction)
	case matchingengine.StatusCompleted:
		s.candidates.Remove(hash)
		s.generations.Forget(hash)
	case matchingengine.StatusSettled:
		payer := s.payers.Get(auction.PreparedBy)
		if payer == nil {
			s.forgetAuction(hash)
			return
		}
		// the snapshot is kept until the account closes so repeats of it
		// are ignored while the reclaim is in flight
		s.retireAuction(hash)
		s.scheduleReclaim(hash, auction, payer)
	}
}

// retireAuction drops the bidding state of hash.
func (s *Solver) retireAuction(hash [32]byte) {
	s.candidates.Remove(hash)
	s.generations.Forget(hash)
	s.known.Remove(hash)
	delete(s.auctions, hash)
}

// forgetAuction drops every mirror of hash.
func (s *Solver) forgetAuction(hash [32]byte) {
	s.retireAuction(hash)
	delete(s.auctionData, hash)
	delete(s.reclaims, hash)
	for key, h := range s.auctionKeys {
		if h == hash {
			delete(s.auctionKeys, key)
		}
	}
}

func (s *Solver) onActiveAuction(hash [32]byte, auction *matchingengine.Auction) {
	info := auction.Info
	if info == nil {
		return
	}
	params := s.configs[info.ConfigID]
	endSlot := info.EndSlot(params)
	// any send scheduled before this observation is now stale
	gen := s.generations.Bump(hash)

	if s.recognized[info.BestOfferToken] {
		s.candidates.Add(hash, endSlot, auction)
		s.logger.Infow("holding best offer", "order", orderID(hash), "price", info.OfferPrice, "endSlot", endSlot)
		return
	}
	if s.candidates.Has(hash) {
		s.logger.Infow("outbid", "order", orderID(hash), "price", info.OfferPrice, "by", info.BestOfferToken)
	}
	s.candidates.Update(hash, false)

	if !s.cfg.ImproveOffer || s.slot >= endSlot {
		return
	}
	if auction.TargetProtocol.Kind == matchingengine.ProtocolLocal && !s.cfg.ExecuteLocal ||
		auction.TargetProtocol.Kind == matchingengine.ProtocolCctp && !s.cfg.ExecuteCctp {
		return
	}
	p, ok := s.pricing.For(info.SourceChain)
	if !ok {
		return
	}
	if !p.ShouldImprove(info.AmountIn, info.OfferPrice, params) {
		s.logger.Infow("not improving", "order", orderID(hash), "price", info.OfferPrice,
			"fairValue", p.FairValueWithEdge(info.AmountIn))
		return
	}
	fire := &offerFire{hash: hash, gen: gen, price: p.ImprovedOfferPrice(info.AmountIn, info.OfferPrice, params)}
	delay := SendDelay(endSlot-s.slot, s.now().Sub(s.slotAt), s.cfg.SlotDuration, s.cfg.SendBuffer)
	s.logger.Infow("schedule improve", "order", orderID(hash), "price", fire.price, "delay", delay, "gen", gen)
	if delay == 0 {
		s.onOfferFire(fire)
		return
	}
	time.AfterFunc(delay, func() {
		select {
		case s.fireChan <- fire:
		case <-s.ctx.Done():
		}
	})
}

// onOfferFire sends a scheduled improvement unless the auction was observed
// again since it was scheduled.
func (s *Solver) onOfferFire(fire *offerFire) {
	if !s.generations.IsCurrent(fire.hash, fire.gen) {
		s.logger.Infow("stale send skipped", "order", orderID(fire.hash), "gen", fire.gen)
		return
	}
	auction, ok := s.auctions[fire.hash]
	if !ok || auction.Info == nil || auction.Status.Kind != matchingengine.StatusActive {
		return
	}
	info := auction.Info
	if s.recognized[info.BestOfferToken] {
		return
	}
	if params, ok := s.configs[info.ConfigID]; ok && s.slot >= info.EndSlot(params) {
		s.logger.Infow("auction over before improve", "order", orderID(fire.hash), "slot", s.slot)
		return
	}
	if !s.throttle.CanSend(1, s.pendingExecutions()) {
		s.logger.Infow("improve throttled", "order", orderID(fire.hash))
		return
	}
	payer := s.payers.UseNext()
	if payer == nil {
		s.logger.Infow("improve without payer", "order", orderID(fire.hash))
		return
	}
	if payer.Tokens < info.TotalDeposit() {
		s.logger.Infow("improve needs more tokens", "order", orderID(fire.hash), "payer", payer.Key,
			"tokens", payer.Tokens, "required", info.TotalDeposit())
		return
	}
	ix := s.ixs.ImproveOffer(payer.Key, payer.Token, info.BestOfferToken, fire.hash, info.ConfigID, fire.price)
	s.metrics.OffersSent.WithLabelValues(backend.OpImprove.String()).Inc()
	hash, price := fire.hash, fire.price
	s.spawn(1, func() {
		res := s.send(backend.OpImprove, payer, hash, []solana.Instruction{ix}, backend.SubmitOpts{SkipPreflight: true})
		if res.Err != nil {
			s.logger.Infow("improve failed", "order", orderID(hash), "err", res.Err)
			return
		}
		s.logger.Infow("improve sent", "order", orderID(hash), "price", price, "signature", res.Signature)
	})
}

func (s *Solver) loadCustodian() {
	s.loading = true
	go func() {
		custodian, params, err := s.fetchCustodian()
		s.post(func() {
			s.loading = false
			if err != nil {
				s.logger.Warnw("load custodian", "err", err)
				return
			}
			if s.custodian == nil || s.custodian.AuctionConfigID != custodian.AuctionConfigID {
				s.logger.Infow("auction config", "id", custodian.AuctionConfigID, "duration", params.Duration,
					"gracePeriod", params.GracePeriod)
			}
			s.custodian = custodian
			s.configs[custodian.AuctionConfigID] = params
		})
	}()
}

func (s *Solver) fetchCustodian() (*matchingengine.Custodian, *matchingengine.AuctionParameters, error) {
	data, _, err := s.chain.GetAccountData(s.ctx, s.ixs.Addresses().Custodian())
	if err != nil {
		return nil, nil, err
	}
	if data == nil {
		return nil, nil, errors.New("custodian not found")
	}
	custodian, err := matchingengine.DecodeCustodian(data)
	if err != nil {
		return nil, nil, err
	}
	params, err := s.fetchParams(custodian.AuctionConfigID)
	if err != nil {
		return nil, nil, err
	}
	return custodian, params, nil
}

func (s *Solver) fetchParams(id uint32) (*matchingengine.AuctionParameters, error) {
	data, _, err := s.chain.GetAccountData(s.ctx, s.ixs.Addresses().AuctionConfig(id))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("auction config not found")
	}
	config, err := matchingengine.DecodeAuctionConfig(data)
	if err != nil {
		return nil, err
	}
	return &config.Parameters, nil
}

// fetchConfig loads config id once and replays the auction updates that
// waited for it.
func (s *Solver) fetchConfig(id uint32) {
	if s.fetching[id] {
		return
	}
	s.fetching[id] = true
	go func() {
		params, err := s.fetchParams(id)
		s.post(func() {
			delete(s.fetching, id)
			if err != nil {
				s.logger.Warnw("fetch auction config", "id", id, "err", err)
				return
			}
			s.configs[id] = params
			parked := s.waitingConfig[id]
			delete(s.waitingConfig, id)
			for _, u := range parked {
				s.onAuctionUpdate(u)
			}
		})
	}()
}
