package matchingengine

import (
	"fmt"
	"math/bits"

	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
)

func orderExpired(env Env, vaaTimestamp uint32, deadline uint32) bool {
	if deadline != 0 && env.UnixTimestamp > int64(deadline) {
		return true
	}
	return env.UnixTimestamp >= int64(vaaTimestamp)+VaaAuctionExpiration
}

func (l *Ledger) parseOrder(fast *vaa.VAA) (*vaa.FastMarketOrder, error) {
	order, err := vaa.ParseFastMarketOrder(fast.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFastMarketOrder, err)
	}
	return order, nil
}

func (l *Ledger) sourceEndpoint(fast *vaa.VAA) (*RouterEndpoint, error) {
	from, ok := l.endpoints[fast.EmitterChain]
	if !ok || !from.Enabled() || from.Address != fast.EmitterAddress {
		return nil, fmt.Errorf("%w: chain %d", ErrInvalidSourceRouter, fast.EmitterChain)
	}
	return from, nil
}

func (l *Ledger) targetEndpoint(chain uint16) (*RouterEndpoint, error) {
	to, ok := l.endpoints[chain]
	if !ok {
		return nil, fmt.Errorf("%w: chain %d", ErrInvalidTargetRouter, chain)
	}
	if !to.Enabled() {
		return nil, fmt.Errorf("%w: chain %d", ErrEndpointDisabled, chain)
	}
	return to, nil
}

// PlaceInitialOffer starts the auction for a fast order. The offer token
// locks amountIn, the order's max fee and the security deposit into the
// auction's custody account.
func (l *Ledger) PlaceInitialOffer(env Env, fast *vaa.VAA, configID uint32, offerPrice uint64, offerToken solana.PublicKey) (*Auction, error) {
	if l.custodian.Paused {
		return nil, ErrPaused
	}
	order, err := l.parseOrder(fast)
	if err != nil {
		return nil, err
	}
	if _, err := l.sourceEndpoint(fast); err != nil {
		return nil, err
	}
	to, err := l.targetEndpoint(order.TargetChain)
	if err != nil {
		return nil, err
	}
	if orderExpired(env, fast.Timestamp, order.Deadline) {
		return nil, ErrFastMarketOrderExpired
	}
	if offerPrice > order.MaxFee {
		return nil, fmt.Errorf("%w: %d > max fee %d", ErrOfferPriceTooHigh, offerPrice, order.MaxFee)
	}
	if fees, carry := bits.Add64(order.MaxFee, order.InitAuctionFee, 0); carry != 0 || fees > order.AmountIn {
		return nil, fmt.Errorf("%w: fees exceed amount in %d", ErrOfferPriceTooHigh, order.AmountIn)
	}
	hash := fast.Digest()
	if _, ok := l.auctions[hash]; ok {
		return nil, ErrAuctionAlreadyExists
	}
	config, err := l.currentConfig()
	if err != nil {
		return nil, err
	}
	if config.ID != configID {
		return nil, fmt.Errorf("%w: current %d, got %d", ErrAuctionConfigMismatch, config.ID, configID)
	}
	deposit, err := ComputeNotionalSecurityDeposit(&config.Parameters, order.AmountIn)
	if err != nil {
		return nil, err
	}
	info := &AuctionInfo{
		ConfigID:           config.ID,
		VaaSequence:        fast.Sequence,
		SourceChain:        fast.EmitterChain,
		BestOfferToken:     offerToken,
		InitialOfferToken:  offerToken,
		StartSlot:          env.Slot,
		AmountIn:           order.AmountIn,
		SecurityDeposit:    deposit,
		OfferPrice:         offerPrice,
		MaxFee:             order.MaxFee,
		InitAuctionFee:     order.InitAuctionFee,
		RedeemerMessageLen: uint32(len(order.RedeemerMessage)),
	}
	total, carry := bits.Add64(order.AmountIn+order.MaxFee, deposit, 0)
	if carry != 0 {
		return nil, fmt.Errorf("%w: total deposit", ErrU64Overflow)
	}
	auctionKey := l.addresses.Auction(hash)
	if err := l.bank.Transfer(offerToken, l.addresses.AuctionCustodyToken(auctionKey), total); err != nil {
		return nil, err
	}
	l.bank.Charge(env.Signer, AuctionRent)
	auction := &Auction{
		VaaHash:        hash,
		VaaTimestamp:   fast.Timestamp,
		TargetProtocol: to.Protocol,
		Status:         Active(),
		PreparedBy:     env.Signer,
		Info:           info,
	}
	l.putAuction(auction)
	return auction.clone(), nil
}

// ImproveOffer replaces the best offer. The new offer token pays the
// superseded one back its total deposit directly, so custody is unchanged.
func (l *Ledger) ImproveOffer(env Env, vaaHash [32]byte, configID uint32, offerPrice uint64, offerToken solana.PublicKey) (*Auction, error) {
	if l.custodian.Paused {
		return nil, ErrPaused
	}
	auction, ok := l.auctions[vaaHash]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	if auction.Status.Kind != StatusActive || auction.Info == nil {
		return nil, fmt.Errorf("%w: %s", ErrAuctionNotActive, auction.Status)
	}
	info := auction.Info
	if info.ConfigID != configID {
		return nil, fmt.Errorf("%w: auction %d, got %d", ErrAuctionConfigMismatch, info.ConfigID, configID)
	}
	config, ok := l.configs[info.ConfigID]
	if !ok {
		return nil, fmt.Errorf("%w: config %d missing", ErrAuctionConfigMismatch, info.ConfigID)
	}
	if env.Slot >= info.EndSlot(&config.Parameters) {
		return nil, fmt.Errorf("%w: slot %d, end %d", ErrAuctionPeriodExpired, env.Slot, info.EndSlot(&config.Parameters))
	}
	if max := MaxImprovedOffer(&config.Parameters, info.OfferPrice); offerPrice > max {
		return nil, fmt.Errorf("%w: %d > %d", ErrCarpingNotAllowed, offerPrice, max)
	}
	if offerToken != info.BestOfferToken {
		if err := l.bank.Transfer(offerToken, info.BestOfferToken, info.TotalDeposit()); err != nil {
			return nil, err
		}
		info.BestOfferToken = offerToken
	}
	info.OfferPrice = offerPrice
	return auction.clone(), nil
}

// ExecuteFastOrder completes an auction whose offer period has ended,
// delivering the order through the destination's protocol.
func (l *Ledger) ExecuteFastOrder(env Env, fast *vaa.VAA, executorToken solana.PublicKey) (*Auction, *Receipt, error) {
	if l.custodian.Paused {
		return nil, nil, ErrPaused
	}
	hash := fast.Digest()
	auction, ok := l.auctions[hash]
	if !ok {
		return nil, nil, ErrAuctionNotFound
	}
	if auction.Status.Kind != StatusActive || auction.Info == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrAuctionNotActive, auction.Status)
	}
	info := auction.Info
	config, ok := l.configs[info.ConfigID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: config %d missing", ErrAuctionConfigMismatch, info.ConfigID)
	}
	params := &config.Parameters
	if env.Slot < info.EndSlot(params) {
		return nil, nil, fmt.Errorf("%w: slot %d, end %d", ErrAuctionPeriodNotExpired, env.Slot, info.EndSlot(params))
	}
	order, err := l.parseOrder(fast)
	if err != nil {
		return nil, nil, err
	}
	to, err := l.targetEndpoint(order.TargetChain)
	if err != nil {
		return nil, nil, err
	}

	penalty, userReward := ComputeDepositPenalty(params, info, env.Slot)
	custody := l.addresses.AuctionCustodyToken(l.addresses.Auction(hash))
	userAmount := info.AmountIn - info.OfferPrice - info.InitAuctionFee + userReward

	receipt, err := l.routers.Deliver(l.bank, &Delivery{
		Custody:     custody,
		Amount:      userAmount,
		TargetChain: order.TargetChain,
		Endpoint:    to,
		Fill: vaa.Fill{
			SourceChain:     info.SourceChain,
			OrderSender:     order.Sender,
			Redeemer:        order.Redeemer,
			RedeemerMessage: order.RedeemerMessage,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	// custody now holds exactly offerPrice + maxFee + deposit + initAuctionFee - userReward
	legs := []leg{
		{from: custody, to: info.BestOfferToken, amount: info.OfferPrice + info.MaxFee + info.SecurityDeposit - penalty},
		{from: custody, to: executorToken, amount: penalty - userReward},
		{from: custody, to: info.InitialOfferToken, amount: info.InitAuctionFee},
	}
	if err := l.bank.transfers(legs...); err != nil {
		return nil, nil, err
	}

	var executePenalty *uint64
	if penalty > 0 {
		executePenalty = &penalty
	}
	auction.Status = Completed(env.Slot, executePenalty)
	return auction.clone(), receipt, nil
}
