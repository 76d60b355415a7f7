package matchingengine

import (
	"fmt"

	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
)

// PrepareOrderResponse records the finalized (slow) order for a fast order
// and mints its CCTP deposit into the prepared custody account. The CCTP
// message must be the burn the deposit refers to.
func (l *Ledger) PrepareOrderResponse(env Env, finalized, fast *vaa.VAA, cctpMessage []byte, baseFeeToken solana.PublicKey) (*PreparedOrderResponse, error) {
	if l.custodian.Paused {
		return nil, ErrPaused
	}
	order, err := l.parseOrder(fast)
	if err != nil {
		return nil, err
	}
	deposit, slow, err := vaa.ParseSlowOrder(finalized.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSlowOrderResponse, err)
	}
	if finalized.EmitterChain != fast.EmitterChain ||
		finalized.EmitterAddress != fast.EmitterAddress ||
		finalized.Sequence+1 != fast.Sequence {
		return nil, fmt.Errorf("%w: finalized %s, fast %s", ErrVaaMismatch, finalized.ID(), fast.ID())
	}
	if _, err := l.sourceEndpoint(fast); err != nil {
		return nil, err
	}
	msg, err := ParseCctpMessage(cctpMessage)
	if err != nil {
		return nil, err
	}
	if msg.SourceDomain != deposit.SourceCctpDomain || msg.Nonce != deposit.CctpNonce {
		return nil, fmt.Errorf("%w: message %d/%d, deposit %d/%d", ErrCctpNonceMismatch,
			msg.SourceDomain, msg.Nonce, deposit.SourceCctpDomain, deposit.CctpNonce)
	}
	hash := fast.Digest()
	if _, ok := l.prepared[hash]; ok {
		return nil, ErrOrderResponseAlreadyPrepared
	}

	prepared := &PreparedOrderResponse{
		FastVaaHash:     hash,
		PreparedBy:      env.Signer,
		BaseFeeToken:    baseFeeToken,
		SourceChain:     fast.EmitterChain,
		BaseFee:         slow.BaseFee,
		AmountIn:        deposit.Amount,
		InitAuctionFee:  order.InitAuctionFee,
		Sender:          order.Sender,
		Redeemer:        order.Redeemer,
		TargetChain:     order.TargetChain,
		RedeemerMessage: append([]byte(nil), order.RedeemerMessage...),
	}
	preparedKey := l.addresses.PreparedOrderResponse(hash)
	l.bank.Mint(l.addresses.PreparedCustodyToken(preparedKey), deposit.Amount)
	l.bank.Charge(env.Signer, PreparedRent)
	l.putPrepared(prepared)
	clone, _ := l.PreparedOrderResponse(hash)
	return clone, nil
}

func (l *Ledger) closePrepared(p *PreparedOrderResponse) {
	delete(l.prepared, p.FastVaaHash)
	delete(l.index, l.addresses.PreparedOrderResponse(p.FastVaaHash))
	l.bank.Airdrop(p.PreparedBy, PreparedRent)
}

// SettleAuctionComplete repays the best offer for a completed auction out of
// the prepared custody, less the base fee owed to whoever prepared.
func (l *Ledger) SettleAuctionComplete(env Env, vaaHash [32]byte) (*Auction, error) {
	auction, ok := l.auctions[vaaHash]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	switch auction.Status.Kind {
	case StatusCompleted:
	case StatusSettled:
		return nil, ErrAuctionAlreadySettled
	default:
		return nil, fmt.Errorf("%w: %s", ErrAuctionNotCompleted, auction.Status)
	}
	prepared, ok := l.prepared[vaaHash]
	if !ok {
		return nil, ErrOrderResponseNotPrepared
	}
	custody := l.addresses.PreparedCustodyToken(l.addresses.PreparedOrderResponse(vaaHash))
	fee := prepared.BaseFee
	if fee > prepared.AmountIn {
		fee = prepared.AmountIn
	}
	err := l.bank.transfers(
		leg{from: custody, to: prepared.BaseFeeToken, amount: fee},
		leg{from: custody, to: auction.Info.BestOfferToken, amount: prepared.AmountIn - fee},
	)
	if err != nil {
		return nil, err
	}
	auction.Status = Settled(fee, cloneStatus(auction.Status).ExecutePenalty)
	l.closePrepared(prepared)
	return auction.clone(), nil
}

// SettleAuctionNone settles a fast order nobody bid on. The prepared funds
// go to the recipient less the base and init auction fees, which the fee
// recipient collects.
func (l *Ledger) SettleAuctionNone(env Env, fast *vaa.VAA) (*Auction, *Receipt, error) {
	hash := fast.Digest()
	if existing, ok := l.auctions[hash]; ok {
		if existing.Status.Kind == StatusSettled {
			return nil, nil, ErrAuctionAlreadySettled
		}
		return nil, nil, ErrAuctionAlreadyExists
	}
	prepared, ok := l.prepared[hash]
	if !ok {
		return nil, nil, ErrOrderResponseNotPrepared
	}
	to, err := l.targetEndpoint(prepared.TargetChain)
	if err != nil {
		return nil, nil, err
	}
	fee := prepared.BaseFee + prepared.InitAuctionFee
	if fee < prepared.BaseFee || fee > prepared.AmountIn {
		fee = prepared.AmountIn
	}
	custody := l.addresses.PreparedCustodyToken(l.addresses.PreparedOrderResponse(hash))
	receipt, err := l.routers.Deliver(l.bank, &Delivery{
		Custody:     custody,
		Amount:      prepared.AmountIn - fee,
		TargetChain: prepared.TargetChain,
		Endpoint:    to,
		Fill: vaa.Fill{
			SourceChain:     prepared.SourceChain,
			OrderSender:     prepared.Sender,
			Redeemer:        prepared.Redeemer,
			RedeemerMessage: prepared.RedeemerMessage,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	if err := l.bank.Transfer(custody, l.custodian.FeeRecipientToken, fee); err != nil {
		return nil, nil, err
	}
	auction := &Auction{
		VaaHash:        hash,
		VaaTimestamp:   fast.Timestamp,
		TargetProtocol: to.Protocol,
		Status:         Settled(fee, nil),
		PreparedBy:     env.Signer,
	}
	l.putAuction(auction)
	l.bank.Charge(env.Signer, AuctionRent)
	l.closePrepared(prepared)
	return auction.clone(), receipt, nil
}

// CloseAuction reclaims a settled auction account once its fast order can
// no longer start a new auction. Only the payer recorded on it may close it.
func (l *Ledger) CloseAuction(env Env, vaaHash [32]byte) error {
	auction, ok := l.auctions[vaaHash]
	if !ok {
		return ErrAuctionNotFound
	}
	if auction.Status.Kind != StatusSettled {
		return fmt.Errorf("%w: %s", ErrAuctionNotSettled, auction.Status)
	}
	if env.UnixTimestamp < int64(auction.VaaTimestamp)+VaaAuctionExpiration {
		return ErrCannotCloseAuctionYet
	}
	if env.Signer != auction.PreparedBy {
		return ErrExecutorNotPreparedBy
	}
	delete(l.auctions, vaaHash)
	delete(l.index, l.addresses.Auction(vaaHash))
	l.bank.Airdrop(env.Signer, AuctionRent)
	return nil
}
