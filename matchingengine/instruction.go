package matchingengine

import (
	"fmt"

	"github.com/egaotan/fast-transfer-solver/program"
	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
)

var (
	ixPlaceInitialOffer      = program.InstructionDiscriminator("place_initial_offer_cctp")
	ixImproveOffer           = program.InstructionDiscriminator("improve_offer")
	ixExecuteFastOrderCctp   = program.InstructionDiscriminator("execute_fast_order_cctp")
	ixExecuteFastOrderLocal  = program.InstructionDiscriminator("execute_fast_order_local")
	ixPrepareOrderResponse   = program.InstructionDiscriminator("prepare_order_response_cctp")
	ixSettleAuctionComplete  = program.InstructionDiscriminator("settle_auction_complete")
	ixSettleAuctionNoneCctp  = program.InstructionDiscriminator("settle_auction_none_cctp")
	ixSettleAuctionNoneLocal = program.InstructionDiscriminator("settle_auction_none_local")
	ixCloseAuction           = program.InstructionDiscriminator("close_auction")
)

// Instructions builds matching engine instructions. VAAs travel as their
// body; guardian signatures are verified by the core bridge before the
// matching engine sees them.
type Instructions struct {
	addresses Addresses
}

func NewInstructions(programID solana.PublicKey) *Instructions {
	return &Instructions{addresses: NewAddresses(programID)}
}

func (ixs *Instructions) Addresses() Addresses {
	return ixs.addresses
}

func (ixs *Instructions) build(data []byte, accounts ...*solana.AccountMeta) solana.Instruction {
	return program.NewInstruction(ixs.addresses.ProgramID, data, accounts...)
}

// PlaceInitialOffer accounts: payer, offer token, custodian, auction config,
// auction, auction custody, source endpoint, target endpoint, token program.
func (ixs *Instructions) PlaceInitialOffer(payer, offerToken solana.PublicKey, configID uint32, fast *vaa.VAA, offerPrice uint64) (solana.Instruction, error) {
	order, err := vaa.ParseFastMarketOrder(fast.Payload)
	if err != nil {
		return nil, fmt.Errorf("place initial offer: %w", err)
	}
	w := newWriter(ixPlaceInitialOffer)
	w.u64(offerPrice)
	w.u32(configID)
	w.vec(fast.Body())
	auction := ixs.addresses.Auction(fast.Digest())
	return ixs.build(w.Bytes(),
		program.Signer(payer),
		program.Writable(offerToken),
		program.Readonly(ixs.addresses.Custodian()),
		program.Readonly(ixs.addresses.AuctionConfig(configID)),
		program.Writable(auction),
		program.Writable(ixs.addresses.AuctionCustodyToken(auction)),
		program.Readonly(ixs.addresses.RouterEndpoint(fast.EmitterChain)),
		program.Readonly(ixs.addresses.RouterEndpoint(order.TargetChain)),
		program.Readonly(program.Token),
	), nil
}

// ImproveOffer accounts: payer, offer token, auction, best offer token,
// auction config, token program.
func (ixs *Instructions) ImproveOffer(payer, offerToken, bestOfferToken solana.PublicKey, vaaHash [32]byte, configID uint32, offerPrice uint64) solana.Instruction {
	w := newWriter(ixImproveOffer)
	w.u64(offerPrice)
	w.raw(vaaHash[:])
	w.u32(configID)
	return ixs.build(w.Bytes(),
		program.Signer(payer),
		program.Writable(offerToken),
		program.Writable(ixs.addresses.Auction(vaaHash)),
		program.Writable(bestOfferToken),
		program.Readonly(ixs.addresses.AuctionConfig(configID)),
		program.Readonly(program.Token),
	)
}

// ExecuteFastOrder accounts: payer, executor token, auction, auction
// custody, best offer token, initial offer token, target endpoint, token
// program.
func (ixs *Instructions) ExecuteFastOrder(payer, executorToken solana.PublicKey, fast *vaa.VAA, info *AuctionInfo, protocol MessageProtocol, targetChain uint16) solana.Instruction {
	d := ixExecuteFastOrderCctp
	if protocol.Kind == ProtocolLocal {
		d = ixExecuteFastOrderLocal
	}
	w := newWriter(d)
	w.vec(fast.Body())
	auction := ixs.addresses.Auction(fast.Digest())
	return ixs.build(w.Bytes(),
		program.Signer(payer),
		program.Writable(executorToken),
		program.Writable(auction),
		program.Writable(ixs.addresses.AuctionCustodyToken(auction)),
		program.Writable(info.BestOfferToken),
		program.Writable(info.InitialOfferToken),
		program.Readonly(ixs.addresses.RouterEndpoint(targetChain)),
		program.Readonly(program.Token),
	)
}

// PrepareOrderResponse accounts: payer, base fee token, custodian, prepared
// order response, prepared custody, token program.
func (ixs *Instructions) PrepareOrderResponse(payer, baseFeeToken solana.PublicKey, finalized, fast *vaa.VAA, cctpMessage, attestation []byte) solana.Instruction {
	w := newWriter(ixPrepareOrderResponse)
	w.vec(finalized.Body())
	w.vec(fast.Body())
	w.vec(cctpMessage)
	w.vec(attestation)
	prepared := ixs.addresses.PreparedOrderResponse(fast.Digest())
	return ixs.build(w.Bytes(),
		program.Signer(payer),
		program.Readonly(baseFeeToken),
		program.Readonly(ixs.addresses.Custodian()),
		program.Writable(prepared),
		program.Writable(ixs.addresses.PreparedCustodyToken(prepared)),
		program.Readonly(program.Token),
	)
}

// SettleAuctionComplete accounts: payer, auction, prepared order response,
// prepared custody, best offer token, base fee token, token program.
func (ixs *Instructions) SettleAuctionComplete(payer, bestOfferToken, baseFeeToken solana.PublicKey, vaaHash [32]byte) solana.Instruction {
	w := newWriter(ixSettleAuctionComplete)
	w.raw(vaaHash[:])
	prepared := ixs.addresses.PreparedOrderResponse(vaaHash)
	return ixs.build(w.Bytes(),
		program.Signer(payer),
		program.Writable(ixs.addresses.Auction(vaaHash)),
		program.Writable(prepared),
		program.Writable(ixs.addresses.PreparedCustodyToken(prepared)),
		program.Writable(bestOfferToken),
		program.Writable(baseFeeToken),
		program.Readonly(program.Token),
	)
}

// SettleAuctionNone accounts: payer, custodian, fee recipient token,
// prepared order response, prepared custody, auction, target endpoint,
// token program.
func (ixs *Instructions) SettleAuctionNone(payer, feeRecipientToken solana.PublicKey, fast *vaa.VAA, protocol MessageProtocol, targetChain uint16) solana.Instruction {
	d := ixSettleAuctionNoneCctp
	if protocol.Kind == ProtocolLocal {
		d = ixSettleAuctionNoneLocal
	}
	w := newWriter(d)
	w.vec(fast.Body())
	hash := fast.Digest()
	prepared := ixs.addresses.PreparedOrderResponse(hash)
	return ixs.build(w.Bytes(),
		program.Signer(payer),
		program.Readonly(ixs.addresses.Custodian()),
		program.Writable(feeRecipientToken),
		program.Writable(prepared),
		program.Writable(ixs.addresses.PreparedCustodyToken(prepared)),
		program.Writable(ixs.addresses.Auction(hash)),
		program.Readonly(ixs.addresses.RouterEndpoint(targetChain)),
		program.Readonly(program.Token),
	)
}

// CloseAuction accounts: payer, auction.
func (ixs *Instructions) CloseAuction(payer solana.PublicKey, vaaHash [32]byte) solana.Instruction {
	w := newWriter(ixCloseAuction)
	w.raw(vaaHash[:])
	return ixs.build(w.Bytes(),
		program.Signer(payer),
		program.Writable(ixs.addresses.Auction(vaaHash)),
	)
}
