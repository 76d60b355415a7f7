package matchingengine

import (
	"fmt"

	"github.com/egaotan/fast-transfer-solver/program"
	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
)

// Outcome is what one processed instruction did to the ledger.
type Outcome struct {
	Name     string
	Auction  *Auction
	Prepared *PreparedOrderResponse
	Receipt  *Receipt
	// Touched lists the ledger accounts created, changed or closed.
	Touched []solana.PublicKey
}

type handler struct {
	name    string
	minKeys int
	process func(p *Processor, env Env, keys []solana.PublicKey, r *reader) (*Outcome, error)
}

var handlers = map[program.Discriminator]handler{
	ixPlaceInitialOffer:      {"place_initial_offer_cctp", 2, (*Processor).placeInitialOffer},
	ixImproveOffer:           {"improve_offer", 2, (*Processor).improveOffer},
	ixExecuteFastOrderCctp:   {"execute_fast_order_cctp", 2, (*Processor).executeFastOrder},
	ixExecuteFastOrderLocal:  {"execute_fast_order_local", 2, (*Processor).executeFastOrder},
	ixPrepareOrderResponse:   {"prepare_order_response_cctp", 2, (*Processor).prepareOrderResponse},
	ixSettleAuctionComplete:  {"settle_auction_complete", 1, (*Processor).settleAuctionComplete},
	ixSettleAuctionNoneCctp:  {"settle_auction_none_cctp", 1, (*Processor).settleAuctionNone},
	ixSettleAuctionNoneLocal: {"settle_auction_none_local", 1, (*Processor).settleAuctionNone},
	ixCloseAuction:           {"close_auction", 1, (*Processor).closeAuction},
}

// Processor applies instructions built by Instructions to a Ledger.
type Processor struct {
	ledger *Ledger
}

func NewProcessor(ledger *Ledger) *Processor {
	return &Processor{ledger: ledger}
}

// Process runs one instruction. keys are the instruction's accounts in
// order; env.Signer is the transaction's fee payer.
func (p *Processor) Process(env Env, keys []solana.PublicKey, data []byte) (*Outcome, error) {
	if len(data) < len(program.Discriminator{}) {
		return nil, ErrInstructionNotRecognized
	}
	var d program.Discriminator
	copy(d[:], data)
	h, ok := handlers[d]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrInstructionNotRecognized, d)
	}
	if len(keys) < h.minKeys {
		return nil, fmt.Errorf("%w: %s needs %d accounts, got %d", ErrInstructionNotRecognized, h.name, h.minKeys, len(keys))
	}
	r, err := newReader(data, d, h.name)
	if err != nil {
		return nil, err
	}
	outcome, err := h.process(p, env, keys, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.name, err)
	}
	outcome.Name = h.name
	return outcome, nil
}

func (r *reader) hash() [32]byte {
	var h [32]byte
	copy(h[:], r.bytes(32))
	return h
}

func (r *reader) vaaBody(name string) (*vaa.VAA, error) {
	body := r.vec()
	if err := r.done(name); err != nil {
		return nil, err
	}
	v, err := vaa.ParseBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountDidNotDeserialize, err)
	}
	return v, nil
}

func (p *Processor) placeInitialOffer(env Env, keys []solana.PublicKey, r *reader) (*Outcome, error) {
	offerPrice := r.u64()
	configID := r.u32()
	fast, err := r.vaaBody("place_initial_offer_cctp")
	if err != nil {
		return nil, err
	}
	auction, err := p.ledger.PlaceInitialOffer(env, fast, configID, offerPrice, keys[1])
	if err != nil {
		return nil, err
	}
	return &Outcome{Auction: auction, Touched: []solana.PublicKey{p.ledger.addresses.Auction(auction.VaaHash)}}, nil
}

func (p *Processor) improveOffer(env Env, keys []solana.PublicKey, r *reader) (*Outcome, error) {
	offerPrice := r.u64()
	hash := r.hash()
	configID := r.u32()
	if err := r.done("improve_offer"); err != nil {
		return nil, err
	}
	auction, err := p.ledger.ImproveOffer(env, hash, configID, offerPrice, keys[1])
	if err != nil {
		return nil, err
	}
	return &Outcome{Auction: auction, Touched: []solana.PublicKey{p.ledger.addresses.Auction(hash)}}, nil
}

func (p *Processor) executeFastOrder(env Env, keys []solana.PublicKey, r *reader) (*Outcome, error) {
	fast, err := r.vaaBody("execute_fast_order")
	if err != nil {
		return nil, err
	}
	auction, receipt, err := p.ledger.ExecuteFastOrder(env, fast, keys[1])
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Auction: auction,
		Receipt: receipt,
		Touched: []solana.PublicKey{p.ledger.addresses.Auction(auction.VaaHash)},
	}, nil
}

func (p *Processor) prepareOrderResponse(env Env, keys []solana.PublicKey, r *reader) (*Outcome, error) {
	finalizedBody := r.vec()
	fastBody := r.vec()
	cctpMessage := r.vec()
	_ = r.vec() // attestation
	if err := r.done("prepare_order_response_cctp"); err != nil {
		return nil, err
	}
	finalized, err := vaa.ParseBody(finalizedBody)
	if err != nil {
		return nil, fmt.Errorf("%w: finalized: %v", ErrAccountDidNotDeserialize, err)
	}
	fast, err := vaa.ParseBody(fastBody)
	if err != nil {
		return nil, fmt.Errorf("%w: fast: %v", ErrAccountDidNotDeserialize, err)
	}
	prepared, err := p.ledger.PrepareOrderResponse(env, finalized, fast, cctpMessage, keys[1])
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Prepared: prepared,
		Touched:  []solana.PublicKey{p.ledger.addresses.PreparedOrderResponse(prepared.FastVaaHash)},
	}, nil
}

func (p *Processor) settleAuctionComplete(env Env, keys []solana.PublicKey, r *reader) (*Outcome, error) {
	hash := r.hash()
	if err := r.done("settle_auction_complete"); err != nil {
		return nil, err
	}
	auction, err := p.ledger.SettleAuctionComplete(env, hash)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Auction: auction,
		Touched: []solana.PublicKey{
			p.ledger.addresses.Auction(hash),
			p.ledger.addresses.PreparedOrderResponse(hash),
		},
	}, nil
}

func (p *Processor) settleAuctionNone(env Env, keys []solana.PublicKey, r *reader) (*Outcome, error) {
	fast, err := r.vaaBody("settle_auction_none")
	if err != nil {
		return nil, err
	}
	auction, receipt, err := p.ledger.SettleAuctionNone(env, fast)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Auction: auction,
		Receipt: receipt,
		Touched: []solana.PublicKey{
			p.ledger.addresses.Auction(auction.VaaHash),
			p.ledger.addresses.PreparedOrderResponse(auction.VaaHash),
		},
	}, nil
}

func (p *Processor) closeAuction(env Env, keys []solana.PublicKey, r *reader) (*Outcome, error) {
	hash := r.hash()
	if err := r.done("close_auction"); err != nil {
		return nil, err
	}
	if err := p.ledger.CloseAuction(env, hash); err != nil {
		return nil, err
	}
	return &Outcome{Touched: []solana.PublicKey{p.ledger.addresses.Auction(hash)}}, nil
}
