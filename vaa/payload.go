package vaa

import (
	"fmt"
)

const (
	DepositID           = uint8(1)
	FillID              = uint8(1)
	FastMarketOrderID   = uint8(11)
	FastFillID          = uint8(12)
	SlowOrderResponseID = uint8(14)
)

const fastMarketOrderLength = 1 + 8 + 8 + 2 + 32*3 + 8 + 8 + 4 + 4

type FastMarketOrder struct {
	AmountIn        uint64
	MinAmountOut    uint64
	TargetChain     uint16
	Redeemer        [32]byte
	Sender          [32]byte
	RefundAddress   [32]byte
	MaxFee          uint64
	InitAuctionFee  uint64
	Deadline        uint32
	RedeemerMessage []byte
}

func ParseFastMarketOrder(payload []byte) (*FastMarketOrder, error) {
	if len(payload) == 0 || payload[0] != FastMarketOrderID {
		return nil, fmt.Errorf("%w: want fast market order", ErrUnexpectedPayload)
	}
	if len(payload) < fastMarketOrderLength {
		return nil, fmt.Errorf("%w: fast market order of %d bytes", ErrMalformedVaa, len(payload))
	}
	r := newReader(payload[1:])
	o := &FastMarketOrder{}
	o.AmountIn = r.u64()
	o.MinAmountOut = r.u64()
	o.TargetChain = r.u16()
	copy(o.Redeemer[:], r.bytes(32))
	copy(o.Sender[:], r.bytes(32))
	copy(o.RefundAddress[:], r.bytes(32))
	o.MaxFee = r.u64()
	o.InitAuctionFee = r.u64()
	o.Deadline = r.u32()
	n := int(r.u32())
	o.RedeemerMessage = r.bytes(n)
	if r.err != nil {
		return nil, fmt.Errorf("%w: fast market order: %v", ErrMalformedVaa, r.err)
	}
	if o.InitAuctionFee > o.AmountIn {
		return nil, fmt.Errorf("%w: init auction fee %d exceeds amount in %d", ErrMalformedVaa, o.InitAuctionFee, o.AmountIn)
	}
	return o, nil
}

func (o *FastMarketOrder) Marshal() []byte {
	w := newWriter()
	w.u8(FastMarketOrderID)
	w.u64(o.AmountIn)
	w.u64(o.MinAmountOut)
	w.u16(o.TargetChain)
	w.raw(o.Redeemer[:])
	w.raw(o.Sender[:])
	w.raw(o.RefundAddress[:])
	w.u64(o.MaxFee)
	w.u64(o.InitAuctionFee)
	w.u32(o.Deadline)
	w.u32(uint32(len(o.RedeemerMessage)))
	w.raw(o.RedeemerMessage)
	return w.Bytes()
}

// Deposit is the token bridge message emitted with a CCTP burn. Its inner
// payload is a liquidity layer message such as SlowOrderResponse.
type Deposit struct {
	TokenAddress          [32]byte
	Amount                uint64
	SourceCctpDomain      uint32
	DestinationCctpDomain uint32
	CctpNonce             uint64
	BurnSource            [32]byte
	MintRecipient         [32]byte
	Payload               []byte
}

func ParseDeposit(payload []byte) (*Deposit, error) {
	if len(payload) == 0 || payload[0] != DepositID {
		return nil, fmt.Errorf("%w: want deposit", ErrUnexpectedPayload)
	}
	r := newReader(payload[1:])
	d := &Deposit{}
	copy(d.TokenAddress[:], r.bytes(32))
	amount := r.bytes(32)
	if r.err != nil {
		return nil, fmt.Errorf("%w: deposit: %v", ErrMalformedVaa, r.err)
	}
	for _, b := range amount[:24] {
		if b != 0 {
			return nil, fmt.Errorf("%w: deposit amount exceeds u64", ErrMalformedVaa)
		}
	}
	d.Amount = beUint64(amount[24:])
	d.SourceCctpDomain = r.u32()
	d.DestinationCctpDomain = r.u32()
	d.CctpNonce = r.u64()
	copy(d.BurnSource[:], r.bytes(32))
	copy(d.MintRecipient[:], r.bytes(32))
	n := int(r.u16())
	d.Payload = r.bytes(n)
	if r.err != nil {
		return nil, fmt.Errorf("%w: deposit: %v", ErrMalformedVaa, r.err)
	}
	return d, nil
}

func (d *Deposit) Marshal() []byte {
	w := newWriter()
	w.u8(DepositID)
	w.raw(d.TokenAddress[:])
	w.raw(make([]byte, 24))
	w.u64(d.Amount)
	w.u32(d.SourceCctpDomain)
	w.u32(d.DestinationCctpDomain)
	w.u64(d.CctpNonce)
	w.raw(d.BurnSource[:])
	w.raw(d.MintRecipient[:])
	w.u16(uint16(len(d.Payload)))
	w.raw(d.Payload)
	return w.Bytes()
}

type SlowOrderResponse struct {
	BaseFee uint64
}

func (s *SlowOrderResponse) Marshal() []byte {
	w := newWriter()
	w.u8(SlowOrderResponseID)
	w.u64(s.BaseFee)
	return w.Bytes()
}

// ParseSlowOrder decodes a finalized order: a deposit whose inner payload is
// a slow order response.
func ParseSlowOrder(payload []byte) (*Deposit, *SlowOrderResponse, error) {
	d, err := ParseDeposit(payload)
	if err != nil {
		return nil, nil, err
	}
	if len(d.Payload) != 9 || d.Payload[0] != SlowOrderResponseID {
		return nil, nil, fmt.Errorf("%w: want slow order response", ErrUnexpectedPayload)
	}
	return d, &SlowOrderResponse{BaseFee: beUint64(d.Payload[1:])}, nil
}

// Fill is the message delivered to the destination when a fast order is
// executed.
type Fill struct {
	SourceChain     uint16
	OrderSender     [32]byte
	Redeemer        [32]byte
	RedeemerMessage []byte
}

func (f *Fill) Marshal() []byte {
	w := newWriter()
	w.u8(FillID)
	w.u16(f.SourceChain)
	w.raw(f.OrderSender[:])
	w.raw(f.Redeemer[:])
	w.u32(uint32(len(f.RedeemerMessage)))
	w.raw(f.RedeemerMessage)
	return w.Bytes()
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b[:8] {
		v = v<<8 | uint64(x)
	}
	return v
}
