package matchingengine

import (
	"bytes"
	"fmt"

	"github.com/egaotan/fast-transfer-solver/program"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	AuctionDiscriminator               = program.AccountDiscriminator("Auction")
	AuctionConfigDiscriminator         = program.AccountDiscriminator("AuctionConfig")
	CustodianDiscriminator             = program.AccountDiscriminator("Custodian")
	RouterEndpointDiscriminator        = program.AccountDiscriminator("RouterEndpoint")
	ProposalDiscriminator              = program.AccountDiscriminator("Proposal")
	PreparedOrderResponseDiscriminator = program.AccountDiscriminator("PreparedOrderResponse")
)

func EncodeAuction(a *Auction) []byte {
	w := newWriter(AuctionDiscriminator)
	w.u8(a.Bump)
	w.raw(a.VaaHash[:])
	w.u32(a.VaaTimestamp)
	w.protocol(a.TargetProtocol)
	w.u8(uint8(a.Status.Kind))
	switch a.Status.Kind {
	case StatusNotStarted, StatusActive:
	case StatusCompleted:
		w.u64(a.Status.Slot)
		w.optU64(a.Status.ExecutePenalty)
	case StatusSettled:
		w.u64(a.Status.Fee)
		w.optU64(a.Status.TotalPenalty)
	}
	w.key(a.PreparedBy)
	w.option(a.Info != nil)
	if info := a.Info; info != nil {
		w.u32(info.ConfigID)
		w.u64(info.VaaSequence)
		w.u16(info.SourceChain)
		w.key(info.BestOfferToken)
		w.key(info.InitialOfferToken)
		w.u64(info.StartSlot)
		w.u64(info.AmountIn)
		w.u64(info.SecurityDeposit)
		w.u64(info.OfferPrice)
		w.u64(info.MaxFee)
		w.u64(info.InitAuctionFee)
		w.u32(info.RedeemerMessageLen)
		w.option(info.DestinationAssetInfo != nil)
		if dst := info.DestinationAssetInfo; dst != nil {
			w.u8(dst.CustodyTokenBump)
			w.u64(dst.AmountOut)
		}
	}
	return w.Bytes()
}

func DecodeAuction(data []byte) (*Auction, error) {
	r, err := newReader(data, AuctionDiscriminator, "Auction")
	if err != nil {
		return nil, err
	}
	a := &Auction{}
	a.Bump = r.u8()
	copy(a.VaaHash[:], r.bytes(32))
	a.VaaTimestamp = r.u32()
	a.TargetProtocol = r.protocol()
	a.Status.Kind = AuctionStatusKind(r.u8())
	switch a.Status.Kind {
	case StatusNotStarted, StatusActive:
	case StatusCompleted:
		a.Status.Slot = r.u64()
		a.Status.ExecutePenalty = r.optU64()
	case StatusSettled:
		a.Status.Fee = r.u64()
		a.Status.TotalPenalty = r.optU64()
	default:
		r.fail(fmt.Errorf("auction status %d", a.Status.Kind))
	}
	a.PreparedBy = r.key()
	if r.option() {
		info := &AuctionInfo{}
		info.ConfigID = r.u32()
		info.VaaSequence = r.u64()
		info.SourceChain = r.u16()
		info.BestOfferToken = r.key()
		info.InitialOfferToken = r.key()
		info.StartSlot = r.u64()
		info.AmountIn = r.u64()
		info.SecurityDeposit = r.u64()
		info.OfferPrice = r.u64()
		info.MaxFee = r.u64()
		info.InitAuctionFee = r.u64()
		info.RedeemerMessageLen = r.u32()
		if r.option() {
			info.DestinationAssetInfo = &DestinationAssetInfo{
				CustodyTokenBump: r.u8(),
				AmountOut:        r.u64(),
			}
		}
		a.Info = info
	}
	if err := r.done("Auction"); err != nil {
		return nil, err
	}
	return a, nil
}

func EncodeAuctionConfig(c *AuctionConfig) []byte {
	w := newWriter(AuctionConfigDiscriminator)
	w.u32(c.ID)
	w.params(&c.Parameters)
	return w.Bytes()
}

func DecodeAuctionConfig(data []byte) (*AuctionConfig, error) {
	r, err := newReader(data, AuctionConfigDiscriminator, "AuctionConfig")
	if err != nil {
		return nil, err
	}
	c := &AuctionConfig{ID: r.u32(), Parameters: r.params()}
	if err := r.done("AuctionConfig"); err != nil {
		return nil, err
	}
	return c, nil
}

func EncodeCustodian(c *Custodian) []byte {
	w := newWriter(CustodianDiscriminator)
	w.key(c.Owner)
	w.option(c.PendingOwner != nil)
	if c.PendingOwner != nil {
		w.key(*c.PendingOwner)
	}
	w.bool(c.Paused)
	w.key(c.PausedSetBy)
	w.key(c.OwnerAssistant)
	w.key(c.FeeRecipientToken)
	w.u32(c.AuctionConfigID)
	w.u64(c.NextProposalID)
	return w.Bytes()
}

func DecodeCustodian(data []byte) (*Custodian, error) {
	r, err := newReader(data, CustodianDiscriminator, "Custodian")
	if err != nil {
		return nil, err
	}
	c := &Custodian{}
	c.Owner = r.key()
	if r.option() {
		pending := r.key()
		c.PendingOwner = &pending
	}
	c.Paused = r.bool()
	c.PausedSetBy = r.key()
	c.OwnerAssistant = r.key()
	c.FeeRecipientToken = r.key()
	c.AuctionConfigID = r.u32()
	c.NextProposalID = r.u64()
	if err := r.done("Custodian"); err != nil {
		return nil, err
	}
	return c, nil
}

func EncodeRouterEndpoint(e *RouterEndpoint) []byte {
	w := newWriter(RouterEndpointDiscriminator)
	w.u8(e.Bump)
	w.u16(e.Chain)
	w.raw(e.Address[:])
	w.raw(e.MintRecipient[:])
	w.protocol(e.Protocol)
	return w.Bytes()
}

func DecodeRouterEndpoint(data []byte) (*RouterEndpoint, error) {
	r, err := newReader(data, RouterEndpointDiscriminator, "RouterEndpoint")
	if err != nil {
		return nil, err
	}
	e := &RouterEndpoint{}
	e.Bump = r.u8()
	e.Chain = r.u16()
	copy(e.Address[:], r.bytes(32))
	copy(e.MintRecipient[:], r.bytes(32))
	e.Protocol = r.protocol()
	if err := r.done("RouterEndpoint"); err != nil {
		return nil, err
	}
	return e, nil
}

func EncodeProposal(p *Proposal) []byte {
	w := newWriter(ProposalDiscriminator)
	w.u64(p.ID)
	w.u8(p.Bump)
	w.u8(uint8(p.Action.Kind))
	switch p.Action.Kind {
	case ActionNone:
	case ActionUpdateAuctionParameters:
		w.u32(p.Action.ID)
		w.params(&p.Action.Parameters)
	}
	w.key(p.By)
	w.key(p.Owner)
	w.u64(p.SlotProposedAt)
	w.u64(p.SlotEnactDelay)
	w.optU64(p.SlotEnactedAt)
	return w.Bytes()
}

func DecodeProposal(data []byte) (*Proposal, error) {
	r, err := newReader(data, ProposalDiscriminator, "Proposal")
	if err != nil {
		return nil, err
	}
	p := &Proposal{}
	p.ID = r.u64()
	p.Bump = r.u8()
	p.Action.Kind = ProposalActionKind(r.u8())
	switch p.Action.Kind {
	case ActionNone:
	case ActionUpdateAuctionParameters:
		p.Action.ID = r.u32()
		p.Action.Parameters = r.params()
	default:
		r.fail(fmt.Errorf("proposal action %d", p.Action.Kind))
	}
	p.By = r.key()
	p.Owner = r.key()
	p.SlotProposedAt = r.u64()
	p.SlotEnactDelay = r.u64()
	p.SlotEnactedAt = r.optU64()
	if err := r.done("Proposal"); err != nil {
		return nil, err
	}
	return p, nil
}

func EncodePreparedOrderResponse(p *PreparedOrderResponse) []byte {
	w := newWriter(PreparedOrderResponseDiscriminator)
	w.u8(p.Bump)
	w.raw(p.FastVaaHash[:])
	w.key(p.PreparedBy)
	w.key(p.BaseFeeToken)
	w.u16(p.SourceChain)
	w.u64(p.BaseFee)
	w.u64(p.AmountIn)
	w.u64(p.InitAuctionFee)
	w.raw(p.Sender[:])
	w.raw(p.Redeemer[:])
	w.u16(p.TargetChain)
	w.vec(p.RedeemerMessage)
	return w.Bytes()
}

func DecodePreparedOrderResponse(data []byte) (*PreparedOrderResponse, error) {
	r, err := newReader(data, PreparedOrderResponseDiscriminator, "PreparedOrderResponse")
	if err != nil {
		return nil, err
	}
	p := &PreparedOrderResponse{}
	p.Bump = r.u8()
	copy(p.FastVaaHash[:], r.bytes(32))
	p.PreparedBy = r.key()
	p.BaseFeeToken = r.key()
	p.SourceChain = r.u16()
	p.BaseFee = r.u64()
	p.AmountIn = r.u64()
	p.InitAuctionFee = r.u64()
	copy(p.Sender[:], r.bytes(32))
	copy(p.Redeemer[:], r.bytes(32))
	p.TargetChain = r.u16()
	p.RedeemerMessage = r.vec()
	if err := r.done("PreparedOrderResponse"); err != nil {
		return nil, err
	}
	return p, nil
}

// reader decodes borsh little endian fields and keeps the first error.
type reader struct {
	dec *bin.Decoder
	err error
}

func newReader(data []byte, want program.Discriminator, name string) (*reader, error) {
	if len(data) < len(want) {
		return nil, fmt.Errorf("%w: %s: %d bytes", ErrAccountDidNotDeserialize, name, len(data))
	}
	if !bytes.Equal(data[:len(want)], want[:]) {
		return nil, fmt.Errorf("%w: want %s", ErrAccountDiscriminatorMismatch, name)
	}
	return &reader{dec: bin.NewBorshDecoder(data[len(want):])}, nil
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) done(name string) error {
	if r.err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAccountDidNotDeserialize, name, r.err)
	}
	return nil
}

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	r.fail(err)
	return v
}

func (r *reader) bool() bool {
	switch b := r.u8(); b {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail(fmt.Errorf("invalid bool %d", b))
		return false
	}
}

func (r *reader) option() bool {
	return r.bool()
}

func (r *reader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint16(bin.LE)
	r.fail(err)
	return v
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint32(bin.LE)
	r.fail(err)
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(bin.LE)
	r.fail(err)
	return v
}

func (r *reader) optU64() *uint64 {
	if !r.option() {
		return nil
	}
	v := r.u64()
	return &v
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	b, err := r.dec.ReadNBytes(n)
	r.fail(err)
	return b
}

func (r *reader) vec() []byte {
	n := r.u32()
	if n == 0 {
		return nil
	}
	return append([]byte(nil), r.bytes(int(n))...)
}

func (r *reader) key() solana.PublicKey {
	return solana.PublicKeyFromBytes(padKey(r.bytes(32)))
}

func (r *reader) protocol() MessageProtocol {
	p := MessageProtocol{Kind: MessageProtocolKind(r.u8())}
	switch p.Kind {
	case ProtocolNone:
	case ProtocolLocal:
		p.ProgramID = r.key()
	case ProtocolCctp:
		p.Domain = r.u32()
	default:
		r.fail(fmt.Errorf("message protocol %d", p.Kind))
	}
	return p
}

func (r *reader) params() AuctionParameters {
	return AuctionParameters{
		UserPenaltyRewardBps: r.u32(),
		InitialPenaltyBps:    r.u32(),
		Duration:             r.u16(),
		GracePeriod:          r.u16(),
		PenaltyPeriod:        r.u16(),
		MinOfferDeltaBps:     r.u32(),
		SecurityDepositBase:  r.u64(),
		SecurityDepositBps:   r.u32(),
	}
}

// padKey keeps PublicKeyFromBytes from panicking on a short read; the
// reader error is reported by done.
func padKey(b []byte) []byte {
	if len(b) == 32 {
		return b
	}
	return make([]byte, 32)
}

type writer struct {
	bytes.Buffer
	enc *bin.Encoder
}

func newWriter(d program.Discriminator) *writer {
	w := &writer{}
	w.Write(d[:])
	w.enc = bin.NewBorshEncoder(&w.Buffer)
	return w
}

func (w *writer) u8(v uint8)             { _ = w.enc.WriteUint8(v) }
func (w *writer) u16(v uint16)           { _ = w.enc.WriteUint16(v, bin.LE) }
func (w *writer) u32(v uint32)           { _ = w.enc.WriteUint32(v, bin.LE) }
func (w *writer) u64(v uint64)           { _ = w.enc.WriteUint64(v, bin.LE) }
func (w *writer) raw(b []byte)           { _ = w.enc.WriteBytes(b, false) }
func (w *writer) key(k solana.PublicKey) { w.raw(k[:]) }
func (w *writer) option(present bool)    { w.bool(present) }

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) optU64(v *uint64) {
	w.option(v != nil)
	if v != nil {
		w.u64(*v)
	}
}

func (w *writer) vec(b []byte) {
	w.u32(uint32(len(b)))
	w.raw(b)
}

func (w *writer) protocol(p MessageProtocol) {
	w.u8(uint8(p.Kind))
	switch p.Kind {
	case ProtocolNone:
	case ProtocolLocal:
		w.key(p.ProgramID)
	case ProtocolCctp:
		w.u32(p.Domain)
	}
}

func (w *writer) params(p *AuctionParameters) {
	w.u32(p.UserPenaltyRewardBps)
	w.u32(p.InitialPenaltyBps)
	w.u16(p.Duration)
	w.u16(p.GracePeriod)
	w.u16(p.PenaltyPeriod)
	w.u32(p.MinOfferDeltaBps)
	w.u64(p.SecurityDepositBase)
	w.u32(p.SecurityDepositBps)
}
