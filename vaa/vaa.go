// Package vaa parses and builds the signed cross-chain message envelope that
// carries fast and finalized orders, and the liquidity-layer payloads inside it.
package vaa

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	bin "github.com/gagliardetto/binary"
)

const (
	SignatureLength  = 66
	headerLength     = 6
	bodyHeaderLength = 51
)

var (
	ErrMalformedVaa       = errors.New("malformed vaa")
	ErrUnexpectedPayload  = errors.New("unexpected payload")
	ErrUnsupportedVersion = errors.New("unsupported vaa version")
)

type Signature struct {
	Index     uint8
	Signature [65]byte
}

type VAA struct {
	Version          uint8
	GuardianSetIndex uint32
	Signatures       []Signature
	Timestamp        uint32
	Nonce            uint32
	EmitterChain     uint16
	EmitterAddress   [32]byte
	Sequence         uint64
	ConsistencyLevel uint8
	Payload          []byte
}

// Parse decodes a full envelope: header, guardian signatures and body.
func Parse(data []byte) (*VAA, error) {
	if len(data) < headerLength+bodyHeaderLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedVaa, len(data))
	}
	r := newReader(data)
	v := &VAA{}
	v.Version = r.u8()
	if r.err == nil && v.Version != 1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v.Version)
	}
	v.GuardianSetIndex = r.u32()
	n := int(r.u8())
	v.Signatures = make([]Signature, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		sig := Signature{Index: r.u8()}
		copy(sig.Signature[:], r.bytes(65))
		v.Signatures = append(v.Signatures, sig)
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVaa, r.err)
	}
	if err := v.parseBody(r); err != nil {
		return nil, err
	}
	return v, nil
}

// ParseBody decodes only the signed body, as carried in instruction data.
func ParseBody(body []byte) (*VAA, error) {
	if len(body) < bodyHeaderLength {
		return nil, fmt.Errorf("%w: body of %d bytes", ErrMalformedVaa, len(body))
	}
	v := &VAA{Version: 1}
	if err := v.parseBody(newReader(body)); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *VAA) parseBody(r *reader) error {
	v.Timestamp = r.u32()
	v.Nonce = r.u32()
	v.EmitterChain = r.u16()
	copy(v.EmitterAddress[:], r.bytes(32))
	v.Sequence = r.u64()
	v.ConsistencyLevel = r.u8()
	v.Payload = r.rest()
	if r.err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedVaa, r.err)
	}
	return nil
}

func (v *VAA) Body() []byte {
	w := newWriter()
	w.u32(v.Timestamp)
	w.u32(v.Nonce)
	w.u16(v.EmitterChain)
	w.raw(v.EmitterAddress[:])
	w.u64(v.Sequence)
	w.u8(v.ConsistencyLevel)
	w.raw(v.Payload)
	return w.Bytes()
}

func (v *VAA) Marshal() []byte {
	w := newWriter()
	w.u8(v.Version)
	w.u32(v.GuardianSetIndex)
	w.u8(uint8(len(v.Signatures)))
	for _, sig := range v.Signatures {
		w.u8(sig.Index)
		w.raw(sig.Signature[:])
	}
	w.raw(v.Body())
	return w.Bytes()
}

// Hash is keccak256 of the body.
func (v *VAA) Hash() [32]byte {
	var h [32]byte
	copy(h[:], crypto.Keccak256(v.Body()))
	return h
}

// Digest is keccak256(Hash), the identity of an order and the key of its
// auction.
func (v *VAA) Digest() [32]byte {
	h := v.Hash()
	var d [32]byte
	copy(d[:], crypto.Keccak256(h[:]))
	return d
}

// ID is the wormholescan identity chain/emitter/sequence.
func (v *VAA) ID() string {
	return fmt.Sprintf("%d/%s/%d", v.EmitterChain, hex.EncodeToString(v.EmitterAddress[:]), v.Sequence)
}

func (v *VAA) PayloadID() uint8 {
	if len(v.Payload) == 0 {
		return 0
	}
	return v.Payload[0]
}

type reader struct {
	dec *bin.Decoder
	err error
}

func newReader(data []byte) *reader {
	return &reader{dec: bin.NewBinDecoder(data)}
}

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	var v uint8
	v, r.err = r.dec.ReadUint8()
	return v
}

func (r *reader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	var v uint16
	v, r.err = r.dec.ReadUint16(bin.BE)
	return v
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	var v uint32
	v, r.err = r.dec.ReadUint32(bin.BE)
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	var v uint64
	v, r.err = r.dec.ReadUint64(bin.BE)
	return v
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	var b []byte
	b, r.err = r.dec.ReadNBytes(n)
	if r.err != nil {
		return nil
	}
	return b
}

func (r *reader) rest() []byte {
	if r.err != nil {
		return nil
	}
	return r.bytes(r.dec.Remaining())
}

type writer struct {
	bytes.Buffer
	enc *bin.Encoder
}

func newWriter() *writer {
	w := &writer{}
	w.enc = bin.NewBinEncoder(&w.Buffer)
	return w
}

// Encoder errors only come from the underlying buffer, which never fails.
func (w *writer) u8(v uint8)   { _ = w.enc.WriteUint8(v) }
func (w *writer) u16(v uint16) { _ = w.enc.WriteUint16(v, bin.BE) }
func (w *writer) u32(v uint32) { _ = w.enc.WriteUint32(v, bin.BE) }
func (w *writer) u64(v uint64) { _ = w.enc.WriteUint64(v, bin.BE) }
func (w *writer) raw(b []byte) { _ = w.enc.WriteBytes(b, false) }
