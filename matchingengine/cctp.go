package matchingengine

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

const cctpHeaderLen = 4 + 4 + 4 + 8 + 32 + 32 + 32

// CctpMessage is a burn message as attested by Circle. Only the header is
// interpreted; the body is the burn itself.
type CctpMessage struct {
	Version           uint32
	SourceDomain      uint32
	DestinationDomain uint32
	Nonce             uint64
	Sender            [32]byte
	Recipient         [32]byte
	DestinationCaller [32]byte
	Body              []byte
}

func ParseCctpMessage(data []byte) (*CctpMessage, error) {
	if len(data) < cctpHeaderLen {
		return nil, fmt.Errorf("%w: cctp message of %d bytes", ErrCctpNonceMismatch, len(data))
	}
	dec := bin.NewBinDecoder(data)
	m := &CctpMessage{}
	m.Version, _ = dec.ReadUint32(bin.BE)
	m.SourceDomain, _ = dec.ReadUint32(bin.BE)
	m.DestinationDomain, _ = dec.ReadUint32(bin.BE)
	m.Nonce, _ = dec.ReadUint64(bin.BE)
	copy(m.Sender[:], data[20:52])
	copy(m.Recipient[:], data[52:84])
	copy(m.DestinationCaller[:], data[84:116])
	m.Body = append([]byte(nil), data[cctpHeaderLen:]...)
	return m, nil
}

func (m *CctpMessage) Marshal() []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint32(m.Version, bin.BE)
	_ = enc.WriteUint32(m.SourceDomain, bin.BE)
	_ = enc.WriteUint32(m.DestinationDomain, bin.BE)
	_ = enc.WriteUint64(m.Nonce, bin.BE)
	_ = enc.WriteBytes(m.Sender[:], false)
	_ = enc.WriteBytes(m.Recipient[:], false)
	_ = enc.WriteBytes(m.DestinationCaller[:], false)
	_ = enc.WriteBytes(m.Body, false)
	return buf.Bytes()
}
