package feed

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const accountUpdateHeader = 8 + 32

// AccountUpdate is an account snapshot at a slot. Empty Data means the
// account was closed.
type AccountUpdate struct {
	Slot    uint64
	Address solana.PublicKey
	Data    []byte
}

// Encode lays out slot (u64 little endian), address, then the raw data.
func (u *AccountUpdate) Encode() []byte {
	buf := make([]byte, accountUpdateHeader+len(u.Data))
	binary.LittleEndian.PutUint64(buf, u.Slot)
	copy(buf[8:], u.Address[:])
	copy(buf[accountUpdateHeader:], u.Data)
	return buf
}

func DecodeAccountUpdate(data []byte) (*AccountUpdate, error) {
	if len(data) < accountUpdateHeader {
		return nil, fmt.Errorf("account update of %d bytes", len(data))
	}
	u := &AccountUpdate{
		Slot: binary.LittleEndian.Uint64(data),
		Data: append([]byte(nil), data[accountUpdateHeader:]...),
	}
	copy(u.Address[:], data[8:accountUpdateHeader])
	return u, nil
}

func (f *Feed) PublishAccount(topic string, u *AccountUpdate) error {
	return f.Publish(topic, u.Encode())
}
