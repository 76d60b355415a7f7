package spltoken

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	TokenLayoutSize = 165
)

const (
	StateUninitialized = uint8(0)
	StateInitialized   = uint8(1)
	StateFrozen        = uint8(2)
)

// UserLayout is an spl token account.
type UserLayout struct {
	Mint                 solana.PublicKey
	Owner                solana.PublicKey
	Amount               uint64
	DelegateOption       [4]byte
	Delegate             solana.PublicKey
	State                uint8
	IsNativeOption       [4]byte
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption [4]byte
	CloseAuthority       solana.PublicKey
}

type KeyedUser struct {
	Key    solana.PublicKey
	Height uint64
	UserLayout
}

func NewUser(mint, owner solana.PublicKey, amount uint64) *UserLayout {
	return &UserLayout{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  StateInitialized,
	}
}

func DecodeUser(data []byte) (*UserLayout, error) {
	if len(data) != TokenLayoutSize {
		return nil, fmt.Errorf("token account size %d, want %d", len(data), TokenLayoutSize)
	}
	var user UserLayout
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &user); err != nil {
		return nil, err
	}
	if user.State == StateUninitialized {
		return nil, fmt.Errorf("token account is not initialized")
	}
	return &user, nil
}

func (user *UserLayout) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, TokenLayoutSize))
	// fixed size fields only, cannot fail
	_ = binary.Write(buf, binary.LittleEndian, user)
	return buf.Bytes()
}

// AssociatedTokenAddress is the owner's canonical token account for mint.
func AssociatedTokenAddress(owner, mint solana.PublicKey) solana.PublicKey {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		panic(err)
	}
	return ata
}
