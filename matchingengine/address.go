package matchingengine

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Addresses derive the program's accounts.
type Addresses struct {
	ProgramID solana.PublicKey
}

func NewAddresses(programID solana.PublicKey) Addresses {
	return Addresses{ProgramID: programID}
}

func (a Addresses) find(seeds ...[]byte) solana.PublicKey {
	key, _, err := solana.FindProgramAddress(seeds, a.ProgramID)
	if err != nil {
		// only reachable with seeds longer than 32 bytes
		panic(err)
	}
	return key
}

func (a Addresses) Custodian() solana.PublicKey {
	return a.find([]byte("emitter"))
}

func (a Addresses) AuctionConfig(id uint32) solana.PublicKey {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], id)
	return a.find([]byte("auction-config"), b[:])
}

func (a Addresses) RouterEndpoint(chain uint16) solana.PublicKey {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], chain)
	return a.find([]byte("endpoint"), b[:])
}

func (a Addresses) Auction(vaaHash [32]byte) solana.PublicKey {
	return a.find([]byte("auction"), vaaHash[:])
}

func (a Addresses) AuctionCustodyToken(auction solana.PublicKey) solana.PublicKey {
	return a.find([]byte("auction-custody"), auction[:])
}

func (a Addresses) PreparedOrderResponse(vaaHash [32]byte) solana.PublicKey {
	return a.find([]byte("order-response"), vaaHash[:])
}

func (a Addresses) PreparedCustodyToken(prepared solana.PublicKey) solana.PublicKey {
	return a.find([]byte("prepared-custody"), prepared[:])
}

func (a Addresses) Proposal(id uint64) solana.PublicKey {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return a.find([]byte("proposal"), b[:])
}
