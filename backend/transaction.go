package backend

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// MaxTransactionSize is the packet limit for a serialized transaction.
const MaxTransactionSize = 1232

var (
	ErrTransactionTooLarge = errors.New("transaction too large")
	ErrBuildTransaction    = errors.New("build transaction")
)

// BuildTransaction assembles ixs paid by payer, signs it with wallets and
// checks its wire size.
func BuildTransaction(ixs []solana.Instruction, blockhash solana.Hash, payer solana.PublicKey, wallets *Wallets) (*solana.Transaction, error) {
	builder := solana.NewTransactionBuilder()
	for _, ix := range ixs {
		builder.AddInstruction(ix)
	}
	builder.SetRecentBlockHash(blockhash)
	builder.SetFeePayer(payer)
	tx, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildTransaction, err)
	}
	if _, err := tx.Sign(wallets.Get); err != nil {
		return nil, fmt.Errorf("%w: sign: %v", ErrBuildTransaction, err)
	}
	data, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %v", ErrBuildTransaction, err)
	}
	if len(data) > MaxTransactionSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTransactionTooLarge, len(data))
	}
	return tx, nil
}
