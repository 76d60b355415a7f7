package backend

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	MultipleAccountSliceSize = 100
)

// Account is an account snapshot. Data and Lamports are zero when the
// account does not exist.
type Account struct {
	Address  solana.PublicKey
	Slot     uint64
	Lamports uint64
	Data     []byte
}

func newAccount(key solana.PublicKey, slot uint64, account *rpc.Account) *Account {
	a := &Account{Address: key, Slot: slot}
	if account != nil {
		a.Lamports = account.Lamports
		if account.Data != nil {
			a.Data = account.Data.GetBinary()
		}
	}
	return a
}

// Accounts fetches keys in slices of MultipleAccountSliceSize.
func (backend *Backend) Accounts(ctx context.Context, keys []solana.PublicKey) ([]*Account, error) {
	accounts := make([]*Account, 0, len(keys))
	index, end := 0, 0
	for index < len(keys) {
		if end = index + MultipleAccountSliceSize; end > len(keys) {
			end = len(keys)
		}
		out, err := backend.rpcClient.GetMultipleAccountsWithOpts(ctx, keys[index:end],
			&rpc.GetMultipleAccountsOpts{
				Encoding:   solana.EncodingBase64,
				Commitment: backend.commitment,
			})
		if err != nil {
			return nil, err
		}
		if len(out.Value) != end-index {
			return nil, fmt.Errorf("get accounts: want %d, got %d", end-index, len(out.Value))
		}
		for i, account := range out.Value {
			accounts = append(accounts, newAccount(keys[index+i], out.Context.Slot, account))
		}
		index = end
	}
	return accounts, nil
}
