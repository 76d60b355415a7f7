package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

type AccountCallback interface {
	OnAccountUpdate(account *Account)
}

type AccountFunc func(account *Account)

func (fn AccountFunc) OnAccountUpdate(account *Account) { fn(account) }

// SubscribeAccount streams changes of key to cb until ctx is done or the
// subscription fails.
func (backend *Backend) SubscribeAccount(ctx context.Context, key solana.PublicKey, cb AccountCallback) error {
	if backend.wsClient == nil {
		return ErrNoWebsocket
	}
	sub, err := backend.wsClient.AccountSubscribeWithOpts(key, backend.commitment, solana.EncodingBase64)
	if err != nil {
		return fmt.Errorf("account subscribe %s: %w", key, err)
	}
	defer sub.Unsubscribe()
	for {
		got, err := sub.Recv(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("recv account %s: %w", key, err)
		}
		if got == nil {
			return fmt.Errorf("account subscription %s closed", key)
		}
		account := got.Value.Account
		cb.OnAccountUpdate(newAccount(key, got.Context.Slot, &account))
	}
}

// SubscribeProgram streams changes of every account owned by programID.
func (backend *Backend) SubscribeProgram(ctx context.Context, programID solana.PublicKey, cb AccountCallback) error {
	if backend.wsClient == nil {
		return ErrNoWebsocket
	}
	sub, err := backend.wsClient.ProgramSubscribeWithOpts(programID, backend.commitment, solana.EncodingBase64, nil)
	if err != nil {
		return fmt.Errorf("program subscribe %s: %w", programID, err)
	}
	defer sub.Unsubscribe()
	for {
		got, err := sub.Recv(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("recv program %s: %w", programID, err)
		}
		if got == nil {
			return errors.New("program subscription closed")
		}
		cb.OnAccountUpdate(newAccount(got.Value.Pubkey, got.Context.Slot, got.Value.Account))
	}
}
