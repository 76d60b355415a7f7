package matchingengine

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Bank holds settlement token balances by token account, and native
// balances by wallet.
type Bank struct {
	tokens   map[solana.PublicKey]uint64
	lamports map[solana.PublicKey]uint64
}

func NewBank() *Bank {
	return &Bank{
		tokens:   make(map[solana.PublicKey]uint64),
		lamports: make(map[solana.PublicKey]uint64),
	}
}

func (bank *Bank) Balance(account solana.PublicKey) uint64 {
	return bank.tokens[account]
}

func (bank *Bank) Mint(to solana.PublicKey, amount uint64) {
	bank.tokens[to] += amount
}

func (bank *Bank) Transfer(from, to solana.PublicKey, amount uint64) error {
	if bank.tokens[from] < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, bank.tokens[from], amount)
	}
	bank.tokens[from] -= amount
	bank.tokens[to] += amount
	return nil
}

// transfers applies a batch atomically: either every leg moves or none does.
func (bank *Bank) transfers(legs ...leg) error {
	need := make(map[solana.PublicKey]uint64)
	for _, l := range legs {
		need[l.from] += l.amount
	}
	for from, amount := range need {
		if bank.tokens[from] < amount {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, bank.tokens[from], amount)
		}
	}
	for _, l := range legs {
		bank.tokens[l.from] -= l.amount
		bank.tokens[l.to] += l.amount
	}
	return nil
}

type leg struct {
	from, to solana.PublicKey
	amount   uint64
}

func (bank *Bank) Lamports(wallet solana.PublicKey) uint64 {
	return bank.lamports[wallet]
}

func (bank *Bank) Airdrop(wallet solana.PublicKey, lamports uint64) {
	bank.lamports[wallet] += lamports
}

// Charge debits a fee or rent payment. Balances saturate at zero.
func (bank *Bank) Charge(wallet solana.PublicKey, lamports uint64) {
	if bank.lamports[wallet] < lamports {
		bank.lamports[wallet] = 0
		return
	}
	bank.lamports[wallet] -= lamports
}
