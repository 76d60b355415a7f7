package matchingengine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/egaotan/fast-transfer-solver/program"
	"github.com/egaotan/fast-transfer-solver/spltoken"
	"github.com/gagliardetto/solana-go"
)

// SignatureFee is the lamports charged per transaction signature.
const SignatureFee = uint64(5000)

// TransactionError is a failed transaction as the RPC node reports it.
type TransactionError struct {
	Code uint32
	Err  error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("Transaction simulation failed: Error processing Instruction 0: custom program error: 0x%x (%v)", e.Code, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// AccountUpdate is an account notification from the local chain. Data is
// nil when the account was closed.
type AccountUpdate struct {
	Slot    uint64
	Address solana.PublicKey
	Data    []byte
}

// LocalChain runs a Ledger behind the same calls the solver makes against an
// RPC node: send a transaction, fetch an account, read the slot. It applies
// at most one matching engine instruction per transaction.
type LocalChain struct {
	mu          sync.Mutex
	ledger      *Ledger
	processor   *Processor
	mint        solana.PublicKey
	slot        uint64
	unix        int64
	tokenOwners map[solana.PublicKey]solana.PublicKey
	sent        map[solana.Signature]*Outcome
	onAccount   []func(AccountUpdate)
	onSlot      []func(uint64)
}

func NewLocalChain(ledger *Ledger, mint solana.PublicKey) *LocalChain {
	return &LocalChain{
		ledger:      ledger,
		processor:   NewProcessor(ledger),
		mint:        mint,
		tokenOwners: make(map[solana.PublicKey]solana.PublicKey),
		sent:        make(map[solana.Signature]*Outcome),
	}
}

// Do runs fn with exclusive access to the ledger, for setup and inspection.
func (c *LocalChain) Do(fn func(ledger *Ledger, env Env)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.ledger, c.env(solana.PublicKey{}))
}

func (c *LocalChain) env(signer solana.PublicKey) Env {
	return Env{Slot: c.slot, UnixTimestamp: c.unix, Signer: signer}
}

func (c *LocalChain) OnAccountUpdate(fn func(AccountUpdate)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAccount = append(c.onAccount, fn)
}

func (c *LocalChain) OnSlot(fn func(uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSlot = append(c.onSlot, fn)
}

func (c *LocalChain) SetTime(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unix = unix
}

// Advance moves the clock forward n slots and seconds per slot.
func (c *LocalChain) Advance(n uint64, secondsPerSlot float64) uint64 {
	c.mu.Lock()
	c.slot += n
	c.unix += int64(float64(n) * secondsPerSlot)
	slot := c.slot
	listeners := append([]func(uint64){}, c.onSlot...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(slot)
	}
	return slot
}

// CreateTokenAccount funds owner's associated token account for the
// settlement mint and returns its address.
func (c *LocalChain) CreateTokenAccount(owner solana.PublicKey, amount uint64) solana.PublicKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	ata := spltoken.AssociatedTokenAddress(owner, c.mint)
	c.tokenOwners[ata] = owner
	c.ledger.bank.Mint(ata, amount)
	return ata
}

func (c *LocalChain) Airdrop(wallet solana.PublicKey, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger.bank.Airdrop(wallet, lamports)
}

func (c *LocalChain) GetSlot(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot, nil
}

func (c *LocalChain) GetBalance(ctx context.Context, wallet solana.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.bank.Lamports(wallet), nil
}

// GetLatestBlockhash derives a blockhash from the current slot.
func (c *LocalChain) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], c.slot)
	return solana.Hash(sha256.Sum256(b[:])), nil
}

// GetAccountData returns the account at key and the slot it was read at.
// Missing accounts give nil data.
func (c *LocalChain) GetAccountData(ctx context.Context, key solana.PublicKey) ([]byte, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountData(key), c.slot, nil
}

func (c *LocalChain) accountData(key solana.PublicKey) []byte {
	if data, ok := c.ledger.Account(key); ok {
		return data
	}
	if owner, ok := c.tokenOwners[key]; ok {
		return spltoken.NewUser(c.mint, owner, c.ledger.bank.Balance(key)).Encode()
	}
	return nil
}

// Outcome returns what a sent transaction did.
func (c *LocalChain) Outcome(sig solana.Signature) (*Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.sent[sig]
	return o, ok
}

func (c *LocalChain) SendTransaction(ctx context.Context, tx *solana.Transaction, skipPreflight bool) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction is not signed")
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("signature verification: %w", err)
	}
	sig := tx.Signatures[0]

	c.mu.Lock()
	updates, err := c.apply(tx, sig)
	listeners := append([]func(AccountUpdate){}, c.onAccount...)
	c.mu.Unlock()
	if err != nil {
		return solana.Signature{}, err
	}
	for _, update := range updates {
		for _, fn := range listeners {
			fn(update)
		}
	}
	return sig, nil
}

func (c *LocalChain) apply(tx *solana.Transaction, sig solana.Signature) ([]AccountUpdate, error) {
	if _, ok := c.sent[sig]; ok {
		return nil, errors.New("This transaction has already been processed")
	}
	keys := tx.Message.AccountKeys
	payer := keys[0]
	if c.ledger.bank.Lamports(payer) < SignatureFee {
		return nil, errors.New("Attempt to debit an account but found no record of a prior credit.")
	}

	var (
		outcome  *Outcome
		writable []solana.PublicKey
	)
	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) {
			return nil, fmt.Errorf("program index %d out of range", ix.ProgramIDIndex)
		}
		programID := keys[ix.ProgramIDIndex]
		if programID.Equals(program.ComputeBudget) {
			continue
		}
		if !programID.Equals(c.ledger.addresses.ProgramID) {
			return nil, fmt.Errorf("unsupported program %s", programID)
		}
		if outcome != nil {
			return nil, errors.New("more than one matching engine instruction")
		}
		accounts := make([]solana.PublicKey, 0, len(ix.Accounts))
		for _, index := range ix.Accounts {
			if int(index) >= len(keys) {
				return nil, fmt.Errorf("account index %d out of range", index)
			}
			key := keys[index]
			accounts = append(accounts, key)
			if ok, _ := tx.Message.IsWritable(key); ok {
				writable = append(writable, key)
			}
		}
		o, err := c.processor.Process(c.env(payer), accounts, ix.Data)
		if err != nil {
			if code, ok := ErrorCode(err); ok {
				return nil, &TransactionError{Code: code, Err: err}
			}
			return nil, err
		}
		outcome = o
	}
	if outcome == nil {
		outcome = &Outcome{}
	}
	c.ledger.bank.Charge(payer, SignatureFee*uint64(len(tx.Signatures)))
	c.sent[sig] = outcome

	updates := make([]AccountUpdate, 0, len(outcome.Touched)+len(writable))
	seen := make(map[solana.PublicKey]bool)
	for _, key := range append(outcome.Touched, writable...) {
		if seen[key] {
			continue
		}
		seen[key] = true
		data := c.accountData(key)
		if data == nil && !contains(outcome.Touched, key) {
			continue
		}
		updates = append(updates, AccountUpdate{Slot: c.slot, Address: key, Data: data})
	}
	return updates, nil
}

func contains(keys []solana.PublicKey, key solana.PublicKey) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
