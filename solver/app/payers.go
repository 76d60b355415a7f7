package app

import (
	"github.com/egaotan/fast-transfer-solver/monitor"
	"github.com/gagliardetto/solana-go"
)

type Payer struct {
	Key      solana.PublicKey
	Token    solana.PublicKey
	Enabled  bool
	Lamports uint64
	Tokens   uint64
}

// Payers rotates through the configured fee payers. A payer is enabled once
// its balances are known to cover minLamports and minTokens.
type Payers struct {
	payers      []*Payer
	byKey       map[solana.PublicKey]*Payer
	lastUsed    int
	minLamports uint64
	minTokens   uint64
}

func NewPayers(keys, tokens []solana.PublicKey, minLamports, minTokens uint64) *Payers {
	p := &Payers{
		payers:      make([]*Payer, 0, len(keys)),
		byKey:       make(map[solana.PublicKey]*Payer, len(keys)),
		lastUsed:    -1,
		minLamports: minLamports,
		minTokens:   minTokens,
	}
	for i, key := range keys {
		payer := &Payer{Key: key, Token: tokens[i]}
		p.payers = append(p.payers, payer)
		p.byKey[key] = payer
	}
	return p
}

// UseNext returns the next enabled payer after the last one used, or nil.
func (p *Payers) UseNext() *Payer {
	n := len(p.payers)
	for i := 1; i <= n; i++ {
		index := (p.lastUsed + i) % n
		if p.payers[index].Enabled {
			p.lastUsed = index
			return p.payers[index]
		}
	}
	return nil
}

// Observe records balances for owner and reports whether its enablement
// changed.
func (p *Payers) Observe(owner solana.PublicKey, lamports, tokens uint64) (*Payer, bool) {
	payer, ok := p.byKey[owner]
	if !ok {
		return nil, false
	}
	payer.Lamports, payer.Tokens = lamports, tokens
	enabled := lamports >= p.minLamports && tokens >= p.minTokens
	changed := enabled != payer.Enabled
	payer.Enabled = enabled
	return payer, changed
}

func (p *Payers) Get(key solana.PublicKey) *Payer {
	return p.byKey[key]
}

func (p *Payers) Enabled() int {
	count := 0
	for _, payer := range p.payers {
		if payer.Enabled {
			count++
		}
	}
	return count
}

func (p *Payers) Status() []monitor.PayerStatus {
	out := make([]monitor.PayerStatus, 0, len(p.payers))
	for _, payer := range p.payers {
		out = append(out, monitor.PayerStatus{
			Address:  payer.Key.String(),
			Enabled:  payer.Enabled,
			Lamports: payer.Lamports,
			Tokens:   payer.Tokens,
		})
	}
	return out
}
