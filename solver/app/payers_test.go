package app

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayers(n int) (*Payers, []solana.PublicKey) {
	keys := make([]solana.PublicKey, n)
	tokens := make([]solana.PublicKey, n)
	for i := range keys {
		keys[i] = solana.NewWallet().PublicKey()
		tokens[i] = solana.NewWallet().PublicKey()
	}
	return NewPayers(keys, tokens, 100, 1_000), keys
}

func TestPayersStartDisabled(t *testing.T) {
	p, _ := newTestPayers(2)
	assert.Nil(t, p.UseNext())
	assert.Equal(t, 0, p.Enabled())
}

func TestPayersRoundRobin(t *testing.T) {
	p, keys := newTestPayers(3)
	for _, key := range keys {
		_, changed := p.Observe(key, 100, 1_000)
		assert.True(t, changed)
	}
	var used []solana.PublicKey
	for i := 0; i < 4; i++ {
		payer := p.UseNext()
		require.NotNil(t, payer)
		used = append(used, payer.Key)
	}
	assert.Equal(t, []solana.PublicKey{keys[0], keys[1], keys[2], keys[0]}, used)

	// the second payer runs low on lamports and is skipped
	payer, changed := p.Observe(keys[1], 99, 5_000)
	require.NotNil(t, payer)
	assert.True(t, changed)
	assert.False(t, payer.Enabled)
	assert.Equal(t, keys[2], p.UseNext().Key)
	assert.Equal(t, keys[0], p.UseNext().Key)
	assert.Equal(t, keys[2], p.UseNext().Key)
	assert.Equal(t, 2, p.Enabled())
}

func TestPayersObserve(t *testing.T) {
	p, keys := newTestPayers(1)
	_, changed := p.Observe(solana.NewWallet().PublicKey(), 100, 1_000)
	assert.False(t, changed)

	_, changed = p.Observe(keys[0], 100, 999)
	assert.False(t, changed)
	assert.Nil(t, p.UseNext())

	_, changed = p.Observe(keys[0], 100, 1_000)
	assert.True(t, changed)
	_, changed = p.Observe(keys[0], 200, 2_000)
	assert.False(t, changed)

	status := p.Status()
	require.Len(t, status, 1)
	assert.Equal(t, keys[0].String(), status[0].Address)
	assert.True(t, status[0].Enabled)
	assert.Equal(t, uint64(2_000), status[0].Tokens)
}
