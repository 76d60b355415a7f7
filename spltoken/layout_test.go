package spltoken

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserLayout(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	user := NewUser(mint, owner, 1_000_000_000)

	data := user.Encode()
	require.Len(t, data, TokenLayoutSize)

	decoded, err := DecodeUser(data)
	require.NoError(t, err)
	assert.Equal(t, owner, decoded.Owner)
	assert.Equal(t, uint64(1_000_000_000), decoded.Amount)

	_, err = DecodeUser(data[:100])
	assert.Error(t, err)

	_, err = DecodeUser(make([]byte, TokenLayoutSize))
	assert.Error(t, err)
}

func TestAssociatedTokenAddressIsStable(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	assert.Equal(t, AssociatedTokenAddress(owner, mint), AssociatedTokenAddress(owner, mint))
	assert.NotEqual(t, AssociatedTokenAddress(owner, mint), AssociatedTokenAddress(mint, owner))
}
