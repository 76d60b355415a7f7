package program

import (
	"crypto/sha256"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
)

func TestDiscriminators(t *testing.T) {
	sum := sha256.Sum256([]byte("account:Auction"))
	d := AccountDiscriminator("Auction")
	assert.Equal(t, sum[:8], d[:])
	assert.NotEqual(t, AccountDiscriminator("Auction"), InstructionDiscriminator("Auction"))
}

func TestInstructionAdapter(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	var ix solana.Instruction = NewInstruction(MatchingEngine, []byte{1, 2}, Signer(payer), Readonly(System))
	data, err := ix.Data()
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)
	assert.Equal(t, MatchingEngine, ix.ProgramID())
	assert.True(t, ix.Accounts()[0].IsSigner)
	assert.True(t, ix.Accounts()[0].IsWritable)
	assert.False(t, ix.Accounts()[1].IsWritable)
}
