package program

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

type Discriminator [8]byte

// AccountDiscriminator prefixes every account owned by an anchor program.
func AccountDiscriminator(name string) Discriminator {
	return discriminator("account:" + name)
}

// InstructionDiscriminator prefixes the data of an anchor instruction.
// name is the snake_case handler name.
func InstructionDiscriminator(name string) Discriminator {
	return discriminator("global:" + name)
}

func discriminator(preimage string) Discriminator {
	var d Discriminator
	sum := sha256.Sum256([]byte(preimage))
	copy(d[:], sum[:8])
	return d
}

type Instruction struct {
	IsAccounts  []*solana.AccountMeta
	IsData      []byte
	IsProgramID solana.PublicKey
}

func NewInstruction(programID solana.PublicKey, data []byte, accounts ...*solana.AccountMeta) *Instruction {
	return &Instruction{
		IsAccounts:  accounts,
		IsData:      data,
		IsProgramID: programID,
	}
}

func (i *Instruction) Accounts() []*solana.AccountMeta {
	return i.IsAccounts
}

func (i *Instruction) ProgramID() solana.PublicKey {
	return i.IsProgramID
}

func (i *Instruction) Data() ([]byte, error) {
	return i.IsData, nil
}

func Signer(key solana.PublicKey) *solana.AccountMeta {
	return solana.Meta(key).SIGNER().WRITE()
}

func Writable(key solana.PublicKey) *solana.AccountMeta {
	return solana.Meta(key).WRITE()
}

func Readonly(key solana.PublicKey) *solana.AccountMeta {
	return solana.Meta(key)
}
