package backend

import (
	"encoding/binary"
	"testing"

	"github.com/egaotan/fast-transfer-solver/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBudgetInstructions(t *testing.T) {
	ixs := ComputeBudgetInstructions(OpExecuteCctp, 7)
	require.Len(t, ixs, 2)
	for _, ix := range ixs {
		assert.Equal(t, program.ComputeBudget, ix.ProgramID())
		assert.Empty(t, ix.Accounts())
	}

	data, err := ixs[0].Data()
	require.NoError(t, err)
	require.Len(t, data, 5)
	assert.Equal(t, byte(2), data[0])
	assert.Equal(t, uint32(300_000), binary.LittleEndian.Uint32(data[1:]))

	data, err = ixs[1].Data()
	require.NoError(t, err)
	require.Len(t, data, 9)
	assert.Equal(t, byte(3), data[0])
	assert.Equal(t, uint64(17), binary.LittleEndian.Uint64(data[1:]))
}

func TestBudgetsCoverEveryKind(t *testing.T) {
	for kind := OpPlace; kind <= OpReclaim; kind++ {
		budget, ok := Budgets[kind]
		assert.True(t, ok, kind.String())
		assert.NotZero(t, budget.ComputeUnits, kind.String())
	}
	assert.Equal(t, uint32(60_000), Budgets[OpImprove].ComputeUnits)
	assert.Equal(t, "op(99)", OpKind(99).String())
}
