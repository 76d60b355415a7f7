package backend

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

type OpKind uint8

const (
	OpPlace OpKind = iota
	OpImprove
	OpExecuteCctp
	OpExecuteLocal
	OpPrepare
	OpSettle
	OpReclaim
)

func (k OpKind) String() string {
	switch k {
	case OpPlace:
		return "place"
	case OpImprove:
		return "improve"
	case OpExecuteCctp:
		return "execute_cctp"
	case OpExecuteLocal:
		return "execute_local"
	case OpPrepare:
		return "prepare"
	case OpSettle:
		return "settle"
	case OpReclaim:
		return "reclaim"
	default:
		return fmt.Sprintf("op(%d)", uint8(k))
	}
}

// Budget is the compute unit limit and the priority fee in micro-lamports
// per unit for one kind of transaction.
type Budget struct {
	ComputeUnits uint32
	PriorityFee  uint64
}

var Budgets = map[OpKind]Budget{
	OpPlace:        {ComputeUnits: 100_000, PriorityFee: 10},
	OpImprove:      {ComputeUnits: 60_000, PriorityFee: 10},
	OpExecuteCctp:  {ComputeUnits: 300_000, PriorityFee: 10},
	OpExecuteLocal: {ComputeUnits: 300_000, PriorityFee: 10},
	OpPrepare:      {ComputeUnits: 300_000, PriorityFee: 10},
	OpSettle:       {ComputeUnits: 100_000, PriorityFee: 10},
	OpReclaim:      {ComputeUnits: 120_000, PriorityFee: 10},
}

// ComputeBudgetInstructions returns the unit limit and unit price
// instructions that lead every transaction of kind. noise is added to the
// price so that otherwise identical transactions sign differently.
func ComputeBudgetInstructions(kind OpKind, noise uint64) []solana.Instruction {
	budget, ok := Budgets[kind]
	if !ok {
		budget = Budgets[OpSettle]
	}
	return []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(budget.ComputeUnits).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(budget.PriorityFee + noise).Build(),
	}
}
