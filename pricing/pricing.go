package pricing

import (
	"fmt"
	"math/bits"

	"github.com/egaotan/fast-transfer-solver/config"
	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/shopspring/decimal"
)

// Precision is the fixed point scale policy inputs are converted to.
const Precision = 10_000

var precision = decimal.NewFromInt(Precision)

// Parameters is the risk policy for orders from one source chain.
// Probability is the chance the source chain rolls the order back; Edge is
// the margin demanded on top of that fair value.
type Parameters struct {
	Probability decimal.Decimal
	Edge        decimal.Decimal

	probability uint64
	edge        uint64
}

func NewParameters(probability, edge decimal.Decimal) (*Parameters, error) {
	p := &Parameters{Probability: probability, Edge: edge}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.probability = uint64(probability.Mul(precision).Floor().IntPart())
	if p.probability == 0 {
		return nil, fmt.Errorf("rollback risk %s is below precision 1/%d", probability, Precision)
	}
	p.edge = uint64(edge.Mul(precision).Floor().IntPart())
	return p, nil
}

func ParseParameters(probability, edge string) (*Parameters, error) {
	prob, err := decimal.NewFromString(probability)
	if err != nil {
		return nil, fmt.Errorf("rollback risk %q: %w", probability, err)
	}
	e, err := decimal.NewFromString(edge)
	if err != nil {
		return nil, fmt.Errorf("offer edge %q: %w", edge, err)
	}
	return NewParameters(prob, e)
}

func (p *Parameters) Validate() error {
	if !p.Probability.IsPositive() || p.Probability.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("rollback risk must be in (0, 1], got %s", p.Probability)
	}
	if p.Edge.IsNegative() {
		return fmt.Errorf("offer edge must be non-negative, got %s", p.Edge)
	}
	return nil
}

func scale(amount, factor uint64) uint64 {
	hi, lo := bits.Mul64(amount, factor)
	if hi >= Precision {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, Precision)
	return q
}

// FairValue is amountIn weighted by the rollback probability.
func (p *Parameters) FairValue(amountIn uint64) uint64 {
	return scale(amountIn, p.probability)
}

// FairValueWithEdge is the lowest fee worth taking the order for.
func (p *Parameters) FairValueWithEdge(amountIn uint64) uint64 {
	fv := p.FairValue(amountIn)
	sum, carry := bits.Add64(fv, scale(fv, p.edge), 0)
	if carry != 0 {
		return ^uint64(0)
	}
	return sum
}

// ShouldPlace reports whether an initial offer at maxFee is worth placing.
func (p *Parameters) ShouldPlace(amountIn, maxFee uint64) (bool, uint64) {
	fv := p.FairValueWithEdge(amountIn)
	return fv <= maxFee, fv
}

// ShouldImprove reports whether the best offer current can be beaten
// without going below fair value.
func (p *Parameters) ShouldImprove(amountIn, current uint64, auction *matchingengine.AuctionParameters) bool {
	return p.FairValueWithEdge(amountIn) <= matchingengine.MaxImprovedOffer(auction, current)
}

// ImprovedOfferPrice is the offer sent to beat current: the highest price
// the ledger accepts, never below fair value.
func (p *Parameters) ImprovedOfferPrice(amountIn, current uint64, auction *matchingengine.AuctionParameters) uint64 {
	price := matchingengine.MaxImprovedOffer(auction, current)
	if fv := p.FairValueWithEdge(amountIn); price < fv {
		return fv
	}
	return price
}

// Table holds Parameters by source chain.
type Table map[uint16]*Parameters

func NewTable(cfgs []config.PricingConfig) (Table, error) {
	table := make(Table, len(cfgs))
	for _, cfg := range cfgs {
		p, err := ParseParameters(cfg.RollbackRisk, cfg.OfferEdge)
		if err != nil {
			return nil, fmt.Errorf("pricing for chain %d: %w", cfg.Chain, err)
		}
		table[cfg.Chain] = p
	}
	return table, nil
}

func (table Table) For(chain uint16) (*Parameters, bool) {
	p, ok := table[chain]
	return p, ok
}
