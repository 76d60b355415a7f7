package pricing

import (
	"testing"

	"github.com/egaotan/fast-transfer-solver/config"
	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An order of 1_000_000 with a 5_000 max fee, priced at a 0.05% rollback
// risk and a 10% edge: fair value 500, with edge 550, so the solver bids.
func TestShouldPlace(t *testing.T) {
	p, err := ParseParameters("0.0005", "0.1")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), p.FairValue(1_000_000))
	assert.Equal(t, uint64(550), p.FairValueWithEdge(1_000_000))

	ok, fv := p.ShouldPlace(1_000_000, 5_000)
	assert.True(t, ok)
	assert.Equal(t, uint64(550), fv)

	ok, _ = p.ShouldPlace(1_000_000, 549)
	assert.False(t, ok)
	ok, _ = p.ShouldPlace(1_000_000, 550)
	assert.True(t, ok)
}

func TestShouldImprove(t *testing.T) {
	p, err := ParseParameters("0.0005", "0.1")
	require.NoError(t, err)
	auction := &matchingengine.AuctionParameters{MinOfferDeltaBps: 50_000}

	assert.True(t, p.ShouldImprove(1_000_000, 5_000, auction))
	assert.Equal(t, uint64(4_750), p.ImprovedOfferPrice(1_000_000, 5_000, auction))

	// 579 less its 5% delta is 551, still above fair value
	assert.True(t, p.ShouldImprove(1_000_000, 579, auction))
	assert.False(t, p.ShouldImprove(1_000_000, 570, auction))
	assert.Equal(t, uint64(550), p.ImprovedOfferPrice(1_000_000, 570, auction))
}

func TestParametersValidate(t *testing.T) {
	_, err := ParseParameters("0", "0.1")
	assert.Error(t, err)
	_, err = ParseParameters("1.5", "0.1")
	assert.Error(t, err)
	_, err = ParseParameters("0.5", "-0.1")
	assert.Error(t, err)
	_, err = ParseParameters("abc", "0.1")
	assert.Error(t, err)

	p, err := ParseParameters("1", "0")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), p.FairValueWithEdge(1_000_000))
}

// A risk that rounds to zero would price every order at zero.
func TestRiskBelowPrecisionRejected(t *testing.T) {
	_, err := ParseParameters("0.00005", "0.1")
	assert.ErrorContains(t, err, "below precision")
	_, err = NewTable([]config.PricingConfig{{Chain: 2, RollbackRisk: "0.00009", OfferEdge: "0"}})
	assert.Error(t, err)

	p, err := ParseParameters("0.0001", "0")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), p.FairValue(1_000_000))
}

func TestLargeAmountsSaturate(t *testing.T) {
	p, err := ParseParameters("1", "1")
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), p.FairValueWithEdge(^uint64(0)))
}

func TestTable(t *testing.T) {
	table, err := NewTable([]config.PricingConfig{
		{Chain: 2, RollbackRisk: "0.0069", OfferEdge: "0.5"},
		{Chain: 6, RollbackRisk: "0.0001", OfferEdge: "0"},
	})
	require.NoError(t, err)
	p, ok := table.For(2)
	require.True(t, ok)
	assert.Equal(t, "0.0069", p.Probability.String())
	_, ok = table.For(5)
	assert.False(t, ok)

	_, err = NewTable([]config.PricingConfig{{Chain: 2, RollbackRisk: "2", OfferEdge: "0"}})
	assert.Error(t, err)
}
