package matchingengine

import (
	"testing"

	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	amountIn     = uint64(1_000_000)
	maxFee       = uint64(5_000)
	deposit      = uint64(9_200) // 4_200 + 0.5% of amountIn
	totalDeposit = amountIn + maxFee + deposit
)

func TestPlaceInitialOfferLocksTotalDeposit(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	payer, token := f.bidder(2 * totalDeposit)

	auction, err := f.ledger.PlaceInitialOffer(f.env(payer), fast, 0, maxFee, token)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, auction.Status.Kind)
	assert.Equal(t, fast.Digest(), auction.VaaHash)
	assert.Equal(t, payer, auction.PreparedBy)
	assert.Equal(t, CctpProtocol(1), auction.TargetProtocol)
	require.NotNil(t, auction.Info)
	assert.Equal(t, token, auction.Info.BestOfferToken)
	assert.Equal(t, token, auction.Info.InitialOfferToken)
	assert.Equal(t, f.slot, auction.Info.StartSlot)
	assert.Equal(t, deposit, auction.Info.SecurityDeposit)
	assert.Equal(t, totalDeposit, auction.Info.TotalDeposit())

	assert.Equal(t, totalDeposit, f.ledger.bank.Balance(f.custody(fast)))
	assert.Equal(t, totalDeposit, f.ledger.bank.Balance(token))
}

func TestPlaceInitialOfferIsCreateOnce(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	payer, token := f.bidder(2 * totalDeposit)
	_, err := f.ledger.PlaceInitialOffer(f.env(payer), fast, 0, maxFee, token)
	require.NoError(t, err)

	other, otherToken := f.bidder(totalDeposit)
	_, err = f.ledger.PlaceInitialOffer(f.env(other), fast, 0, maxFee-1, otherToken)
	assert.ErrorIs(t, err, ErrAuctionAlreadyExists)
	assert.True(t, IsRejection(err))
	assert.Equal(t, totalDeposit, f.ledger.bank.Balance(otherToken))
	assert.Equal(t, totalDeposit, f.ledger.bank.Balance(f.custody(fast)))

	auction, ok := f.ledger.Auction(fast.Digest())
	require.True(t, ok)
	assert.Equal(t, maxFee, auction.Info.OfferPrice)
}

func TestPlaceInitialOfferRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *fixture, order *vaa.FastMarketOrder, v *vaa.VAA)
		price   uint64
		config  uint32
		wantErr error
	}{
		{
			name:    "offer above max fee",
			price:   maxFee + 1,
			wantErr: ErrOfferPriceTooHigh,
		},
		{
			name: "deadline passed",
			mutate: func(f *fixture, order *vaa.FastMarketOrder, v *vaa.VAA) {
				order.Deadline = uint32(f.now - 1)
			},
			price:   maxFee,
			wantErr: ErrFastMarketOrderExpired,
		},
		{
			name: "vaa too old",
			mutate: func(f *fixture, order *vaa.FastMarketOrder, v *vaa.VAA) {
				v.Timestamp = uint32(f.now - VaaAuctionExpiration)
			},
			price:   maxFee,
			wantErr: ErrFastMarketOrderExpired,
		},
		{
			name: "unknown emitter",
			mutate: func(f *fixture, order *vaa.FastMarketOrder, v *vaa.VAA) {
				v.EmitterAddress[0] = 0x01
			},
			price:   maxFee,
			wantErr: ErrInvalidSourceRouter,
		},
		{
			name: "unknown target",
			mutate: func(f *fixture, order *vaa.FastMarketOrder, v *vaa.VAA) {
				order.TargetChain = 30
			},
			price:   maxFee,
			wantErr: ErrInvalidTargetRouter,
		},
		{
			name:    "stale config",
			price:   maxFee,
			config:  1,
			wantErr: ErrAuctionConfigMismatch,
		},
		{
			name: "not a fast order",
			mutate: func(f *fixture, order *vaa.FastMarketOrder, v *vaa.VAA) {
				v.Payload = (&vaa.SlowOrderResponse{BaseFee: 1}).Marshal()
			},
			price:   maxFee,
			wantErr: ErrNotFastMarketOrder,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := testOrder(amountIn, maxFee, avalancheChain)
			fast := f.fastVaa(2, order)
			if tt.mutate != nil {
				tt.mutate(f, order, fast)
				if fast.PayloadID() == vaa.FastMarketOrderID {
					fast.Payload = order.Marshal()
				}
			}
			payer, token := f.bidder(totalDeposit)
			_, err := f.ledger.PlaceInitialOffer(f.env(payer), fast, tt.config, tt.price, token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, totalDeposit, f.ledger.bank.Balance(token))
			_, ok := f.ledger.Auction(fast.Digest())
			assert.False(t, ok)
		})
	}
}

func TestPlaceInitialOfferPausedOrDisabled(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	payer, token := f.bidder(totalDeposit)

	require.NoError(t, f.ledger.SetPause(f.env(f.assistant), true))
	_, err := f.ledger.PlaceInitialOffer(f.env(payer), fast, 0, maxFee, token)
	assert.ErrorIs(t, err, ErrPaused)
	require.NoError(t, f.ledger.SetPause(f.env(f.owner), false))

	require.NoError(t, f.ledger.DisableRouterEndpoint(f.env(f.owner), avalancheChain))
	_, err = f.ledger.PlaceInitialOffer(f.env(payer), fast, 0, maxFee, token)
	assert.ErrorIs(t, err, ErrEndpointDisabled)
}

func TestPlaceInitialOfferInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	payer, token := f.bidder(totalDeposit - 1)
	_, err := f.ledger.PlaceInitialOffer(f.env(payer), fast, 0, maxFee, token)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	_, ok := f.ledger.Auction(fast.Digest())
	assert.False(t, ok)
}

// An improvement must undercut the best offer by MinOfferDeltaBps (5%):
// from 5_000 the highest acceptable offer is 4_750.
func TestImproveOfferRequiresMinDelta(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	hash := fast.Digest()
	first, firstToken := f.bidder(totalDeposit)
	_, err := f.ledger.PlaceInitialOffer(f.env(first), fast, 0, 5_000, firstToken)
	require.NoError(t, err)
	params := testParams()
	assert.Equal(t, uint64(4_750), MaxImprovedOffer(&params, 5_000))

	second, secondToken := f.bidder(totalDeposit)
	f.slot++
	_, err = f.ledger.ImproveOffer(f.env(second), hash, 0, 4_760, secondToken)
	assert.ErrorIs(t, err, ErrCarpingNotAllowed)
	assert.Equal(t, totalDeposit, f.ledger.bank.Balance(secondToken))

	auction, err := f.ledger.ImproveOffer(f.env(second), hash, 0, 4_000, secondToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_000), auction.Info.OfferPrice)
	assert.Equal(t, secondToken, auction.Info.BestOfferToken)
	assert.Equal(t, firstToken, auction.Info.InitialOfferToken)
	assert.Equal(t, first, auction.PreparedBy)

	// the superseded bidder is refunded directly, custody is untouched
	assert.Equal(t, totalDeposit, f.ledger.bank.Balance(firstToken))
	assert.Equal(t, uint64(0), f.ledger.bank.Balance(secondToken))
	assert.Equal(t, totalDeposit, f.ledger.bank.Balance(f.custody(fast)))
}

func TestImproveOfferPricesAreMonotone(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	hash := fast.Digest()
	payer, token := f.bidder(totalDeposit)
	_, err := f.ledger.PlaceInitialOffer(f.env(payer), fast, 0, maxFee, token)
	require.NoError(t, err)

	params := testParams()
	prices := []uint64{maxFee}
	for i := 0; i < 5; i++ {
		bidder, bidderToken := f.bidder(totalDeposit)
		next := MaxImprovedOffer(&params, prices[len(prices)-1])
		auction, err := f.ledger.ImproveOffer(f.env(bidder), hash, 0, next, bidderToken)
		require.NoError(t, err)
		prices = append(prices, auction.Info.OfferPrice)
	}
	for i := 1; i < len(prices); i++ {
		assert.Less(t, prices[i], prices[i-1])
	}
}

func TestImproveOfferAfterAuctionPeriod(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	payer, token := f.bidder(totalDeposit)
	_, err := f.ledger.PlaceInitialOffer(f.env(payer), fast, 0, maxFee, token)
	require.NoError(t, err)

	f.slot += uint64(testParams().Duration)
	bidder, bidderToken := f.bidder(totalDeposit)
	_, err = f.ledger.ImproveOffer(f.env(bidder), fast.Digest(), 0, 1_000, bidderToken)
	assert.ErrorIs(t, err, ErrAuctionPeriodExpired)

	_, err = f.ledger.ImproveOffer(f.env(bidder), [32]byte{1}, 0, 1_000, bidderToken)
	assert.ErrorIs(t, err, ErrAuctionNotFound)
}

func TestExecuteFastOrderWithinGrace(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	payer, token := f.bidder(totalDeposit)
	_, err := f.ledger.PlaceInitialOffer(f.env(payer), fast, 0, maxFee, token)
	require.NoError(t, err)

	executor, executorToken := f.bidder(0)
	f.slot += 9
	_, _, err = f.ledger.ExecuteFastOrder(f.env(executor), fast, executorToken)
	assert.ErrorIs(t, err, ErrAuctionPeriodNotExpired)

	// past the auction period but inside the grace period
	f.slot += 3
	auction, receipt, err := f.ledger.ExecuteFastOrder(f.env(executor), fast, executorToken)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, auction.Status.Kind)
	assert.Nil(t, auction.Status.ExecutePenalty)
	assert.Equal(t, f.slot, auction.Status.Slot)

	userAmount := amountIn - maxFee - 100
	assert.Equal(t, userAmount, receipt.Amount)
	assert.Equal(t, CctpProtocol(1), receipt.Protocol)
	assert.Equal(t, userAmount, f.ledger.bank.Balance(f.ledger.routers.Cctp.Burned))
	assert.Equal(t, maxFee+maxFee+deposit+100, f.ledger.bank.Balance(token))
	assert.Equal(t, uint64(0), f.ledger.bank.Balance(executorToken))
	assert.Equal(t, uint64(0), f.ledger.bank.Balance(f.custody(fast)))

	_, _, err = f.ledger.ExecuteFastOrder(f.env(executor), fast, executorToken)
	assert.ErrorIs(t, err, ErrAuctionNotActive)
}

// Executed 20 slots after start with a 15 slot grace period: five late
// slots out of a 20 slot penalty period.
func TestExecuteFastOrderLatePenalty(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	best, bestToken := f.bidder(totalDeposit)
	_, err := f.ledger.PlaceInitialOffer(f.env(best), fast, 0, maxFee, bestToken)
	require.NoError(t, err)

	executor, executorToken := f.bidder(0)
	f.slot += 20
	auction, receipt, err := f.ledger.ExecuteFastOrder(f.env(executor), fast, executorToken)
	require.NoError(t, err)

	const (
		penalty    = uint64(575) // ceil(2_300 * 5 / 20)
		userReward = uint64(143)
	)
	require.NotNil(t, auction.Status.ExecutePenalty)
	assert.Equal(t, penalty, *auction.Status.ExecutePenalty)
	assert.Equal(t, amountIn-maxFee-100+userReward, receipt.Amount)
	assert.Equal(t, penalty-userReward, f.ledger.bank.Balance(executorToken))
	assert.Equal(t, maxFee+maxFee+deposit-penalty+100, f.ledger.bank.Balance(bestToken))
	assert.Equal(t, uint64(0), f.ledger.bank.Balance(f.custody(fast)))
}

func TestExecuteFastOrderLocal(t *testing.T) {
	f := newFixture(t)
	order := testOrder(amountIn, maxFee, solanaChain)
	fast := f.fastVaa(2, order)
	best, bestToken := f.bidder(totalDeposit)
	_, err := f.ledger.PlaceInitialOffer(f.env(best), fast, 0, 3_000, bestToken)
	require.NoError(t, err)

	f.slot += 10
	executor, executorToken := f.bidder(0)
	_, receipt, err := f.ledger.ExecuteFastOrder(f.env(executor), fast, executorToken)
	require.NoError(t, err)
	assert.Equal(t, ProtocolLocal, receipt.Protocol.Kind)
	require.Len(t, f.ledger.routers.Local.Fills, 1)

	redeemer := solana.PublicKeyFromBytes(order.Redeemer[:])
	assert.Equal(t, amountIn-3_000-100, f.ledger.bank.Balance(redeemer))
	fill := vaa.Fill{SourceChain: ethereumChain, OrderSender: order.Sender, Redeemer: order.Redeemer}
	assert.Equal(t, fill.Marshal(), receipt.Payload)
}

func TestDepositPenalty(t *testing.T) {
	params := testParams()
	info := &AuctionInfo{StartSlot: 100, SecurityDeposit: deposit}

	penalty, reward := ComputeDepositPenalty(&params, info, 115)
	assert.Zero(t, penalty)
	assert.Zero(t, reward)

	last := uint64(0)
	for slot := uint64(116); slot <= 140; slot++ {
		penalty, reward = ComputeDepositPenalty(&params, info, slot)
		assert.Greater(t, penalty, uint64(0))
		assert.GreaterOrEqual(t, penalty, last)
		assert.LessOrEqual(t, reward, penalty)
		last = penalty
	}
	assert.Equal(t, uint64(2_300), last)
}

func TestNotionalSecurityDeposit(t *testing.T) {
	params := testParams()
	got, err := ComputeNotionalSecurityDeposit(&params, amountIn)
	require.NoError(t, err)
	assert.Equal(t, deposit, got)

	params.SecurityDepositBase = ^uint64(0)
	_, err = ComputeNotionalSecurityDeposit(&params, amountIn)
	assert.ErrorIs(t, err, ErrU64Overflow)
}
