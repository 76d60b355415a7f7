package matchingengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseFee = uint64(1_000)

func TestSettleAuctionComplete(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	hash := fast.Digest()
	best, bestToken := f.bidder(totalDeposit)
	_, err := f.ledger.PlaceInitialOffer(f.env(best), fast, 0, maxFee, bestToken)
	require.NoError(t, err)

	preparer, preparerToken := f.bidder(0)
	finalized, msg := f.finalized(fast, amountIn, baseFee)

	_, err = f.ledger.SettleAuctionComplete(f.env(preparer), hash)
	assert.ErrorIs(t, err, ErrAuctionNotCompleted)

	f.slot += 10
	_, _, err = f.ledger.ExecuteFastOrder(f.env(best), fast, bestToken)
	require.NoError(t, err)
	afterExecute := f.ledger.bank.Balance(bestToken)

	_, err = f.ledger.SettleAuctionComplete(f.env(preparer), hash)
	assert.ErrorIs(t, err, ErrOrderResponseNotPrepared)

	prepared, err := f.ledger.PrepareOrderResponse(f.env(preparer), finalized, fast, msg, preparerToken)
	require.NoError(t, err)
	assert.Equal(t, baseFee, prepared.BaseFee)
	assert.Equal(t, amountIn, prepared.AmountIn)
	assert.Equal(t, preparer, prepared.PreparedBy)

	_, err = f.ledger.PrepareOrderResponse(f.env(preparer), finalized, fast, msg, preparerToken)
	assert.ErrorIs(t, err, ErrOrderResponseAlreadyPrepared)

	auction, err := f.ledger.SettleAuctionComplete(f.env(preparer), hash)
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, auction.Status.Kind)
	assert.Equal(t, baseFee, auction.Status.Fee)
	assert.Nil(t, auction.Status.TotalPenalty)
	assert.Equal(t, baseFee, f.ledger.bank.Balance(preparerToken))
	assert.Equal(t, afterExecute+amountIn-baseFee, f.ledger.bank.Balance(bestToken))

	_, ok := f.ledger.PreparedOrderResponse(hash)
	assert.False(t, ok)

	_, err = f.ledger.SettleAuctionComplete(f.env(preparer), hash)
	assert.ErrorIs(t, err, ErrAuctionAlreadySettled)
}

func TestPrepareOrderResponseMismatch(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(5, testOrder(amountIn, maxFee, avalancheChain))
	preparer, preparerToken := f.bidder(0)

	finalized, msg := f.finalized(fast, amountIn, baseFee)
	finalized.Sequence = 3
	_, err := f.ledger.PrepareOrderResponse(f.env(preparer), finalized, fast, msg, preparerToken)
	assert.ErrorIs(t, err, ErrVaaMismatch)

	finalized, _ = f.finalized(fast, amountIn, baseFee)
	other := &CctpMessage{Nonce: 1}
	_, err = f.ledger.PrepareOrderResponse(f.env(preparer), finalized, fast, other.Marshal(), preparerToken)
	assert.ErrorIs(t, err, ErrCctpNonceMismatch)

	_, err = f.ledger.PrepareOrderResponse(f.env(preparer), fast, fast, msg, preparerToken)
	assert.ErrorIs(t, err, ErrNotSlowOrderResponse)

	_, ok := f.ledger.PreparedOrderResponse(fast.Digest())
	assert.False(t, ok)
}

// Nobody bids: the recipient receives everything but the base fee, which
// the fee recipient collects, and the auction never carries info.
func TestSettleAuctionNone(t *testing.T) {
	f := newFixture(t)
	order := testOrder(amountIn, maxFee, avalancheChain)
	order.InitAuctionFee = 0
	fast := f.fastVaa(2, order)
	hash := fast.Digest()
	preparer, preparerToken := f.bidder(0)
	finalized, msg := f.finalized(fast, amountIn, baseFee)

	_, _, err := f.ledger.SettleAuctionNone(f.env(preparer), fast)
	assert.ErrorIs(t, err, ErrOrderResponseNotPrepared)

	_, err = f.ledger.PrepareOrderResponse(f.env(preparer), finalized, fast, msg, preparerToken)
	require.NoError(t, err)

	auction, receipt, err := f.ledger.SettleAuctionNone(f.env(preparer), fast)
	require.NoError(t, err)
	assert.Nil(t, auction.Info)
	assert.Equal(t, StatusSettled, auction.Status.Kind)
	assert.Equal(t, baseFee, auction.Status.Fee)
	assert.Equal(t, amountIn-baseFee, receipt.Amount)
	assert.Equal(t, baseFee, f.ledger.bank.Balance(f.feeRecipient))
	assert.Equal(t, amountIn-baseFee, f.ledger.bank.Balance(f.ledger.routers.Cctp.Burned))

	stored, ok := f.ledger.Auction(hash)
	require.True(t, ok)
	assert.Nil(t, stored.Info)

	_, _, err = f.ledger.SettleAuctionNone(f.env(preparer), fast)
	assert.ErrorIs(t, err, ErrAuctionAlreadySettled)

	payer, token := f.bidder(totalDeposit)
	_, err = f.ledger.PlaceInitialOffer(f.env(payer), fast, 0, maxFee, token)
	assert.ErrorIs(t, err, ErrAuctionAlreadyExists)
}

func TestSettleAuctionNoneChargesInitAuctionFee(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, solanaChain))
	preparer, preparerToken := f.bidder(0)
	finalized, msg := f.finalized(fast, amountIn, baseFee)
	_, err := f.ledger.PrepareOrderResponse(f.env(preparer), finalized, fast, msg, preparerToken)
	require.NoError(t, err)

	auction, receipt, err := f.ledger.SettleAuctionNone(f.env(preparer), fast)
	require.NoError(t, err)
	assert.Equal(t, baseFee+100, auction.Status.Fee)
	assert.Equal(t, ProtocolLocal, receipt.Protocol.Kind)
	assert.Equal(t, amountIn-baseFee-100, receipt.Amount)
}

func TestSettleAuctionNoneWithLiveAuction(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	payer, token := f.bidder(totalDeposit)
	_, err := f.ledger.PlaceInitialOffer(f.env(payer), fast, 0, maxFee, token)
	require.NoError(t, err)

	_, _, err = f.ledger.SettleAuctionNone(f.env(payer), fast)
	assert.ErrorIs(t, err, ErrAuctionAlreadyExists)
}

func TestCloseAuction(t *testing.T) {
	f := newFixture(t)
	order := testOrder(amountIn, maxFee, avalancheChain)
	fast := f.fastVaa(2, order)
	hash := fast.Digest()
	best, bestToken := f.bidder(totalDeposit)
	_, err := f.ledger.PlaceInitialOffer(f.env(best), fast, 0, maxFee, bestToken)
	require.NoError(t, err)

	assert.ErrorIs(t, f.ledger.CloseAuction(f.env(best), hash), ErrAuctionNotSettled)

	f.slot += 10
	_, _, err = f.ledger.ExecuteFastOrder(f.env(best), fast, bestToken)
	require.NoError(t, err)
	finalized, msg := f.finalized(fast, amountIn, baseFee)
	_, err = f.ledger.PrepareOrderResponse(f.env(best), finalized, fast, msg, bestToken)
	require.NoError(t, err)
	_, err = f.ledger.SettleAuctionComplete(f.env(best), hash)
	require.NoError(t, err)

	assert.ErrorIs(t, f.ledger.CloseAuction(f.env(best), hash), ErrCannotCloseAuctionYet)

	f.now += VaaAuctionExpiration
	stranger, _ := f.bidder(0)
	assert.ErrorIs(t, f.ledger.CloseAuction(f.env(stranger), hash), ErrExecutorNotPreparedBy)

	lamports := f.ledger.bank.Lamports(best)
	require.NoError(t, f.ledger.CloseAuction(f.env(best), hash))
	assert.Equal(t, lamports+AuctionRent, f.ledger.bank.Lamports(best))
	_, ok := f.ledger.Auction(hash)
	assert.False(t, ok)
	assert.ErrorIs(t, f.ledger.CloseAuction(f.env(best), hash), ErrAuctionNotFound)
}

// Rent stays with the initial placer even after another bidder wins.
func TestCloseAuctionRefundsInitialPlacer(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	hash := fast.Digest()
	first, firstToken := f.bidder(totalDeposit)
	placed := f.ledger.bank.Lamports(first)
	_, err := f.ledger.PlaceInitialOffer(f.env(first), fast, 0, 5_000, firstToken)
	require.NoError(t, err)
	assert.Equal(t, placed-AuctionRent, f.ledger.bank.Lamports(first))

	second, secondToken := f.bidder(totalDeposit)
	f.slot++
	auction, err := f.ledger.ImproveOffer(f.env(second), hash, 0, 4_000, secondToken)
	require.NoError(t, err)
	assert.Equal(t, first, auction.PreparedBy)

	f.slot += 10
	_, _, err = f.ledger.ExecuteFastOrder(f.env(second), fast, secondToken)
	require.NoError(t, err)
	finalized, msg := f.finalized(fast, amountIn, baseFee)
	_, err = f.ledger.PrepareOrderResponse(f.env(second), finalized, fast, msg, secondToken)
	require.NoError(t, err)
	_, err = f.ledger.SettleAuctionComplete(f.env(second), hash)
	require.NoError(t, err)

	f.now += VaaAuctionExpiration
	improved := f.ledger.bank.Lamports(second)
	assert.ErrorIs(t, f.ledger.CloseAuction(f.env(second), hash), ErrExecutorNotPreparedBy)
	assert.Equal(t, improved, f.ledger.bank.Lamports(second))

	require.NoError(t, f.ledger.CloseAuction(f.env(first), hash))
	assert.Equal(t, placed, f.ledger.bank.Lamports(first))
}

func TestCctpMessage(t *testing.T) {
	m := &CctpMessage{Version: 0, SourceDomain: 3, DestinationDomain: 5, Nonce: 99, Body: []byte{1, 2}}
	m.Sender[0] = 1
	m.Recipient[1] = 2
	m.DestinationCaller[2] = 3
	parsed, err := ParseCctpMessage(m.Marshal())
	require.NoError(t, err)
	assert.Equal(t, m, parsed)

	_, err = ParseCctpMessage(m.Marshal()[:50])
	assert.Error(t, err)
}

func TestPrepareNeedsRegisteredSource(t *testing.T) {
	f := newFixture(t)
	fast := f.fastVaa(2, testOrder(amountIn, maxFee, avalancheChain))
	fast.EmitterAddress = [32]byte{9}
	finalized, msg := f.finalized(fast, amountIn, baseFee)
	preparer, preparerToken := f.bidder(0)
	_, err := f.ledger.PrepareOrderResponse(f.env(preparer), finalized, fast, msg, preparerToken)
	assert.ErrorIs(t, err, ErrInvalidSourceRouter)
}
