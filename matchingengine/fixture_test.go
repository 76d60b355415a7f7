package matchingengine

import (
	"testing"

	"github.com/egaotan/fast-transfer-solver/program"
	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

const (
	solanaChain    = uint16(1)
	ethereumChain  = uint16(2)
	avalancheChain = uint16(6)
	startTime      = int64(1_700_000_000)
)

func testParams() AuctionParameters {
	return AuctionParameters{
		UserPenaltyRewardBps: 250_000,
		InitialPenaltyBps:    250_000,
		Duration:             10,
		GracePeriod:          15,
		PenaltyPeriod:        20,
		MinOfferDeltaBps:     50_000,
		SecurityDepositBase:  4_200,
		SecurityDepositBps:   5_000,
	}
}

type fixture struct {
	t            *testing.T
	ledger       *Ledger
	owner        solana.PublicKey
	assistant    solana.PublicKey
	feeRecipient solana.PublicKey
	sourceRouter [32]byte
	slot         uint64
	now          int64
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:            t,
		ledger:       NewLedger(program.MatchingEngine, solanaChain),
		owner:        newKey(),
		assistant:    newKey(),
		feeRecipient: newKey(),
		slot:         100,
		now:          startTime,
	}
	f.sourceRouter[31] = 0xee
	require.NoError(t, f.ledger.Initialize(f.env(f.owner), f.assistant, f.feeRecipient, testParams()))

	var mintRecipient, avalancheRouter [32]byte
	mintRecipient[0] = 0x11
	avalancheRouter[31] = 0xaa
	_, err := f.ledger.AddCctpRouterEndpoint(f.env(f.owner), ethereumChain, 0, f.sourceRouter, mintRecipient)
	require.NoError(t, err)
	_, err = f.ledger.AddCctpRouterEndpoint(f.env(f.assistant), avalancheChain, 1, avalancheRouter, mintRecipient)
	require.NoError(t, err)
	_, err = f.ledger.AddLocalRouterEndpoint(f.env(f.owner), program.TokenRouter, newKey())
	require.NoError(t, err)
	return f
}

func (f *fixture) env(signer solana.PublicKey) Env {
	return Env{Slot: f.slot, UnixTimestamp: f.now, Signer: signer}
}

func testOrder(amountIn, maxFee uint64, targetChain uint16) *vaa.FastMarketOrder {
	o := &vaa.FastMarketOrder{
		AmountIn:       amountIn,
		TargetChain:    targetChain,
		MaxFee:         maxFee,
		InitAuctionFee: 100,
	}
	o.Redeemer[0] = 0x42
	o.Sender[0] = 0x43
	return o
}

func (f *fixture) fastVaa(sequence uint64, order *vaa.FastMarketOrder) *vaa.VAA {
	return &vaa.VAA{
		Version:          1,
		Timestamp:        uint32(f.now),
		EmitterChain:     ethereumChain,
		EmitterAddress:   f.sourceRouter,
		Sequence:         sequence,
		ConsistencyLevel: 200,
		Payload:          order.Marshal(),
	}
}

// finalized returns the slow order VAA paired with fast and the CCTP
// message it was burned with.
func (f *fixture) finalized(fast *vaa.VAA, amount, baseFee uint64) (*vaa.VAA, []byte) {
	deposit := &vaa.Deposit{
		Amount:                amount,
		SourceCctpDomain:      0,
		DestinationCctpDomain: 5,
		CctpNonce:             fast.Sequence * 10,
		Payload:               (&vaa.SlowOrderResponse{BaseFee: baseFee}).Marshal(),
	}
	v := &vaa.VAA{
		Version:          1,
		Timestamp:        fast.Timestamp,
		EmitterChain:     fast.EmitterChain,
		EmitterAddress:   fast.EmitterAddress,
		Sequence:         fast.Sequence - 1,
		ConsistencyLevel: 1,
		Payload:          deposit.Marshal(),
	}
	msg := &CctpMessage{SourceDomain: 0, DestinationDomain: 5, Nonce: deposit.CctpNonce, Body: []byte("burn")}
	return v, msg.Marshal()
}

// bidder returns a wallet and its token account funded with amount.
func (f *fixture) bidder(amount uint64) (solana.PublicKey, solana.PublicKey) {
	wallet := newKey()
	token := newKey()
	f.ledger.bank.Mint(token, amount)
	f.ledger.bank.Airdrop(wallet, 1_000_000_000)
	return wallet, token
}

func (f *fixture) custody(fast *vaa.VAA) solana.PublicKey {
	return f.ledger.addresses.AuctionCustodyToken(f.ledger.addresses.Auction(fast.Digest()))
}
