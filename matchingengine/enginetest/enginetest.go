// Package enginetest sets up an initialized LocalChain with registered
// routers, and builds orders against it.
package enginetest

import (
	"testing"

	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/egaotan/fast-transfer-solver/program"
	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

const (
	SolanaChain    = uint16(1)
	EthereumChain  = uint16(2)
	AvalancheChain = uint16(6)
	StartTime      = int64(1_700_000_000)
	StartSlot      = uint64(100)
	// AvalancheDomain is the CCTP domain of AvalancheChain.
	AvalancheDomain = uint32(1)
)

func Params() matchingengine.AuctionParameters {
	return matchingengine.AuctionParameters{
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

type Env struct {
	Chain        *matchingengine.LocalChain
	Ixs          *matchingengine.Instructions
	Owner        solana.PublicKey
	FeeRecipient solana.PublicKey
	SourceRouter [32]byte
	sequence     uint64
}

func New(t testing.TB) *Env {
	ledger := matchingengine.NewLedger(program.MatchingEngine, SolanaChain)
	e := &Env{
		Chain: matchingengine.NewLocalChain(ledger, program.USDC),
		Ixs:   matchingengine.NewInstructions(program.MatchingEngine),
		Owner: solana.NewWallet().PublicKey(),
	}
	e.SourceRouter[31] = 0xee
	e.Chain.SetTime(StartTime)
	e.Chain.Advance(StartSlot, 0)
	e.FeeRecipient = e.Chain.CreateTokenAccount(solana.NewWallet().PublicKey(), 0)

	var mintRecipient, avalancheRouter [32]byte
	mintRecipient[0] = 0x11
	avalancheRouter[31] = 0xaa
	e.Chain.Do(func(ledger *matchingengine.Ledger, env matchingengine.Env) {
		env.Signer = e.Owner
		require.NoError(t, ledger.Initialize(env, solana.NewWallet().PublicKey(), e.FeeRecipient, Params()))
		_, err := ledger.AddCctpRouterEndpoint(env, EthereumChain, 0, e.SourceRouter, mintRecipient)
		require.NoError(t, err)
		_, err = ledger.AddCctpRouterEndpoint(env, AvalancheChain, AvalancheDomain, avalancheRouter, mintRecipient)
		require.NoError(t, err)
		_, err = ledger.AddLocalRouterEndpoint(env, program.TokenRouter, solana.NewWallet().PublicKey())
		require.NoError(t, err)
	})
	return e
}

// Wallet creates a funded payer and its token account.
func (e *Env) Wallet(lamports, tokens uint64) (solana.PrivateKey, solana.PublicKey) {
	key := solana.NewWallet().PrivateKey
	e.Chain.Airdrop(key.PublicKey(), lamports)
	return key, e.Chain.CreateTokenAccount(key.PublicKey(), tokens)
}

// FastOrder returns a fast order VAA from the registered ethereum router,
// stamped with the chain's current time. Sequences are even so that the
// paired finalized VAA can sit one below.
func (e *Env) FastOrder(amountIn, maxFee uint64, targetChain uint16) *vaa.VAA {
	e.sequence += 2
	order := &vaa.FastMarketOrder{
		AmountIn:       amountIn,
		TargetChain:    targetChain,
		MaxFee:         maxFee,
		InitAuctionFee: 100,
	}
	order.Redeemer[0] = 0x42
	order.Sender[0] = 0x43
	var now int64
	e.Chain.Do(func(_ *matchingengine.Ledger, env matchingengine.Env) {
		now = env.UnixTimestamp
	})
	return &vaa.VAA{
		Version:          1,
		Timestamp:        uint32(now),
		EmitterChain:     EthereumChain,
		EmitterAddress:   e.SourceRouter,
		Sequence:         e.sequence,
		ConsistencyLevel: 200,
		Payload:          order.Marshal(),
	}
}

// Finalized returns the slow order VAA paired with fast, and the CCTP
// message its deposit was burned with.
func (e *Env) Finalized(fast *vaa.VAA, baseFee uint64) (*vaa.VAA, *vaa.Deposit, []byte) {
	order, err := vaa.ParseFastMarketOrder(fast.Payload)
	if err != nil {
		panic(err)
	}
	deposit := &vaa.Deposit{
		Amount:                order.AmountIn,
		SourceCctpDomain:      0,
		DestinationCctpDomain: 5,
		CctpNonce:             fast.Sequence * 10,
		Payload:               (&vaa.SlowOrderResponse{BaseFee: baseFee}).Marshal(),
	}
	finalized := &vaa.VAA{
		Version:          1,
		Timestamp:        fast.Timestamp,
		EmitterChain:     fast.EmitterChain,
		EmitterAddress:   fast.EmitterAddress,
		Sequence:         fast.Sequence - 1,
		ConsistencyLevel: 1,
		Payload:          deposit.Marshal(),
	}
	msg := &matchingengine.CctpMessage{
		SourceDomain:      deposit.SourceCctpDomain,
		DestinationDomain: deposit.DestinationCctpDomain,
		Nonce:             deposit.CctpNonce,
		Body:              []byte("burn"),
	}
	return finalized, deposit, msg.Marshal()
}

// Auction reads the ledger's auction for fast.
func (e *Env) Auction(fast *vaa.VAA) (*matchingengine.Auction, bool) {
	var (
		auction *matchingengine.Auction
		ok      bool
	)
	e.Chain.Do(func(ledger *matchingengine.Ledger, _ matchingengine.Env) {
		auction, ok = ledger.Auction(fast.Digest())
	})
	return auction, ok
}

func (e *Env) Balance(token solana.PublicKey) uint64 {
	var amount uint64
	e.Chain.Do(func(ledger *matchingengine.Ledger, _ matchingengine.Env) {
		amount = ledger.Bank().Balance(token)
	})
	return amount
}
