package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/egaotan/fast-transfer-solver/attestation"
	"github.com/egaotan/fast-transfer-solver/backend"
	"github.com/egaotan/fast-transfer-solver/balancelisten"
	"github.com/egaotan/fast-transfer-solver/config"
	"github.com/egaotan/fast-transfer-solver/feed"
	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/egaotan/fast-transfer-solver/matchingengine/enginetest"
	"github.com/egaotan/fast-transfer-solver/monitor"
	"github.com/egaotan/fast-transfer-solver/pricing"
	"github.com/egaotan/fast-transfer-solver/program"
	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitFor = 5 * time.Second

// attestations serves wormholescan and circle lookups for every finalized
// VAA registered with it.
type attestations struct {
	*httptest.Server
	mu       sync.Mutex
	txHashes map[string]string
	messages map[string]string
}

func newAttestations(t *testing.T) *attestations {
	a := &attestations{txHashes: make(map[string]string), messages: make(map[string]string)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vaas/", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		txHash, ok := a.txHashes[strings.TrimPrefix(r.URL.Path, "/api/v1/vaas/")]
		a.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprintf(w, `{"data":{"txHash":"%s"}}`, txHash)
	})
	mux.HandleFunc("/v1/messages/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		a.mu.Lock()
		body, ok := a.messages[parts[len(parts)-1]]
		a.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	a.Server = httptest.NewServer(mux)
	t.Cleanup(a.Close)
	return a
}

func (a *attestations) register(finalized *vaa.VAA, deposit *vaa.Deposit, message []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	txHash := fmt.Sprintf("0x%064x", finalized.Sequence)
	a.txHashes[finalized.ID()] = txHash
	a.messages[txHash] = fmt.Sprintf(`{"messages":[{"message":"0x%s","attestation":"0x%s","eventNonce":"%d"}]}`,
		hex.EncodeToString(message), hex.EncodeToString(make([]byte, 130)), deposit.CctpNonce)
}

type harness struct {
	env        *enginetest.Env
	solver     *Solver
	reconciler *Reconciler
	att        *attestations
	payer      solana.PrivateKey
	token      solana.PublicKey
	clock      atomic.Int64
	ctx        context.Context
	cancel     context.CancelFunc
}

func testConfig(payer solana.PrivateKey) *config.Config {
	return &config.Config{
		Solana: config.SolanaConfig{
			MatchingEngine:           program.MatchingEngine.String(),
			Mint:                     program.USDC.String(),
			Chain:                    enginetest.SolanaChain,
			MaxTransactionsPerSecond: 20,
		},
		Payers: config.PayersConfig{
			Keys:        []string{payer.String()},
			MinLamports: 1,
			MinTokens:   1,
		},
		Solver: config.SolverConfig{
			PlaceInitialOffer:    true,
			ImproveOffer:         true,
			ExecuteCctp:          true,
			ExecuteLocal:         true,
			SlotDuration:         10 * time.Millisecond,
			SendBuffer:           5 * time.Millisecond,
			TickInterval:         5 * time.Millisecond,
			Retries:              1,
			RetryDelay:           5 * time.Millisecond,
			ExecuteRetryDelay:    20 * time.Millisecond,
			MaxExecutionAttempts: 3,
		},
		Attestation: config.AttestationConfig{RequeueDelay: 20 * time.Millisecond},
	}
}

// newHarness wires a solver to a local chain. The solver's clock follows
// the harness clock, which starts at the chain's start time.
func newHarness(t *testing.T, mutate func(cfg *config.Config)) *harness {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger := zap.NewNop().Sugar()
	h := &harness{env: enginetest.New(t), att: newAttestations(t), ctx: ctx, cancel: cancel}
	h.clock.Store(enginetest.StartTime)
	h.payer, h.token = h.env.Wallet(1_000_000_000, 10_000_000)

	cfg := testConfig(h.payer)
	if mutate != nil {
		mutate(cfg)
	}
	table, err := pricing.NewTable([]config.PricingConfig{
		{Chain: enginetest.EthereumChain, RollbackRisk: "0.0005", OfferEdge: "0.1"},
	})
	require.NoError(t, err)
	metrics := monitor.NewMetrics("", prometheus.NewRegistry())
	cache := backend.NewBlockhashCache(h.env.Chain, 32, time.Second, logger)
	require.NoError(t, cache.Refresh(ctx))
	pipeline := backend.NewPipeline(h.env.Chain, cache, backend.NewWallets([]solana.PrivateKey{h.payer}), logger)

	h.reconciler = NewReconciler(ctx,
		attestation.NewWormscan(h.att.URL+"/api/v1/vaas", 100, time.Second, logger),
		attestation.NewCircle(h.att.URL, 100, time.Second, logger),
		nil, metrics, 5*time.Millisecond, 20*time.Millisecond, logger)
	h.solver, err = NewSolver(ctx, cfg, Deps{
		Chain:    h.env.Chain,
		Pipeline: pipeline,
		Tracker:  h.reconciler,
		Pricing:  table,
		Metrics:  metrics,
	}, logger)
	require.NoError(t, err)
	h.solver.now = func() time.Time { return time.Unix(h.clock.Load(), 0) }
	h.reconciler.SetSink(h.solver)

	h.env.Chain.OnAccountUpdate(func(u matchingengine.AccountUpdate) {
		h.solver.OnAuctionUpdate(&feed.AccountUpdate{Slot: u.Slot, Address: u.Address, Data: u.Data})
	})
	h.env.Chain.OnSlot(h.solver.OnSlotUpdate)
	return h
}

// start runs the solver, the reconciler and the balance poller until the
// test ends.
func (h *harness) start(t *testing.T) {
	logger := zap.NewNop().Sugar()
	balances := balancelisten.NewBalanceListen(h.env.Chain, program.USDC, h.solver.Payers(),
		10*time.Millisecond, h.solver, logger)
	var wg sync.WaitGroup
	for _, run := range []func() error{
		h.solver.Run,
		h.reconciler.Run,
		func() error { return balances.Run(h.ctx) },
	} {
		wg.Add(1)
		go func(run func() error) {
			defer wg.Done()
			_ = run()
		}(run)
	}
	t.Cleanup(func() {
		h.cancel()
		wg.Wait()
	})

	require.Eventually(t, func() bool {
		status, err := h.solver.Status(h.ctx)
		return err == nil && status.Slot == enginetest.StartSlot && len(status.Payers) == 1 && status.Payers[0].Enabled
	}, waitFor, 5*time.Millisecond)
}

func (h *harness) finalize(fast *vaa.VAA, baseFee uint64) {
	finalized, deposit, message := h.env.Finalized(fast, baseFee)
	h.att.register(finalized, deposit, message)
	h.reconciler.OnFinalizedVaa(finalized.Marshal())
}

func (h *harness) waitAuction(t *testing.T, fast *vaa.VAA, cond func(a *matchingengine.Auction) bool) *matchingengine.Auction {
	var auction *matchingengine.Auction
	require.Eventually(t, func() bool {
		a, ok := h.env.Auction(fast)
		if !ok || !cond(a) {
			return false
		}
		auction = a
		return true
	}, waitFor, 5*time.Millisecond)
	return auction
}

func TestSolverWinsExecutesSettlesAndReclaims(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	fast := h.env.FastOrder(1_000_000, 5_000, enginetest.AvalancheChain)
	h.solver.OnFastVaa(fast.Marshal())

	auction := h.waitAuction(t, fast, func(a *matchingengine.Auction) bool {
		return a.Info != nil && a.Info.BestOfferToken == h.token
	})
	assert.Equal(t, uint64(5_000), auction.Info.OfferPrice)
	assert.Equal(t, h.payer.PublicKey(), auction.PreparedBy)

	h.env.Chain.Advance(10, 0.4)
	h.waitAuction(t, fast, func(a *matchingengine.Auction) bool {
		return a.Status.Kind == matchingengine.StatusCompleted
	})

	h.finalize(fast, 1_000)
	h.waitAuction(t, fast, func(a *matchingengine.Auction) bool {
		return a.Status.Kind == matchingengine.StatusSettled
	})

	expiry := enginetest.StartTime + matchingengine.VaaAuctionExpiration
	h.env.Chain.SetTime(expiry)
	h.clock.Store(expiry)
	require.Eventually(t, func() bool {
		_, ok := h.env.Auction(fast)
		return !ok
	}, waitFor, 5*time.Millisecond)
}

// Nobody bids when there is no pricing for the source chain; the order is
// settled without an auction once its finalized VAA shows up.
func TestSolverSettlesOrdersNobodyBidOn(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Solver.PlaceInitialOffer = false
	})
	h.start(t)

	fast := h.env.FastOrder(1_000_000, 5_000, enginetest.AvalancheChain)
	h.solver.OnFastVaa(fast.Marshal())
	require.Eventually(t, func() bool {
		status, err := h.solver.Status(h.ctx)
		return err == nil && status.KnownOrders == 1
	}, waitFor, 5*time.Millisecond)

	h.env.Chain.Advance(uint64(enginetest.Params().GracePeriod), 0.4)
	h.finalize(fast, 1_000)

	auction := h.waitAuction(t, fast, func(a *matchingengine.Auction) bool {
		return a.Status.Kind == matchingengine.StatusSettled
	})
	assert.Nil(t, auction.Info)
	assert.Greater(t, h.env.Balance(h.env.FeeRecipient), uint64(0))
}

// A competitor's offer is improved by the minimum step.
func TestSolverImprovesForeignOffer(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Solver.PlaceInitialOffer = false
	})
	h.start(t)

	fast := h.env.FastOrder(1_000_000, 5_000, enginetest.AvalancheChain)
	competitor, competitorToken := h.env.Wallet(1_000_000_000, 10_000_000)
	params := enginetest.Params()
	ix, err := h.env.Ixs.PlaceInitialOffer(competitor.PublicKey(), competitorToken, 0, fast, 5_000)
	require.NoError(t, err)
	blockhash, err := h.env.Chain.GetLatestBlockhash(h.ctx)
	require.NoError(t, err)
	tx, err := backend.BuildTransaction([]solana.Instruction{ix}, blockhash, competitor.PublicKey(),
		backend.NewWallets([]solana.PrivateKey{competitor}))
	require.NoError(t, err)
	_, err = h.env.Chain.SendTransaction(h.ctx, tx, false)
	require.NoError(t, err)

	auction := h.waitAuction(t, fast, func(a *matchingengine.Auction) bool {
		return a.Info != nil && a.Info.BestOfferToken == h.token
	})
	assert.Equal(t, matchingengine.MaxImprovedOffer(&params, 5_000), auction.Info.OfferPrice)
	assert.Equal(t, competitorToken, auction.Info.InitialOfferToken)
}

// An improvement scheduled before the auction was observed again is
// dropped.
func TestSolverSkipsStaleSend(t *testing.T) {
	h := newHarness(t, nil)
	s := h.solver
	var hash [32]byte
	hash[0] = 7
	params := enginetest.Params()
	s.configs[0] = &params
	s.slot = enginetest.StartSlot
	s.payers.Observe(h.payer.PublicKey(), 1_000_000_000, 10_000_000)
	s.auctions[hash] = &matchingengine.Auction{
		VaaHash: hash,
		Status:  matchingengine.AuctionStatus{Kind: matchingengine.StatusActive},
		Info: &matchingengine.AuctionInfo{
			StartSlot:      enginetest.StartSlot,
			AmountIn:       1_000_000,
			OfferPrice:     5_000,
			BestOfferToken: solana.NewWallet().PublicKey(),
		},
	}
	stale := s.generations.Bump(hash)
	current := s.generations.Bump(hash)

	s.onOfferFire(&offerFire{hash: hash, gen: stale, price: 4_750})
	assert.Equal(t, 0, s.throttle.InFlight())

	s.onOfferFire(&offerFire{hash: hash, gen: current, price: 4_750})
	assert.Equal(t, 1, s.throttle.InFlight())
}

// Repeated deliveries of a settled snapshot leave an in-flight reclaim alone.
func TestSolverIgnoresRepeatedSettledSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	s := h.solver
	s.payers.Observe(h.payer.PublicKey(), 1_000_000_000, 10_000_000)
	var hash [32]byte
	hash[0] = 9
	u := &feed.AccountUpdate{
		Slot:    enginetest.StartSlot,
		Address: solana.NewWallet().PublicKey(),
		Data: matchingengine.EncodeAuction(&matchingengine.Auction{
			VaaHash:      hash,
			VaaTimestamp: uint32(enginetest.StartTime),
			Status:       matchingengine.Settled(1_000, nil),
			PreparedBy:   h.payer.PublicKey(),
		}),
	}

	s.onAuctionUpdate(u)
	r, ok := s.reclaims[hash]
	require.True(t, ok)
	r.busy = true

	s.onAuctionUpdate(u)
	assert.Same(t, r, s.reclaims[hash])
	assert.True(t, s.reclaims[hash].busy)

	s.onAuctionUpdate(&feed.AccountUpdate{Slot: enginetest.StartSlot + 1, Address: u.Address})
	assert.NotContains(t, s.reclaims, hash)
	assert.NotContains(t, s.auctionData, hash)
}
