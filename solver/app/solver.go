package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/badgerodon/collections/queue"
	"github.com/egaotan/fast-transfer-solver/backend"
	"github.com/egaotan/fast-transfer-solver/balancelisten"
	"github.com/egaotan/fast-transfer-solver/config"
	"github.com/egaotan/fast-transfer-solver/feed"
	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/egaotan/fast-transfer-solver/monitor"
	"github.com/egaotan/fast-transfer-solver/pricing"
	"github.com/egaotan/fast-transfer-solver/spltoken"
	"github.com/egaotan/fast-transfer-solver/store"
	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	// KnownOrderTTL is how long a fast order is remembered after it was
	// first seen.
	KnownOrderTTL = time.Duration(matchingengine.VaaAuctionExpiration) * time.Second
	// MaxSettleAttempts bounds the requeues of one settlement.
	MaxSettleAttempts = 10
)

// Alerter raises operator alerts. It must not block.
type Alerter interface {
	Alert(text string)
}

// Tracker follows a fast order until its finalized VAA can be settled.
type Tracker interface {
	Track(order *TrackedOrder)
}

type Deps struct {
	Chain    backend.Chain
	Pipeline *backend.Pipeline
	Tracker  Tracker
	Pricing  pricing.Table
	// Store and Alerter are optional.
	Store   *store.Store
	Alerter Alerter
	Metrics *monitor.Metrics
}

type offerFire struct {
	hash  [32]byte
	gen   uint64
	price uint64
}

// Solver bids on fast order auctions, executes the ones it wins and settles
// them once finalized. Every field below the channels is owned by the Run
// goroutine; other goroutines reach it through post.
type Solver struct {
	ctx      context.Context
	logger   *zap.SugaredLogger
	cfg      *config.SolverConfig
	chain    backend.Chain
	pipeline *backend.Pipeline
	tracker  Tracker
	pricing  pricing.Table
	store    *store.Store
	alerter  Alerter
	metrics  *monitor.Metrics
	ixs      *matchingengine.Instructions
	local    uint16
	retry    time.Duration
	now      func() time.Time

	fastChan    chan *vaa.VAA
	auctionChan chan *feed.AccountUpdate
	slotChan    chan uint64
	balanceChan chan *balancelisten.Balance
	settleChan  chan *SettlementReady
	fireChan    chan *offerFire
	doneChan    chan func()
	statusChan  chan chan *monitor.Status

	recognized  map[solana.PublicKey]bool
	payers      *Payers
	throttle    *backend.Throttle
	known       *KnownOrders
	candidates  *Candidates
	generations *Generations
	cctpQueue   *ExecutionQueue
	localQueue  *ExecutionQueue
	settlements *queue.Queue
	reclaims    map[[32]byte]*reclaim

	slot    uint64
	slotAt  time.Time
	loading bool

	custodian     *matchingengine.Custodian
	configs       map[uint32]*matchingengine.AuctionParameters
	fetching      map[uint32]bool
	waitingConfig map[uint32][]*feed.AccountUpdate

	auctions    map[[32]byte]*matchingengine.Auction
	auctionData map[[32]byte][]byte
	auctionKeys map[solana.PublicKey][32]byte

	deferred         []*KnownOrder
	deferredSet      map[[32]byte]bool
	checkingDeferred bool
}

func NewSolver(ctx context.Context, cfg *config.Config, deps Deps, logger *zap.SugaredLogger) (*Solver, error) {
	programID, err := cfg.MatchingEngine()
	if err != nil {
		return nil, err
	}
	mint, err := cfg.Mint()
	if err != nil {
		return nil, err
	}
	owners, err := cfg.KnownAtaOwners()
	if err != nil {
		return nil, err
	}
	keys, err := cfg.PayerKeys()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.New("no payer keys")
	}
	if deps.Metrics == nil {
		deps.Metrics = monitor.NewMetrics("", prometheus.NewRegistry())
	}
	s := &Solver{
		ctx:      ctx,
		logger:   logger,
		cfg:      &cfg.Solver,
		chain:    deps.Chain,
		pipeline: deps.Pipeline,
		tracker:  deps.Tracker,
		pricing:  deps.Pricing,
		store:    deps.Store,
		alerter:  deps.Alerter,
		metrics:  deps.Metrics,
		ixs:      matchingengine.NewInstructions(programID),
		local:    cfg.Solana.Chain,
		retry:    cfg.Attestation.RequeueDelay,
		now:      time.Now,

		fastChan:    make(chan *vaa.VAA, 64),
		auctionChan: make(chan *feed.AccountUpdate, 256),
		slotChan:    make(chan uint64, 64),
		balanceChan: make(chan *balancelisten.Balance, 16),
		settleChan:  make(chan *SettlementReady, 16),
		fireChan:    make(chan *offerFire, 64),
		doneChan:    make(chan func(), 256),
		statusChan:  make(chan chan *monitor.Status),

		recognized:  make(map[solana.PublicKey]bool),
		throttle:    backend.NewThrottle(cfg.Solana.MaxTransactionsPerSecond),
		known:       NewKnownOrders(),
		candidates:  NewCandidates(),
		generations: NewGenerations(),
		cctpQueue:   NewExecutionQueue(),
		localQueue:  NewExecutionQueue(),
		settlements: queue.New(),
		reclaims:    make(map[[32]byte]*reclaim),

		configs:       make(map[uint32]*matchingengine.AuctionParameters),
		fetching:      make(map[uint32]bool),
		waitingConfig: make(map[uint32][]*feed.AccountUpdate),
		auctions:      make(map[[32]byte]*matchingengine.Auction),
		auctionData:   make(map[[32]byte][]byte),
		auctionKeys:   make(map[solana.PublicKey][32]byte),
		deferredSet:   make(map[[32]byte]bool),
	}
	payerKeys := make([]solana.PublicKey, 0, len(keys))
	payerTokens := make([]solana.PublicKey, 0, len(keys))
	for _, key := range keys {
		token := spltoken.AssociatedTokenAddress(key.PublicKey(), mint)
		payerKeys = append(payerKeys, key.PublicKey())
		payerTokens = append(payerTokens, token)
		s.recognized[token] = true
	}
	for _, owner := range owners {
		s.recognized[spltoken.AssociatedTokenAddress(owner, mint)] = true
	}
	s.payers = NewPayers(payerKeys, payerTokens, cfg.Payers.MinLamports, cfg.Payers.MinTokens)
	return s, nil
}

// Payers returns the owners whose balances the solver needs to observe.
func (s *Solver) Payers() []solana.PublicKey {
	keys := make([]solana.PublicKey, 0, len(s.payers.payers))
	for _, payer := range s.payers.payers {
		keys = append(keys, payer.Key)
	}
	return keys
}

func (s *Solver) alert(format string, args ...interface{}) {
	if s.alerter != nil {
		s.alerter.Alert(fmt.Sprintf(format, args...))
	}
}

func orderID(hash [32]byte) string {
	return solana.PublicKey(hash).String()
}

// OnFastVaa takes a raw fast order VAA off the feed.
func (s *Solver) OnFastVaa(raw []byte) {
	v, err := vaa.Parse(raw)
	if err != nil {
		s.logger.Warnw("parse fast vaa", "err", err)
		return
	}
	select {
	case s.fastChan <- v:
	case <-s.ctx.Done():
	}
}

// OnAuctionUpdate takes an auction account snapshot off the feed.
func (s *Solver) OnAuctionUpdate(u *feed.AccountUpdate) {
	select {
	case s.auctionChan <- u:
	case <-s.ctx.Done():
	}
}

// OnSlotUpdate never blocks; a slot dropped while the loop is busy is
// superseded by the next.
func (s *Solver) OnSlotUpdate(slot uint64) {
	select {
	case s.slotChan <- slot:
	default:
	}
}

func (s *Solver) OnBalance(balance *balancelisten.Balance) {
	select {
	case s.balanceChan <- balance:
	case <-s.ctx.Done():
	}
}

func (s *Solver) OnSettlementReady(ready *SettlementReady) {
	select {
	case s.settleChan <- ready:
	case <-s.ctx.Done():
	}
}

// post runs fn on the loop.
func (s *Solver) post(fn func()) {
	select {
	case s.doneChan <- fn:
	case <-s.ctx.Done():
	}
}

// Status answers from the loop, so it reflects a consistent snapshot.
func (s *Solver) Status(ctx context.Context) (*monitor.Status, error) {
	reply := make(chan *monitor.Status, 1)
	select {
	case s.statusChan <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, fmt.Errorf("solver stopped: %w", s.ctx.Err())
	}
	select {
	case status := <-reply:
		return status, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Solver) Run() error {
	s.logger.Infow("solver start", "payers", len(s.payers.payers), "recognized", len(s.recognized))
	s.loadSlot()
	s.loadCustodian()
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case v := <-s.fastChan:
			s.onFastVaa(v)
		case u := <-s.auctionChan:
			s.onAuctionUpdate(u)
		case slot := <-s.slotChan:
			s.onSlot(slot)
		case balance := <-s.balanceChan:
			s.onBalance(balance)
		case ready := <-s.settleChan:
			s.settlements.Enqueue(&settleJob{ready: ready})
		case fire := <-s.fireChan:
			s.onOfferFire(fire)
		case fn := <-s.doneChan:
			fn()
		case reply := <-s.statusChan:
			reply <- s.status()
		case <-ticker.C:
			s.tick()
		case <-s.ctx.Done():
			s.logger.Infow("solver exit", "known", s.known.Len(), "candidates", s.candidates.Len(),
				"inFlight", s.throttle.InFlight())
			return nil
		}
	}
}

func (s *Solver) onSlot(slot uint64) {
	if slot <= s.slot {
		return
	}
	s.slot = slot
	s.slotAt = s.now()
	s.metrics.Slot.Set(float64(slot))
	s.candidates.ExpiredAuctions(slot, s.cctpQueue, s.localQueue)
}

func (s *Solver) loadSlot() {
	go func() {
		slot, err := s.chain.GetSlot(s.ctx)
		if err != nil {
			s.logger.Warnw("get slot", "err", err)
			return
		}
		s.post(func() { s.onSlot(slot) })
	}()
}

func (s *Solver) onBalance(balance *balancelisten.Balance) {
	payer, changed := s.payers.Observe(balance.Owner, balance.Lamports, balance.Tokens)
	if payer == nil {
		return
	}
	if changed {
		s.logger.Infow("payer availability changed", "payer", payer.Key, "enabled", payer.Enabled,
			"lamports", balance.Lamports, "tokens", balance.Tokens)
	}
	s.metrics.PayersEnabled.Set(float64(s.payers.Enabled()))
}

func (s *Solver) pendingExecutions() int {
	return s.cctpQueue.Len() + s.localQueue.Len()
}

func (s *Solver) tick() {
	if s.custodian == nil && !s.loading {
		s.loadCustodian()
	}
	for id, parked := range s.waitingConfig {
		if len(parked) > 0 && !s.fetching[id] {
			s.fetchConfig(id)
		}
	}
	s.candidates.ExpiredAuctions(s.slot, s.cctpQueue, s.localQueue)
	s.executeDue()
	s.settleDue()
	s.retryDeferred()
	s.trackUnauctioned()
	s.reclaimDue()
	for _, hash := range s.known.Prune(s.now(), KnownOrderTTL) {
		s.forgetAuction(hash)
	}
	s.metrics.InFlight.Set(float64(s.throttle.InFlight()))
	s.metrics.ActiveAuctions.Set(float64(s.candidates.Len()))
}

func (s *Solver) status() *monitor.Status {
	return &monitor.Status{
		Slot:           s.slot,
		KnownOrders:    s.known.Len(),
		Candidates:     s.candidates.Len(),
		Deferred:       len(s.deferred),
		InFlight:       s.throttle.InFlight(),
		PendingExecute: s.pendingExecutions(),
		Payers:         s.payers.Status(),
	}
}

// send submits one transaction and records its outcome. It runs off the
// loop; the caller has reserved the throttle slot.
func (s *Solver) send(kind backend.OpKind, payer *Payer, hash [32]byte, ixs []solana.Instruction, opts backend.SubmitOpts) *backend.Result {
	res := s.pipeline.Submit(s.ctx, kind, payer.Key, ixs, opts)
	status := "ok"
	switch {
	case res.Rejected():
		status = "rejected"
	case res.Err != nil:
		status = "failed"
	}
	s.metrics.Transactions.WithLabelValues(kind.String(), status).Inc()
	s.metrics.SubmitLatency.WithLabelValues(kind.String()).Observe(res.Elapsed.Seconds())
	if s.store != nil {
		record := &store.SubmittedTransaction{
			Id:        res.ID,
			Kind:      kind.String(),
			OrderHash: orderID(hash),
			Payer:     payer.Key.String(),
			Attempts:  res.Attempts,
			SentAt:    res.SentAt,
			ElapsedMs: res.Elapsed.Milliseconds(),
		}
		if res.Err == nil {
			record.Signature = res.Signature.String()
		} else {
			record.Error = res.Err.Error()
		}
		s.store.StoreSubmittedTransaction(record)
	}
	return res
}

// spawn runs fn off the loop holding n throttle slots, released on return.
func (s *Solver) spawn(n int, fn func()) {
	s.throttle.Enqueue(n)
	go func() {
		defer s.post(func() { s.throttle.Done(n) })
		fn()
	}()
}

func (s *Solver) fetchAuction(hash [32]byte) (*matchingengine.Auction, error) {
	data, _, err := s.chain.GetAccountData(s.ctx, s.ixs.Addresses().Auction(hash))
	if err != nil || data == nil {
		return nil, err
	}
	return matchingengine.DecodeAuction(data)
}
