package balancelisten

import (
	"context"
	"fmt"
	"time"

	"github.com/egaotan/fast-transfer-solver/backend"
	"github.com/egaotan/fast-transfer-solver/spltoken"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	lamportsPerSol = decimal.NewFromInt(1_000_000_000)
	tokenUnit      = decimal.NewFromInt(1_000_000)
)

// Balance is a payer's native and settlement token holdings.
type Balance struct {
	Owner    solana.PublicKey
	Token    solana.PublicKey
	Lamports uint64
	Tokens   uint64
	Slot     uint64
}

type Callback interface {
	OnBalance(balance *Balance)
}

type CallbackFunc func(balance *Balance)

func (fn CallbackFunc) OnBalance(balance *Balance) { fn(balance) }

type Source interface {
	backend.AccountFetcher
	GetBalance(ctx context.Context, wallet solana.PublicKey) (uint64, error)
}

// BalanceListen polls the payers' wallets and token accounts and reports
// every change.
type BalanceListen struct {
	logger   *zap.SugaredLogger
	source   Source
	mint     solana.PublicKey
	owners   []solana.PublicKey
	interval time.Duration
	cb       Callback
	last     map[solana.PublicKey]Balance
}

func NewBalanceListen(source Source, mint solana.PublicKey, owners []solana.PublicKey, interval time.Duration, cb Callback, logger *zap.SugaredLogger) *BalanceListen {
	return &BalanceListen{
		logger:   logger,
		source:   source,
		mint:     mint,
		owners:   owners,
		interval: interval,
		cb:       cb,
		last:     make(map[solana.PublicKey]Balance),
	}
}

func (bl *BalanceListen) Run(ctx context.Context) error {
	bl.Refresh(ctx)
	ticker := time.NewTicker(bl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			bl.Refresh(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Refresh fetches every owner once. Failed owners are skipped until the
// next round.
func (bl *BalanceListen) Refresh(ctx context.Context) {
	for _, owner := range bl.owners {
		balance, err := bl.fetch(ctx, owner)
		if err != nil {
			bl.logger.Warnw("fetch payer balance", "payer", owner, "err", err)
			continue
		}
		bl.notify(balance)
	}
}

func (bl *BalanceListen) fetch(ctx context.Context, owner solana.PublicKey) (*Balance, error) {
	lamports, err := bl.source.GetBalance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("lamports: %w", err)
	}
	token := spltoken.AssociatedTokenAddress(owner, bl.mint)
	data, slot, err := bl.source.GetAccountData(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("token account %s: %w", token, err)
	}
	balance := &Balance{Owner: owner, Token: token, Lamports: lamports, Slot: slot}
	if data != nil {
		user, err := spltoken.DecodeUser(data)
		if err != nil {
			return nil, fmt.Errorf("token account %s: %w", token, err)
		}
		balance.Tokens = user.Amount
	}
	return balance, nil
}

func (bl *BalanceListen) notify(balance *Balance) {
	old, seen := bl.last[balance.Owner]
	if seen && old.Lamports == balance.Lamports && old.Tokens == balance.Tokens {
		return
	}
	bl.last[balance.Owner] = *balance

	tokens := decimal.NewFromInt(int64(balance.Tokens)).Div(tokenUnit)
	diff := decimal.Zero
	if seen {
		diff = tokens.Sub(decimal.NewFromInt(int64(old.Tokens)).Div(tokenUnit))
	}
	bl.logger.Infow("payer balance update",
		"payer", balance.Owner,
		"slot", balance.Slot,
		"sol", decimal.NewFromInt(int64(balance.Lamports)).Div(lamportsPerSol).StringFixed(4),
		"tokens", tokens.StringFixed(2),
		"diff", diff.StringFixed(2),
	)
	bl.cb.OnBalance(balance)
}
