package backend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SubmitOpts struct {
	SkipPreflight bool
	Retries       int
	RetryDelay    time.Duration
}

// Result is the outcome of one Submit. Err is nil when a transaction was
// accepted by the node.
type Result struct {
	ID        string
	Kind      OpKind
	Payer     solana.PublicKey
	Signature solana.Signature
	Attempts  int
	SentAt    time.Time
	Elapsed   time.Duration
	Err       error
}

// Rejected reports whether the ledger refused the transaction.
func (r *Result) Rejected() bool {
	return r.Err != nil && matchingengine.IsRejection(r.Err)
}

type Pipeline struct {
	logger    *zap.SugaredLogger
	sender    Sender
	blockhash *BlockhashCache
	wallets   *Wallets
}

func NewPipeline(sender Sender, blockhash *BlockhashCache, wallets *Wallets, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		logger:    logger,
		sender:    sender,
		blockhash: blockhash,
		wallets:   wallets,
	}
}

// Submit prefixes ixs with the compute budget for kind, signs with payer and
// sends. Without SkipPreflight a failed send is retried up to opts.Retries
// times unless the ledger rejected it.
func (p *Pipeline) Submit(ctx context.Context, kind OpKind, payer solana.PublicKey, ixs []solana.Instruction, opts SubmitOpts) *Result {
	result := &Result{
		ID:     uuid.NewString(),
		Kind:   kind,
		Payer:  payer,
		SentAt: time.Now(),
	}
	defer func() {
		result.Elapsed = time.Since(result.SentAt)
	}()
	logger := p.logger.With("id", result.ID, "kind", kind.String(), "payer", payer)

	tries := 1
	if !opts.SkipPreflight && opts.Retries > 0 {
		tries += opts.Retries
	}
	for result.Attempts < tries {
		if result.Attempts > 0 {
			select {
			case <-time.After(opts.RetryDelay):
			case <-ctx.Done():
				result.Err = ctx.Err()
				return result
			}
		}
		result.Attempts++
		sig, err := p.send(ctx, kind, payer, ixs, opts.SkipPreflight)
		if err == nil {
			result.Signature = sig
			result.Err = nil
			logger.Infow("transaction sent", "signature", sig, "attempts", result.Attempts)
			return result
		}
		result.Err = err
		if matchingengine.IsRejection(err) {
			logger.Infow("transaction rejected", "err", err)
			return result
		}
		if !retryable(err) {
			logger.Warnw("transaction failed", "err", err)
			return result
		}
		logger.Warnw("send transaction", "attempt", result.Attempts, "err", err)
	}
	return result
}

func (p *Pipeline) send(ctx context.Context, kind OpKind, payer solana.PublicKey, ixs []solana.Instruction, skipPreflight bool) (solana.Signature, error) {
	blockhash := p.blockhash.Latest()
	if blockhash.IsZero() {
		if err := p.blockhash.Refresh(ctx); err != nil {
			return solana.Signature{}, fmt.Errorf("%w: %v", ErrNoBlockhash, err)
		}
		blockhash = p.blockhash.Latest()
	}
	all := append(ComputeBudgetInstructions(kind, p.blockhash.Noise()), ixs...)
	tx, err := BuildTransaction(all, blockhash, payer, p.wallets)
	if err != nil {
		return solana.Signature{}, err
	}
	sig, err := p.sender.SendTransaction(ctx, tx, skipPreflight)
	if err != nil {
		return solana.Signature{}, Classify(err)
	}
	return sig, nil
}

func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrTransactionTooLarge), errors.Is(err, ErrBuildTransaction), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

var customErrorPattern = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// Classify maps a node error carrying a custom program error code onto the
// ledger rejection it stands for. Other errors come back unchanged.
func Classify(err error) error {
	if err == nil || matchingengine.IsRejection(err) {
		return err
	}
	m := customErrorPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	code, perr := strconv.ParseUint(m[1], 16, 32)
	if perr != nil {
		return err
	}
	if rejection := matchingengine.RejectionFromCode(uint32(code)); rejection != nil {
		return fmt.Errorf("%w: %v", rejection, err)
	}
	return err
}
