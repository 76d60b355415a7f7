package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/egaotan/fast-transfer-solver/config"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"
)

// Sender submits signed transactions.
type Sender interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction, skipPreflight bool) (solana.Signature, error)
}

type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// AccountFetcher reads one account. Missing accounts give nil data and no
// error.
type AccountFetcher interface {
	GetAccountData(ctx context.Context, key solana.PublicKey) ([]byte, uint64, error)
}

// Chain is everything the solver reads from and writes to the cluster.
// Backend implements it against an RPC node, matchingengine.LocalChain in
// process.
type Chain interface {
	Sender
	BlockhashSource
	AccountFetcher
	GetSlot(ctx context.Context) (uint64, error)
	GetBalance(ctx context.Context, wallet solana.PublicKey) (uint64, error)
}

type Backend struct {
	logger     *zap.SugaredLogger
	rpcClient  *rpc.Client
	wsClient   *ws.Client
	commitment rpc.CommitmentType
	hashNodes  []*rpc.Client
	hashIndex  int
}

func NewBackend(ctx context.Context, cfg *config.SolanaConfig, logger *zap.SugaredLogger) (*Backend, error) {
	backend := &Backend{
		logger:     logger,
		rpcClient:  rpc.New(cfg.Rpc),
		commitment: rpc.CommitmentType(cfg.Commitment),
	}
	if cfg.Ws != "" {
		wsClient, err := ws.Connect(ctx, cfg.Ws)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", cfg.Ws, err)
		}
		backend.wsClient = wsClient
	}
	backend.hashNodes = append(backend.hashNodes, backend.rpcClient)
	for _, node := range cfg.BlockhashNodes {
		backend.hashNodes = append(backend.hashNodes, rpc.New(node))
	}
	return backend, nil
}

func (backend *Backend) Close() {
	if backend.wsClient != nil {
		backend.wsClient.Close()
	}
	if err := backend.rpcClient.Close(); err != nil {
		backend.logger.Warnw("close rpc client", "err", err)
	}
}

func (backend *Backend) GetSlot(ctx context.Context) (uint64, error) {
	return backend.rpcClient.GetSlot(ctx, backend.commitment)
}

func (backend *Backend) GetBalance(ctx context.Context, wallet solana.PublicKey) (uint64, error) {
	out, err := backend.rpcClient.GetBalance(ctx, wallet, backend.commitment)
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

// GetLatestBlockhash asks each configured node in turn until one answers.
func (backend *Backend) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var err error
	for i := 0; i < len(backend.hashNodes); i++ {
		var out *rpc.GetLatestBlockhashResult
		out, err = backend.hashNodes[backend.hashIndex].GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err == nil && out.Value != nil {
			return out.Value.Blockhash, nil
		}
		if err == nil {
			err = errors.New("empty blockhash result")
		}
		backend.logger.Warnw("get latest blockhash", "node", backend.hashIndex, "err", err)
		backend.hashIndex = (backend.hashIndex + 1) % len(backend.hashNodes)
	}
	return solana.Hash{}, fmt.Errorf("all blockhash nodes failed: %w", err)
}

func (backend *Backend) GetAccountData(ctx context.Context, key solana.PublicKey) ([]byte, uint64, error) {
	out, err := backend.rpcClient.GetAccountInfoWithOpts(ctx, key, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: backend.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return out.GetBinary(), out.Context.Slot, nil
}

func (backend *Backend) SendTransaction(ctx context.Context, tx *solana.Transaction, skipPreflight bool) (solana.Signature, error) {
	maxRetries := uint(0)
	return backend.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       skipPreflight,
		PreflightCommitment: backend.commitment,
		MaxRetries:          &maxRetries,
	})
}
