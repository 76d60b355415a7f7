package attestation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Wormscan struct {
	client
}

func NewWormscan(base string, rps float64, timeout time.Duration, logger *zap.SugaredLogger) *Wormscan {
	return &Wormscan{client: newClient(strings.TrimRight(base, "/"), rps, timeout, logger)}
}

type wormscanResponse struct {
	Data *struct {
		TxHash string `json:"txHash"`
	} `json:"data"`
}

// TxHash returns the 0x-prefixed hash of the source transaction that emitted
// the VAA with wormholescan id chain/emitter/sequence.
func (w *Wormscan) TxHash(ctx context.Context, id string) (string, error) {
	var resp wormscanResponse
	if err := w.get(ctx, "/"+id, &resp); err != nil {
		return "", err
	}
	if resp.Data == nil || resp.Data.TxHash == "" {
		return "", fmt.Errorf("%w: no tx hash for %s", ErrNotFound, id)
	}
	hash := resp.Data.TxHash
	if !strings.HasPrefix(hash, "0x") {
		hash = "0x" + hash
	}
	return hash, nil
}
