// Package attestation reads the two public services a finalized order needs
// before it can settle: Wormholescan for the source transaction and Circle's
// Iris API for the CCTP message and its attestation.
package attestation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrNotFound = errors.New("not found")
	ErrPending  = errors.New("attestation pending")
)

type client struct {
	logger  *zap.SugaredLogger
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

func newClient(base string, rps float64, timeout time.Duration, logger *zap.SugaredLogger) client {
	return client{
		logger:  logger,
		http:    &http.Client{Timeout: timeout},
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// get waits for the limiter, then decodes a JSON GET of base+path into out.
func (c *client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	url := c.base + path
	c.logger.Debugw("fetching", "url", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d from %s: %s", resp.StatusCode, url, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
