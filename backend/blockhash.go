package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

var ErrNoBlockhash = errors.New("no recent blockhash")

const (
	blockhashRing = 3
	noiseRange    = 1000
)

// BlockhashCache keeps the last few recent blockhashes. One goroutine
// refreshes it while any number of senders read.
type BlockhashCache struct {
	logger   *zap.SugaredLogger
	source   BlockhashSource
	ticks    int
	interval time.Duration

	mu     sync.RWMutex
	hashes []solana.Hash
	noise  atomic.Uint64
}

func NewBlockhashCache(source BlockhashSource, ticks int, interval time.Duration, logger *zap.SugaredLogger) *BlockhashCache {
	return &BlockhashCache{
		logger:   logger,
		source:   source,
		ticks:    ticks,
		interval: interval,
		hashes:   make([]solana.Hash, blockhashRing),
	}
}

// Run refreshes once, then every ticks*interval until ctx is done.
func (c *BlockhashCache) Run(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warnw("refresh blockhash", "err", err)
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	count := 0
	for {
		select {
		case <-ticker.C:
			count++
			if count < c.ticks && !c.Latest().IsZero() {
				continue
			}
			count = 0
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warnw("refresh blockhash", "err", err)
			}
		case <-ctx.Done():
			c.logger.Infow("blockhash cache exit")
			return nil
		}
	}
}

func (c *BlockhashCache) Refresh(ctx context.Context) error {
	hash, err := c.source.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hashes[blockhashRing-1] == hash {
		return nil
	}
	c.hashes = append(c.hashes[1:], hash)
	c.logger.Debugw("receive blockhash", "hash", hash)
	return nil
}

// Latest returns the newest hash, zero before the first refresh.
func (c *BlockhashCache) Latest() solana.Hash {
	return c.Get(0)
}

// Get returns the hash level refreshes back.
func (c *BlockhashCache) Get(level int) solana.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if level < 0 || level >= blockhashRing {
		return solana.Hash{}
	}
	return c.hashes[blockhashRing-1-level]
}

// Noise returns a value that differs from the previous call.
func (c *BlockhashCache) Noise() uint64 {
	return c.noise.Add(1) % noiseRange
}
