package statelisten

import (
	"context"
	"testing"
	"time"

	"github.com/egaotan/fast-transfer-solver/backend"
	"github.com/egaotan/fast-transfer-solver/feed"
	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/egaotan/fast-transfer-solver/program"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestRepublishesAuctions(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	f := feed.NewLocal(zap.NewNop().Sugar())
	defer f.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := f.Subscribe(ctx, "auctionUpdate")
	require.NoError(t, err)

	sl := NewStateListen(nil, f, program.MatchingEngine, "auctionUpdate", logger)
	auction := &matchingengine.Auction{Status: matchingengine.Active()}
	auction.VaaHash[0] = 7
	data := matchingengine.EncodeAuction(auction)
	address := solana.NewWallet().PublicKey()

	sl.OnAccountUpdate(&backend.Account{Address: solana.NewWallet().PublicKey(), Slot: 9, Data: []byte{1, 2, 3}})
	sl.OnAccountUpdate(&backend.Account{Address: address, Slot: 10, Data: data})

	select {
	case payload := <-out:
		u, err := feed.DecodeAccountUpdate(payload)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), u.Slot)
		assert.Equal(t, address, u.Address)
		assert.Equal(t, data, u.Data)
	case <-time.After(5 * time.Second):
		t.Fatal("auction update was not published")
	}
}

func TestIsAuction(t *testing.T) {
	assert.True(t, IsAuction(matchingengine.EncodeAuction(&matchingengine.Auction{})))
	assert.False(t, IsAuction(nil))
	assert.False(t, IsAuction(matchingengine.EncodeCustodian(&matchingengine.Custodian{})))
}
