package feed

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case payload, ok := <-ch:
		require.True(t, ok, "channel closed")
		return payload
	case <-time.After(time.Second):
		t.Fatal("no message")
		return nil
	}
}

func TestLocalFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := NewLocal(zap.NewNop().Sugar())
	defer f.Close()

	// published before anybody listens
	require.NoError(t, f.Publish("fastOrder", []byte{1}))

	fast, err := f.Subscribe(ctx, "fastOrder")
	require.NoError(t, err)
	finalized, err := f.Subscribe(ctx, "finalizedOrder")
	require.NoError(t, err)

	require.NoError(t, f.Publish("fastOrder", []byte{2}))
	require.NoError(t, f.Publish("finalizedOrder", []byte{3}))

	assert.Equal(t, []byte{1}, receive(t, fast))
	assert.Equal(t, []byte{2}, receive(t, fast))
	assert.Equal(t, []byte{3}, receive(t, finalized))

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-fast:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestAccountUpdate(t *testing.T) {
	u := &AccountUpdate{Slot: 77, Address: solana.NewWallet().PublicKey(), Data: []byte{9, 8, 7}}
	encoded := u.Encode()
	assert.Len(t, encoded, 43)
	assert.Equal(t, byte(77), encoded[0])

	decoded, err := DecodeAccountUpdate(encoded)
	require.NoError(t, err)
	assert.Equal(t, u, decoded)

	closed, err := DecodeAccountUpdate((&AccountUpdate{Slot: 1, Address: u.Address}).Encode())
	require.NoError(t, err)
	assert.Empty(t, closed.Data)

	_, err = DecodeAccountUpdate(encoded[:20])
	assert.Error(t, err)
}

func TestPublishAccount(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := NewLocal(zap.NewNop().Sugar())
	defer f.Close()
	updates, err := f.Subscribe(ctx, "auctionUpdate")
	require.NoError(t, err)

	u := &AccountUpdate{Slot: 5, Address: solana.NewWallet().PublicKey(), Data: []byte{1}}
	require.NoError(t, f.PublishAccount("auctionUpdate", u))
	decoded, err := DecodeAccountUpdate(receive(t, updates))
	require.NoError(t, err)
	assert.Equal(t, u, decoded)
}
