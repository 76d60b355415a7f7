package backend

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoWebsocket = errors.New("no websocket endpoint configured")

type SlotCallback interface {
	OnSlotUpdate(slot uint64)
}

type SlotFunc func(slot uint64)

func (fn SlotFunc) OnSlotUpdate(slot uint64) { fn(slot) }

// SubscribeSlot delivers every processed slot to cb until ctx is done or the
// subscription fails.
func (backend *Backend) SubscribeSlot(ctx context.Context, cb SlotCallback) error {
	if backend.wsClient == nil {
		return ErrNoWebsocket
	}
	sub, err := backend.wsClient.SlotSubscribe()
	if err != nil {
		return fmt.Errorf("slot subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	for {
		got, err := sub.Recv(ctx)
		if ctx.Err() != nil {
			backend.logger.Infow("slot subscription exit")
			return nil
		}
		if err != nil {
			return fmt.Errorf("recv slot: %w", err)
		}
		if got == nil {
			return errors.New("slot subscription closed")
		}
		cb.OnSlotUpdate(got.Slot)
	}
}
