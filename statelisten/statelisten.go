package statelisten

import (
	"bytes"
	"context"

	"github.com/egaotan/fast-transfer-solver/backend"
	"github.com/egaotan/fast-transfer-solver/feed"
	"github.com/egaotan/fast-transfer-solver/matchingengine"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

type Subscriber interface {
	SubscribeProgram(ctx context.Context, programID solana.PublicKey, cb backend.AccountCallback) error
}

type Publisher interface {
	PublishAccount(topic string, u *feed.AccountUpdate) error
}

// StateListen watches the matching engine's accounts and republishes every
// auction account change onto a feed topic.
type StateListen struct {
	logger    *zap.SugaredLogger
	sub       Subscriber
	pub       Publisher
	programID solana.PublicKey
	topic     string
}

func NewStateListen(sub Subscriber, pub Publisher, programID solana.PublicKey, topic string, logger *zap.SugaredLogger) *StateListen {
	return &StateListen{
		logger:    logger,
		sub:       sub,
		pub:       pub,
		programID: programID,
		topic:     topic,
	}
}

func (sl *StateListen) Run(ctx context.Context) error {
	sl.logger.Infow("listening to auctions", "program", sl.programID, "topic", sl.topic)
	return sl.sub.SubscribeProgram(ctx, sl.programID, backend.AccountFunc(sl.OnAccountUpdate))
}

// OnAccountUpdate forwards auction snapshots, and closed accounts so that
// subscribers can drop the auctions they mirror.
func (sl *StateListen) OnAccountUpdate(account *backend.Account) {
	if len(account.Data) > 0 && !IsAuction(account.Data) {
		return
	}
	u := &feed.AccountUpdate{Slot: account.Slot, Address: account.Address, Data: account.Data}
	if err := sl.pub.PublishAccount(sl.topic, u); err != nil {
		sl.logger.Warnw("publish auction", "address", account.Address, "slot", account.Slot, "err", err)
	}
}

func IsAuction(data []byte) bool {
	d := matchingengine.AuctionDiscriminator
	return len(data) >= len(d) && bytes.Equal(data[:len(d)], d[:])
}
