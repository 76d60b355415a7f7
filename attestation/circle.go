package attestation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

const pendingAttestation = "PENDING"

// Message is a burn message and the attestation that lets it be received.
type Message struct {
	Message     []byte
	Attestation []byte
	EventNonce  uint64
}

type Circle struct {
	client
}

func NewCircle(base string, rps float64, timeout time.Duration, logger *zap.SugaredLogger) *Circle {
	return &Circle{client: newClient(strings.TrimRight(base, "/"), rps, timeout, logger)}
}

type circleResponse struct {
	Messages []struct {
		Message     string `json:"message"`
		Attestation string `json:"attestation"`
		EventNonce  string `json:"eventNonce"`
	} `json:"messages"`
}

// Messages lists the CCTP messages burned by txHash on sourceDomain. Any
// message still waiting for its attestation fails the whole call with
// ErrPending.
func (c *Circle) Messages(ctx context.Context, sourceDomain uint32, txHash string) ([]*Message, error) {
	var resp circleResponse
	if err := c.get(ctx, fmt.Sprintf("/v1/messages/%d/%s", sourceDomain, txHash), &resp); err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, fmt.Errorf("%w: no cctp messages for %s", ErrNotFound, txHash)
	}
	messages := make([]*Message, 0, len(resp.Messages))
	for i, m := range resp.Messages {
		if m.Attestation == "" || m.Attestation == pendingAttestation {
			return nil, fmt.Errorf("%w: message %d of %s", ErrPending, i, txHash)
		}
		if m.Message == "" || m.EventNonce == "" {
			return nil, fmt.Errorf("invalid message %d of %s", i, txHash)
		}
		body, err := hexutil.Decode(m.Message)
		if err != nil {
			return nil, fmt.Errorf("message %d of %s: %w", i, txHash, err)
		}
		attestation, err := hexutil.Decode(m.Attestation)
		if err != nil {
			return nil, fmt.Errorf("attestation %d of %s: %w", i, txHash, err)
		}
		nonce, err := strconv.ParseUint(m.EventNonce, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("event nonce %d of %s: %w", i, txHash, err)
		}
		messages = append(messages, &Message{Message: body, Attestation: attestation, EventNonce: nonce})
	}
	return messages, nil
}

// FindByNonce returns the message with the given CCTP nonce, or nil.
func FindByNonce(messages []*Message, nonce uint64) *Message {
	for _, m := range messages {
		if m.EventNonce == nonce {
			return m
		}
	}
	return nil
}
