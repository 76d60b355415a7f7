// Package dingsdk posts operator alerts to a DingTalk robot webhook.
package dingsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const queueSize = 64

type DingContent struct {
	Content string `json:"content"`
}

type DingAt struct {
	IsAtAll bool `json:"isAtAll"`
}

type DingNotify struct {
	MsgType string      `json:"msgtype"`
	Text    DingContent `json:"text"`
	At      DingAt      `json:"at"`
}

type DingResult struct {
	ErrCode int64  `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// DingSdk queues alerts and sends them from Run, at most one every
// interval, so that callers never wait on the webhook.
type DingSdk struct {
	logger  *zap.SugaredLogger
	url     string
	prefix  string
	client  *http.Client
	limiter *rate.Limiter
	queue   chan string
}

func NewDingSdk(url, prefix string, interval time.Duration, logger *zap.SugaredLogger) *DingSdk {
	return &DingSdk{
		logger:  logger,
		url:     url,
		prefix:  prefix,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		queue:   make(chan string, queueSize),
	}
}

// Alert drops text when the queue is full.
func (sdk *DingSdk) Alert(text string) {
	select {
	case sdk.queue <- text:
	default:
		sdk.logger.Warnw("alert queue full, dropped", "text", text)
	}
}

func (sdk *DingSdk) Run(ctx context.Context) error {
	for {
		select {
		case text := <-sdk.queue:
			if err := sdk.limiter.Wait(ctx); err != nil {
				return nil
			}
			notify := &DingNotify{
				MsgType: "text",
				Text:    DingContent{Content: sdk.prefix + text},
			}
			if _, err := sdk.Notify(ctx, notify); err != nil {
				sdk.logger.Warnw("ding notify", "err", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (sdk *DingSdk) Notify(ctx context.Context, notify *DingNotify) (*DingResult, error) {
	body, err := json.Marshal(notify)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sdk.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accepts", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := sdk.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("response status code: %d", resp.StatusCode)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	dingResult := new(DingResult)
	if err := json.Unmarshal(respBody, dingResult); err != nil {
		return nil, err
	}
	if dingResult.ErrCode != 0 || dingResult.ErrMsg != "ok" {
		return nil, fmt.Errorf("code: %d, err: %s", dingResult.ErrCode, dingResult.ErrMsg)
	}
	return dingResult, nil
}
