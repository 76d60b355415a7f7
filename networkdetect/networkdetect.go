package networkdetect

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/go-ping/ping"
	"go.uber.org/zap"
)

const (
	window        = 300
	slowThreshold = 20 * time.Millisecond
	notifyEvery   = 5 * time.Minute
)

// NetworkDetector pings the rpc host and reports a rolling average round
// trip time.
type NetworkDetector struct {
	logger   *zap.SugaredLogger
	host     string
	observe  func(avg time.Duration)
	mu       sync.Mutex
	rtts     []time.Duration
	avgs     []time.Duration
	notified time.Time
	now      func() time.Time
}

// HostOf extracts the bare host from an endpoint url.
func HostOf(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %q", endpoint)
	}
	host := u.Host
	if h, _, err := net.SplitHostPort(u.Host); err == nil {
		host = h
	}
	return host, nil
}

func NewNetworkDetector(endpoint string, observe func(avg time.Duration), logger *zap.SugaredLogger) (*NetworkDetector, error) {
	host, err := HostOf(endpoint)
	if err != nil {
		return nil, err
	}
	return &NetworkDetector{
		logger:  logger,
		host:    host,
		observe: observe,
		now:     time.Now,
	}, nil
}

func (nd *NetworkDetector) Host() string {
	return nd.host
}

func (nd *NetworkDetector) onRecv(rtt time.Duration) {
	nd.mu.Lock()
	nd.rtts = append(nd.rtts, rtt)
	if len(nd.rtts) > window {
		nd.rtts = nd.rtts[len(nd.rtts)-window:]
	}
	sum := time.Duration(0)
	for _, x := range nd.rtts {
		sum += x
	}
	avg := sum / time.Duration(len(nd.rtts))
	nd.avgs = append(nd.avgs, avg)
	if len(nd.avgs) > window {
		nd.avgs = nd.avgs[len(nd.avgs)-window:]
	}
	isLow := false
	for _, x := range nd.avgs {
		if x < slowThreshold {
			isLow = true
			break
		}
	}
	warn := false
	if !isLow && nd.now().Sub(nd.notified) > notifyEvery {
		nd.notified = nd.now()
		warn = true
	}
	nd.mu.Unlock()

	nd.logger.Debugw("ping", "host", nd.host, "avg_ms", avg.Milliseconds())
	if warn {
		nd.logger.Warnw("network latency is too large", "host", nd.host, "avg_ms", avg.Milliseconds())
	}
	if nd.observe != nil {
		nd.observe(avg)
	}
}

func (nd *NetworkDetector) Average() time.Duration {
	nd.mu.Lock()
	defer nd.mu.Unlock()
	if len(nd.avgs) == 0 {
		return 0
	}
	return nd.avgs[len(nd.avgs)-1]
}

// Run pings once a second until ctx is done.
func (nd *NetworkDetector) Run(ctx context.Context) error {
	pinger, err := ping.NewPinger(nd.host)
	if err != nil {
		return fmt.Errorf("pinger %s: %w", nd.host, err)
	}
	pinger.Interval = time.Second
	pinger.OnRecv = func(pkt *ping.Packet) {
		nd.onRecv(pkt.Rtt)
	}
	go func() {
		<-ctx.Done()
		pinger.Stop()
	}()
	if err := pinger.Run(); err != nil {
		return fmt.Errorf("ping %s: %w", nd.host, err)
	}
	return nil
}
