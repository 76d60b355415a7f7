// Command publisher pushes a hex encoded VAA onto a feed topic, for driving
// a solver by hand.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/egaotan/fast-transfer-solver/feed"
	"github.com/egaotan/fast-transfer-solver/utils"
	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/redis/go-redis/v9"
)

func main() {
	redisAddr := flag.String("redis", "127.0.0.1:6379", "redis address")
	topic := flag.String("topic", "fastOrder", "feed topic")
	file := flag.String("file", "", "file holding the hex encoded vaa")
	flag.Parse()

	if err := run(*redisAddr, *topic, *file); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(redisAddr, topic, file string) error {
	logger := utils.NewLog("", "publisher")
	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	payload, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
	if err != nil {
		return fmt.Errorf("decode %s: %w", file, err)
	}
	v, err := vaa.Parse(payload)
	if err != nil {
		return err
	}
	bus, err := feed.NewRedis(redis.NewClient(&redis.Options{Addr: redisAddr}), "publisher", logger)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()
	if err := bus.Publish(topic, payload); err != nil {
		return err
	}
	digest := v.Digest()
	logger.Infow("published", "topic", topic, "id", v.ID(), "digest", hex.EncodeToString(digest[:]))
	return nil
}
