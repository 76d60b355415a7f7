package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/egaotan/fast-transfer-solver/attestation"
	"github.com/egaotan/fast-transfer-solver/backend"
	"github.com/egaotan/fast-transfer-solver/balancelisten"
	"github.com/egaotan/fast-transfer-solver/config"
	"github.com/egaotan/fast-transfer-solver/dingsdk"
	"github.com/egaotan/fast-transfer-solver/feed"
	"github.com/egaotan/fast-transfer-solver/monitor"
	"github.com/egaotan/fast-transfer-solver/networkdetect"
	"github.com/egaotan/fast-transfer-solver/pricing"
	"github.com/egaotan/fast-transfer-solver/solver/app"
	"github.com/egaotan/fast-transfer-solver/statelisten"
	"github.com/egaotan/fast-transfer-solver/store"
	"github.com/egaotan/fast-transfer-solver/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configFile := flag.String("config", "solver.yaml", "config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
	go shutdown(logger, cancel, quit)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorw("solver stopped", "err", err)
		os.Exit(1)
	}
}

func shutdown(logger *zap.SugaredLogger, cancel context.CancelFunc, quit <-chan os.Signal) {
	osCall := <-quit
	logger.Infow("system call, solver is shutting down", "signal", osCall.String())
	cancel()
}

func newFeed(cfg *config.PubSubConfig, logger *zap.SugaredLogger) (*feed.Feed, error) {
	if cfg.RedisAddr == "" {
		logger.Infow("no redis configured, using in process feed")
		return feed.NewLocal(logger), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return feed.NewRedis(client, cfg.ConsumerGroup, logger)
}

func run(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	programID, err := cfg.MatchingEngine()
	if err != nil {
		return err
	}
	mint, err := cfg.Mint()
	if err != nil {
		return err
	}
	keys, err := cfg.PayerKeys()
	if err != nil {
		return err
	}
	table, err := pricing.NewTable(cfg.Pricing)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitor.NewMetrics("", registry)

	chain, err := backend.NewBackend(ctx, &cfg.Solana, logger.Named("backend"))
	if err != nil {
		return err
	}
	defer chain.Close()
	blockhash := backend.NewBlockhashCache(chain, cfg.Solana.BlockhashTicks, cfg.Solana.BlockhashInterval, logger.Named("blockhash"))
	pipeline := backend.NewPipeline(chain, blockhash, backend.NewWallets(keys), logger.Named("pipeline"))

	bus, err := newFeed(&cfg.PubSub, logger.Named("feed"))
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var history *store.Store
	if cfg.Store.Enabled {
		dao, err := store.NewDao(cfg.Store.DSN)
		if err != nil {
			return err
		}
		history = store.NewStore(dao, logger.Named("store"))
	}

	var alerter app.Alerter
	var ding *dingsdk.DingSdk
	if cfg.Monitor.DingUrl != "" {
		ding = dingsdk.NewDingSdk(cfg.Monitor.DingUrl, fmt.Sprintf("[solver %s] ", cfg.Environment), 10*time.Second, logger.Named("ding"))
		alerter = ding
	}

	reconciler := app.NewReconciler(ctx,
		attestation.NewWormscan(cfg.Attestation.Wormscan, cfg.Attestation.RequestsPerSecond, cfg.Attestation.Timeout, logger.Named("wormscan")),
		attestation.NewCircle(cfg.Attestation.Circle, cfg.Attestation.RequestsPerSecond, cfg.Attestation.Timeout, logger.Named("circle")),
		nil, metrics, time.Second, cfg.Attestation.RequeueDelay, logger.Named("reconciler"))
	solver, err := app.NewSolver(ctx, cfg, app.Deps{
		Chain:    chain,
		Pipeline: pipeline,
		Tracker:  reconciler,
		Pricing:  table,
		Store:    history,
		Alerter:  alerter,
		Metrics:  metrics,
	}, logger.Named("solver"))
	if err != nil {
		return err
	}
	reconciler.SetSink(solver)

	fastOrders, err := bus.Subscribe(ctx, cfg.PubSub.FastOrder)
	if err != nil {
		return err
	}
	finalizedOrders, err := bus.Subscribe(ctx, cfg.PubSub.FinalizedOrder)
	if err != nil {
		return err
	}
	auctionUpdates, err := bus.Subscribe(ctx, cfg.PubSub.AuctionUpdate)
	if err != nil {
		return err
	}

	states := statelisten.NewStateListen(chain, bus, programID, cfg.PubSub.AuctionUpdate, logger.Named("statelisten"))
	balances := balancelisten.NewBalanceListen(chain, mint, solver.Payers(), cfg.Payers.BalanceInterval, solver, logger.Named("balancelisten"))
	server := monitor.NewServer(cfg.Monitor.Listen, solver, registry, logger.Named("monitor"))

	var detector *networkdetect.NetworkDetector
	if cfg.Monitor.NetworkProbe {
		detector, err = networkdetect.NewNetworkDetector(cfg.Solana.Rpc, func(avg time.Duration) {
			metrics.NetworkLatency.WithLabelValues(detector.Host()).Set(avg.Seconds())
		}, logger.Named("network"))
		if err != nil {
			return err
		}
	}

	// everything fallible is set up, start the workers
	if history != nil {
		g.Go(func() error { return history.Run(ctx) })
	}
	if ding != nil {
		g.Go(func() error { return ding.Run(ctx) })
	}
	g.Go(func() error { return blockhash.Run(ctx) })
	g.Go(solver.Run)
	g.Go(reconciler.Run)
	g.Go(func() error { return states.Run(ctx) })
	g.Go(func() error { return balances.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error { return chain.SubscribeSlot(ctx, backend.SlotFunc(solver.OnSlotUpdate)) })
	g.Go(func() error {
		for raw := range fastOrders {
			solver.OnFastVaa(raw)
		}
		return nil
	})
	g.Go(func() error {
		for raw := range finalizedOrders {
			reconciler.OnFinalizedVaa(raw)
		}
		return nil
	})
	g.Go(func() error {
		for raw := range auctionUpdates {
			u, err := feed.DecodeAccountUpdate(raw)
			if err != nil {
				logger.Warnw("decode auction update", "err", err)
				continue
			}
			solver.OnAuctionUpdate(u)
		}
		return nil
	})
	if detector != nil {
		g.Go(func() error { return detector.Run(ctx) })
	}

	logger.Infow("solver running", "environment", cfg.Environment, "matchingEngine", programID,
		"payers", len(keys), "pricing", len(table))
	return g.Wait()
}
