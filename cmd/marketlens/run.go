package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/dnscache"

	marketlens "github.com/marketlens/marketlens/internal"
	"github.com/marketlens/marketlens/internal/analytics"
	"github.com/marketlens/marketlens/internal/cachestore"
	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/discovery"
	"github.com/marketlens/marketlens/internal/hostbridge"
	"github.com/marketlens/marketlens/internal/platform"
)

type runOpts struct {
	configPath string
	exchange   string
	resource   string
	symbol     string
	expiry     string
	from       string
	to         string
	force      bool
}

func run(opts runOpts) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	resolver := &dnscache.Resolver{}

	bridge := hostbridge.New(cfg.Bridge.Addr, cfg.Bridge.ProbeTimeout, resolver)
	detector := platform.NewDetector(bridge)
	disc := discovery.New(bridge, cfg, nil)

	info := detector.Resolve(ctx)
	slog.Info("platform", "kind", string(info.Kind), "label", info.Label)

	factory := cachestore.NewFactory(cfg.Storage)
	store, namespace, err := factory.Store(info)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("cache ready", "namespace", namespace)

	client := analytics.New(store, detector, disc, resolver, nil)

	env, err := fetchResource(ctx, client, opts)
	if err != nil {
		return err
	}

	fmt.Println(string(env.Data))
	if env.FromCache {
		fmt.Printf("(cached %s, updated %s)\n",
			env.CachedAt, cachestore.FormatAgeNow(env.LastUpdated))
	} else {
		fmt.Println("(fresh)")
	}
	return nil
}

func fetchResource(
	ctx context.Context,
	client *analytics.Client,
	opts runOpts,
) (marketlens.Envelope[analytics.Payload], error) {
	switch opts.resource {
	case "securities":
		return client.Securities(ctx, opts.exchange, opts.force)
	case "contract_info":
		return client.ContractInfo(ctx, opts.exchange, opts.symbol, opts.force)
	case "single_analysis":
		return client.SingleAnalysis(ctx, opts.exchange, analytics.SingleAnalysisParams{
			Symbol: opts.symbol,
			Expiry: opts.expiry,
		}, opts.force)
	case "batch_analysis":
		return client.BatchAnalysis(ctx, opts.exchange, opts.force)
	case "futures_data":
		return client.FuturesData(ctx, opts.exchange, opts.symbol, opts.force)
	case "derivatives_historical":
		return client.DerivativesHistorical(ctx, opts.exchange, opts.symbol, opts.from, opts.to, opts.force)
	default:
		return marketlens.Envelope[analytics.Payload]{}, fmt.Errorf("unknown resource %q", opts.resource)
	}
}
