// Command sniper watches Raydium for new pools, buys the ones that pass the
// configured filters and sells them on take profit, stop loss or expiry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"solana-sniper/internal/config"
	"solana-sniper/internal/engine"
	"solana-sniper/internal/executor"
	"solana-sniper/internal/filter"
	"solana-sniper/internal/listener"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/raydium"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
	chstore "solana-sniper/internal/storage/clickhouse"
	"solana-sniper/internal/storage/file"
	"solana-sniper/internal/storage/memory"
	"solana-sniper/internal/storage/migrations"
	pgstore "solana-sniper/internal/storage/postgres"
	redisstore "solana-sniper/internal/storage/redis"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to the .env file")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides METRICS_ADDR)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown LOG_LEVEL, using info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log.Logger); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("sniper stopped")
	}
	log.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	owner := cfg.Wallet.PublicKey()
	logger.Info().
		Str("wallet", owner.String()).
		Str("quote", cfg.Quote.Symbol).
		Uint64("quote_amount", cfg.QuoteAmount).
		Str("executor", cfg.Executor).
		Int("max_tokens", cfg.MaxTokensAtTheTime).
		Bool("snipe_list", cfg.UseSnipeList).
		Bool("auto_sell", cfg.AutoSell).
		Msg("starting sniper")

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint, solana.WithCommitment(cfg.Commitment))

	wsConfig := solana.DefaultWSConfig()
	wsConfig.Commitment = cfg.Commitment
	ws, err := solana.NewWSClient(ctx, cfg.WebsocketEndpoint, &wsConfig)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	defer ws.Close()

	stores, err := openStores(ctx, cfg, rpc, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	journal, closeJournal, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeJournal()

	exec, err := executor.New(executor.Config{
		Kind:        cfg.Executor,
		RPC:         rpc,
		FeeLamports: cfg.CustomFee,
		WarpURL:     cfg.WarpURL,
		JitoURLs:    cfg.JitoURLs,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	balance, err := engine.NewWalletBalance(rpc, owner, cfg.Quote.Mint)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Options{
		Config: engine.Config{
			Owner:                     owner,
			QuoteMint:                 cfg.Quote.Mint,
			QuoteAmount:               cfg.QuoteAmount,
			MaxTokensAtTheTime:        cfg.MaxTokensAtTheTime,
			UseSnipeList:              cfg.UseSnipeList,
			AutoBuyDelay:              cfg.AutoBuyDelay,
			MaxBuyRetries:             cfg.MaxBuyRetries,
			BuySlippage:               cfg.BuySlippage,
			AutoSellDelay:             cfg.AutoSellDelay,
			MaxSellRetries:            cfg.MaxSellRetries,
			SellSlippage:              cfg.SellSlippage,
			TakeProfit:                cfg.TakeProfit,
			StopLoss:                  cfg.StopLoss,
			TrailingStopLoss:          cfg.TrailingStopLoss,
			SkipSellingIfLostMoreThan: cfg.SkipSellingIfLostMoreThan,
			PriceCheckInterval:        cfg.PriceCheckInterval,
			PriceCheckDuration:        cfg.PriceCheckDuration,
			FilterCheckInterval:       cfg.FilterCheckInterval,
			FilterCheckDuration:       cfg.FilterCheckDuration,
			ConsecutiveFilterMatches:  cfg.ConsecutiveFilterMatches,
		},
		Pools:   stores.pools,
		Markets: stores.markets,
		Filter: filter.New(rpc, filter.Options{
			CheckBurned:    cfg.CheckIfBurned,
			CheckRenounced: cfg.CheckIfMintIsRenounced,
			CheckFreezable: cfg.CheckIfFreezable,
			CheckMutable:   cfg.CheckIfMutable,
			MinPoolSize:    cfg.MinPoolSize,
			MaxPoolSize:    cfg.MaxPoolSize,
		}, logger),
		Swapper: engine.NewSwapAdapter(engine.SwapAdapterOptions{
			RPC:              rpc,
			Executor:         exec,
			Wallet:           cfg.Wallet,
			ComputeUnitLimit: cfg.ComputeUnitLimit,
			ComputeUnitPrice: cfg.ComputeUnitPrice,
			Logger:           logger,
		}),
		Journal:   journal,
		Balance:   balance,
		SnipeList: stores.snipeList,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if err := eng.Init(ctx); err != nil {
		return err
	}
	logger.Info().
		Uint64("balance", eng.Balance()).
		Uint64("last_sequence_id", eng.LastSequenceID()).
		Msg("engine ready")

	l := listener.New(listener.Options{
		WS:              ws,
		Pools:           stores.pools,
		Markets:         stores.markets,
		Trader:          eng,
		Owner:           owner,
		QuoteMint:       cfg.Quote.Mint,
		CacheNewMarkets: cfg.CacheNewMarkets,
		AutoSell:        cfg.AutoSell,
		Logger:          logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Run(gctx) })
	g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr, logger) })
	if stores.refresh != nil {
		g.Go(func() error {
			stores.refresh(gctx)
			return nil
		})
	}
	return g.Wait()
}

type stores struct {
	pools     storage.PoolStore
	markets   storage.MarketStore
	snipeList storage.SnipeListStore
	refresh   func(ctx context.Context) // reloads the snipe list file, nil when unused
	closers   []io.Closer
}

func (s *stores) close() {
	for _, c := range s.closers {
		c.Close()
	}
}

func openStores(ctx context.Context, cfg *config.Config, rpc solana.RPCClient, logger zerolog.Logger) (*stores, error) {
	s := &stores{}
	var marketCache storage.MarketStore

	var fileList *memory.SnipeList
	if cfg.UseSnipeList {
		fileList = memory.NewSnipeList(cfg.SnipeListPath, logger)
	}

	switch cfg.StoreBackend {
	case config.StoreRedis:
		client, err := redisstore.New(ctx, redisstore.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client)
		s.pools = redisstore.NewPoolStore(client)
		marketCache = redisstore.NewMarketStore(client)
		if fileList != nil {
			// The file seeds the Redis set, which can then be edited live.
			if err := fileList.Load(); err != nil {
				logger.Warn().Err(err).Msg("snipe list file not loaded")
			}
			list := redisstore.NewSnipeList(client, logger)
			if err := list.Add(ctx, fileList.Mints()...); err != nil {
				client.Close()
				return nil, err
			}
			s.snipeList = list
		}
	default:
		s.pools = memory.NewPoolStore()
		marketCache = memory.NewMarketStore()
		if fileList != nil {
			s.snipeList = fileList
			s.refresh = func(ctx context.Context) { fileList.Run(ctx, cfg.SnipeListRefreshInterval) }
		}
	}

	if cfg.CacheNewMarkets {
		s.markets = raydium.NewCachedMarketStore(marketCache, rpc)
	} else {
		s.markets = raydium.NewRPCMarketStore(rpc)
	}
	return s, nil
}

func openJournal(ctx context.Context, cfg *config.Config) (storage.Journal, func(), error) {
	switch cfg.JournalBackend {
	case config.JournalPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		return pgstore.NewJournal(pool), pool.Close, nil

	case config.JournalClickHouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return chstore.NewJournal(conn), func() { conn.Close() }, nil

	default:
		j, err := file.OpenJournal(cfg.JournalPath)
		if err != nil {
			return nil, nil, err
		}
		return j, func() { j.Close() }, nil
	}
}

func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
