// Package config loads the sniper configuration from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"solana-sniper/internal/executor"
	"solana-sniper/internal/solana"
)

// Executor kinds.
const (
	ExecutorDefault = executor.KindDefault
	ExecutorWarp    = executor.KindWarp
	ExecutorJito    = executor.KindJito
)

// Journal backends.
const (
	JournalFile       = "file"
	JournalPostgres   = "postgres"
	JournalClickHouse = "clickhouse"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// solDecimals converts SOL amounts to lamports.
const solDecimals = 9

// QuoteToken is the token pools are bought with.
type QuoteToken struct {
	Symbol   string
	Mint     solana.PublicKey
	Decimals int32
}

var quoteTokens = map[string]QuoteToken{
	"WSOL": {Symbol: "WSOL", Mint: solana.WrappedSOLMint, Decimals: 9},
	"USDC": {Symbol: "USDC", Mint: solana.USDCMint, Decimals: 6},
}

// Config is the full process configuration.
type Config struct {
	// Wallet and RPC
	Wallet            solana.Keypair
	RPCEndpoint       string
	WebsocketEndpoint string
	Commitment        string
	LogLevel          string

	// Execution
	MaxTokensAtTheTime int
	CacheNewMarkets    bool
	Executor           string
	ComputeUnitLimit   uint32
	ComputeUnitPrice   uint64 // micro-lamports
	CustomFee          uint64 // lamports, warp fee or jito tip
	WarpURL            string
	JitoURLs           []string

	// Buy
	Quote         QuoteToken
	QuoteAmount   uint64 // raw units
	AutoBuyDelay  time.Duration
	MaxBuyRetries int
	BuySlippage   decimal.Decimal

	// Sell
	AutoSell                  bool
	AutoSellDelay             time.Duration
	MaxSellRetries            int
	TakeProfit                decimal.Decimal
	StopLoss                  decimal.Decimal
	TrailingStopLoss          bool
	SkipSellingIfLostMoreThan decimal.Decimal
	PriceCheckInterval        time.Duration
	PriceCheckDuration        time.Duration
	SellSlippage              decimal.Decimal

	// Snipe list
	UseSnipeList             bool
	SnipeListPath            string
	SnipeListRefreshInterval time.Duration

	// Filters
	FilterCheckInterval      time.Duration
	FilterCheckDuration      time.Duration
	ConsecutiveFilterMatches int
	CheckIfMutable           bool
	CheckIfMintIsRenounced   bool
	CheckIfFreezable         bool
	CheckIfBurned            bool
	MinPoolSize              decimal.Decimal // whole quote tokens, zero disables
	MaxPoolSize              decimal.Decimal

	// Storage
	JournalBackend string
	JournalPath    string
	PostgresDSN    string
	ClickHouseDSN  string
	StoreBackend   string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	MetricsAddr string
}

// Load reads envFile when it exists, then builds and validates the
// configuration from the environment. Variables already set in the
// environment take precedence over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	r := &reader{}
	cfg := &Config{
		RPCEndpoint:       r.getEnv("RPC_ENDPOINT", ""),
		WebsocketEndpoint: r.getEnv("RPC_WEBSOCKET_ENDPOINT", ""),
		Commitment:        r.getEnv("COMMITMENT_LEVEL", solana.CommitmentConfirmed),
		LogLevel:          r.getEnv("LOG_LEVEL", "info"),

		MaxTokensAtTheTime: r.getEnvInt("MAX_TOKENS_AT_THE_TIME", 1),
		CacheNewMarkets:    r.getEnvBool("CACHE_NEW_MARKETS", false),
		Executor:           r.getEnv("TRANSACTION_EXECUTOR", ExecutorDefault),
		ComputeUnitLimit:   uint32(r.getEnvInt("COMPUTE_UNIT_LIMIT", 101337)),
		ComputeUnitPrice:   uint64(r.getEnvInt("COMPUTE_UNIT_PRICE", 421197)),
		WarpURL:            r.getEnv("WARP_URL", ""),
		JitoURLs:           r.getEnvList("JITO_URLS"),

		AutoBuyDelay:  r.getEnvDuration("AUTO_BUY_DELAY", 0),
		MaxBuyRetries: r.getEnvInt("MAX_BUY_RETRIES", 10),
		BuySlippage:   r.getEnvDecimal("BUY_SLIPPAGE", "20"),

		AutoSell:                  r.getEnvBool("AUTO_SELL", true),
		AutoSellDelay:             r.getEnvDuration("AUTO_SELL_DELAY", 0),
		MaxSellRetries:            r.getEnvInt("MAX_SELL_RETRIES", 10),
		TakeProfit:                r.getEnvDecimal("TAKE_PROFIT", "40"),
		StopLoss:                  r.getEnvDecimal("STOP_LOSS", "20"),
		TrailingStopLoss:          r.getEnvBool("TRAILING_STOP_LOSS", false),
		SkipSellingIfLostMoreThan: r.getEnvDecimal("SKIP_SELLING_IF_LOST_MORE_THAN", "90"),
		PriceCheckInterval:        r.getEnvDuration("PRICE_CHECK_INTERVAL", 2*time.Second),
		PriceCheckDuration:        r.getEnvDuration("PRICE_CHECK_DURATION", 10*time.Minute),
		SellSlippage:              r.getEnvDecimal("SELL_SLIPPAGE", "20"),

		UseSnipeList:             r.getEnvBool("USE_SNIPE_LIST", false),
		SnipeListPath:            r.getEnv("SNIPE_LIST_PATH", "snipe-list.txt"),
		SnipeListRefreshInterval: r.getEnvDuration("SNIPE_LIST_REFRESH_INTERVAL", 30*time.Second),

		FilterCheckInterval:      r.getEnvDuration("FILTER_CHECK_INTERVAL", 2*time.Second),
		FilterCheckDuration:      r.getEnvDuration("FILTER_CHECK_DURATION", time.Minute),
		ConsecutiveFilterMatches: r.getEnvInt("CONSECUTIVE_FILTER_MATCHES", 3),
		CheckIfMutable:           r.getEnvBool("CHECK_IF_MUTABLE", false),
		CheckIfMintIsRenounced:   r.getEnvBool("CHECK_IF_MINT_IS_RENOUNCED", true),
		CheckIfFreezable:         r.getEnvBool("CHECK_IF_FREEZABLE", false),
		CheckIfBurned:            r.getEnvBool("CHECK_IF_BURNED", true),
		MinPoolSize:              r.getEnvDecimal("MIN_POOL_SIZE", "5"),
		MaxPoolSize:              r.getEnvDecimal("MAX_POOL_SIZE", "50"),

		JournalBackend: r.getEnv("JOURNAL_BACKEND", JournalFile),
		JournalPath:    r.getEnv("JOURNAL_PATH", "trades.jsonl"),
		PostgresDSN:    r.getEnv("POSTGRES_DSN", ""),
		ClickHouseDSN:  r.getEnv("CLICKHOUSE_DSN", ""),
		StoreBackend:   r.getEnv("STORE_BACKEND", StoreMemory),
		RedisAddr:      r.getEnv("REDIS_ADDR", ""),
		RedisPassword:  r.getEnv("REDIS_PASSWORD", ""),
		RedisDB:        r.getEnvInt("REDIS_DB", 0),

		MetricsAddr: r.getEnv("METRICS_ADDR", ":9090"),
	}

	if key := r.getEnv("PRIVATE_KEY", ""); key != "" {
		wallet, err := solana.ParseKeypair(key)
		if err != nil {
			r.fail("PRIVATE_KEY", err)
		}
		cfg.Wallet = wallet
	} else {
		r.fail("PRIVATE_KEY", errors.New("required"))
	}

	quote, ok := quoteTokens[strings.ToUpper(r.getEnv("QUOTE_MINT", "WSOL"))]
	if !ok {
		r.fail("QUOTE_MINT", fmt.Errorf("unsupported quote token %q", os.Getenv("QUOTE_MINT")))
	}
	cfg.Quote = quote
	if ok {
		cfg.QuoteAmount = r.getEnvUnits("QUOTE_AMOUNT", "0.001", quote.Decimals)
	}
	cfg.CustomFee = r.getEnvUnits("CUSTOM_FEE", "0.006", solDecimals)

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.RPCEndpoint == "" {
		errs = append(errs, errors.New("RPC_ENDPOINT is required"))
	}
	if c.WebsocketEndpoint == "" {
		errs = append(errs, errors.New("RPC_WEBSOCKET_ENDPOINT is required"))
	}
	switch c.Commitment {
	case solana.CommitmentProcessed, solana.CommitmentConfirmed, solana.CommitmentFinalized:
	default:
		errs = append(errs, fmt.Errorf("COMMITMENT_LEVEL: unknown level %q", c.Commitment))
	}
	switch c.Executor {
	case ExecutorDefault, ExecutorWarp, ExecutorJito:
	default:
		errs = append(errs, fmt.Errorf("TRANSACTION_EXECUTOR: unknown executor %q", c.Executor))
	}
	if c.QuoteAmount == 0 {
		errs = append(errs, errors.New("QUOTE_AMOUNT must be positive"))
	}
	if c.MaxTokensAtTheTime < 1 {
		errs = append(errs, errors.New("MAX_TOKENS_AT_THE_TIME must be at least 1"))
	}
	if c.MaxBuyRetries < 1 || c.MaxSellRetries < 1 {
		errs = append(errs, errors.New("MAX_BUY_RETRIES and MAX_SELL_RETRIES must be at least 1"))
	}
	for name, pct := range map[string]decimal.Decimal{
		"BUY_SLIPPAGE":  c.BuySlippage,
		"SELL_SLIPPAGE": c.SellSlippage,
		"STOP_LOSS":     c.StopLoss,
	} {
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			errs = append(errs, fmt.Errorf("%s must be between 0 and 100", name))
		}
	}
	if c.TakeProfit.IsNegative() || c.SkipSellingIfLostMoreThan.IsNegative() {
		errs = append(errs, errors.New("TAKE_PROFIT and SKIP_SELLING_IF_LOST_MORE_THAN must not be negative"))
	}
	if !c.MinPoolSize.IsZero() && !c.MaxPoolSize.IsZero() && c.MinPoolSize.GreaterThan(c.MaxPoolSize) {
		errs = append(errs, errors.New("MIN_POOL_SIZE exceeds MAX_POOL_SIZE"))
	}
	switch c.JournalBackend {
	case JournalFile:
		if c.JournalPath == "" {
			errs = append(errs, errors.New("JOURNAL_PATH is required for the file journal"))
		}
	case JournalPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres journal"))
		}
	case JournalClickHouse:
		if c.ClickHouseDSN == "" {
			errs = append(errs, errors.New("CLICKHOUSE_DSN is required for the clickhouse journal"))
		}
	default:
		errs = append(errs, fmt.Errorf("JOURNAL_BACKEND: unknown backend %q", c.JournalBackend))
	}
	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend))
	}
	return errors.Join(errs...)
}

// reader collects parse errors so every bad variable is reported at once.
type reader struct {
	errs []error
}

func (r *reader) fail(key string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
}

func (r *reader) getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) getEnvBool(key string, def bool) bool {
	v := r.getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *reader) getEnvInt(key string, def int) int {
	v := r.getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	if n < 0 {
		r.fail(key, fmt.Errorf("negative value %d", n))
		return def
	}
	return n
}

// getEnvDuration reads a duration in milliseconds.
func (r *reader) getEnvDuration(key string, def time.Duration) time.Duration {
	v := r.getEnv(key, "")
	if v == "" {
		return def
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	if ms < 0 {
		r.fail(key, fmt.Errorf("negative duration %d", ms))
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func (r *reader) getEnvDecimal(key, def string) decimal.Decimal {
	d, err := decimal.NewFromString(r.getEnv(key, def))
	if err != nil {
		r.fail(key, err)
		return decimal.Zero
	}
	return d
}

// getEnvUnits reads a token amount and converts it to raw units.
func (r *reader) getEnvUnits(key, def string, decimals int32) uint64 {
	d := r.getEnvDecimal(key, def)
	raw := d.Shift(decimals).Truncate(0)
	if raw.IsNegative() || !raw.BigInt().IsUint64() {
		r.fail(key, fmt.Errorf("amount %s out of range", d))
		return 0
	}
	return raw.BigInt().Uint64()
}

func (r *reader) getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(r.getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
