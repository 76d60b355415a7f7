package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	LogPath       = "./logs/"
	SolverLog     = "solver"
	BackendLog    = "backend"
	ReconcilerLog = "reconciler"
	NetworkLog    = "network"
)

const (
	EnvironmentMainnet = "mainnet"
	EnvironmentTestnet = "testnet"
)

const (
	CctpAttestationMainnet   = "https://iris-api.circle.com"
	CctpAttestationTestnet   = "https://iris-api-sandbox.circle.com"
	WormholescanVaaMainnet   = "https://api.wormholescan.io/api/v1/vaas"
	WormholescanVaaTestnet   = "https://api.testnet.wormholescan.io/api/v1/vaas"
	DefaultMinLamports       = uint64(100_000_000)
	DefaultMinTokens         = uint64(1_000_000_000)
	DefaultSolanaChain       = uint16(1)
	DefaultMaxTransactionsPS = 10
)

type Node struct {
	Rpc string `yaml:"rpc"`
	Ws  string `yaml:"ws"`
}

type Config struct {
	Environment string            `yaml:"environment"`
	Log         LogConfig         `yaml:"log"`
	Solana      SolanaConfig      `yaml:"solana"`
	Payers      PayersConfig      `yaml:"payers"`
	Pricing     []PricingConfig   `yaml:"pricing"`
	Solver      SolverConfig      `yaml:"solver"`
	Attestation AttestationConfig `yaml:"attestation"`
	PubSub      PubSubConfig      `yaml:"pubsub"`
	Store       StoreConfig       `yaml:"store"`
	Monitor     MonitorConfig     `yaml:"monitor"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type SolanaConfig struct {
	Node                     `yaml:",inline"`
	BlockhashNodes           []string      `yaml:"blockhash_nodes"`
	Commitment               string        `yaml:"commitment"`
	MatchingEngine           string        `yaml:"matching_engine"`
	Mint                     string        `yaml:"mint"`
	KnownAtaOwners           []string      `yaml:"known_ata_owners"`
	Chain                    uint16        `yaml:"chain"`
	MaxTransactionsPerSecond int           `yaml:"max_transactions_per_second"`
	BlockhashTicks           int           `yaml:"blockhash_ticks"`
	BlockhashInterval        time.Duration `yaml:"blockhash_interval"`
}

type PayersConfig struct {
	Keys            []string      `yaml:"keys"`
	MinLamports     uint64        `yaml:"min_lamports"`
	MinTokens       uint64        `yaml:"min_tokens"`
	BalanceInterval time.Duration `yaml:"balance_interval"`
}

// PricingConfig is the solver's risk policy for orders originating on Chain.
type PricingConfig struct {
	Chain        uint16 `yaml:"chain"`
	RollbackRisk string `yaml:"rollback_risk"`
	OfferEdge    string `yaml:"offer_edge"`
}

type SolverConfig struct {
	PlaceInitialOffer    bool          `yaml:"place_initial_offer"`
	ImproveOffer         bool          `yaml:"improve_offer"`
	ExecuteCctp          bool          `yaml:"execute_cctp"`
	ExecuteLocal         bool          `yaml:"execute_local"`
	SlotDuration         time.Duration `yaml:"slot_duration"`
	SendBuffer           time.Duration `yaml:"send_buffer"`
	TickInterval         time.Duration `yaml:"tick_interval"`
	Retries              int           `yaml:"retries"`
	RetryDelay           time.Duration `yaml:"retry_delay"`
	ExecuteRetryDelay    time.Duration `yaml:"execute_retry_delay"`
	MaxExecutionAttempts int           `yaml:"max_execution_attempts"`
}

type AttestationConfig struct {
	Wormscan          string        `yaml:"wormscan"`
	Circle            string        `yaml:"circle"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	RequeueDelay      time.Duration `yaml:"requeue_delay"`
	Timeout           time.Duration `yaml:"timeout"`
}

type PubSubConfig struct {
	RedisAddr      string `yaml:"redis_addr"`
	ConsumerGroup  string `yaml:"consumer_group"`
	FastOrder      string `yaml:"fast_order"`
	FinalizedOrder string `yaml:"finalized_order"`
	AuctionUpdate  string `yaml:"auction_update"`
}

type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

type MonitorConfig struct {
	Listen       string `yaml:"listen"`
	NetworkProbe bool   `yaml:"network_probe"`
	// DingUrl is a DingTalk robot webhook; alerts are off when empty.
	DingUrl string `yaml:"ding_url"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Parse decodes yaml, applies SOLVER_* environment overrides and defaults,
// then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOLVER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SOLVER_RPC"); v != "" {
		cfg.Solana.Rpc = v
	}
	if v := os.Getenv("SOLVER_WS"); v != "" {
		cfg.Solana.Ws = v
	}
	if v := os.Getenv("SOLVER_PAYER_KEYS"); v != "" {
		cfg.Payers.Keys = strings.Split(v, ",")
	}
	if v := os.Getenv("SOLVER_REDIS_ADDR"); v != "" {
		cfg.PubSub.RedisAddr = v
	}
	if v := os.Getenv("SOLVER_DB_DSN"); v != "" {
		cfg.Store.DSN = v
		cfg.Store.Enabled = true
	}
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = EnvironmentTestnet
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Solana.Commitment == "" {
		cfg.Solana.Commitment = "confirmed"
	}
	if cfg.Solana.Chain == 0 {
		cfg.Solana.Chain = DefaultSolanaChain
	}
	if cfg.Solana.MaxTransactionsPerSecond <= 0 {
		cfg.Solana.MaxTransactionsPerSecond = DefaultMaxTransactionsPS
	}
	if cfg.Solana.BlockhashTicks <= 0 {
		cfg.Solana.BlockhashTicks = 32
	}
	if cfg.Solana.BlockhashInterval <= 0 {
		cfg.Solana.BlockhashInterval = 400 * time.Millisecond
	}
	if cfg.Payers.MinLamports == 0 {
		cfg.Payers.MinLamports = DefaultMinLamports
	}
	if cfg.Payers.MinTokens == 0 {
		cfg.Payers.MinTokens = DefaultMinTokens
	}
	if cfg.Payers.BalanceInterval <= 0 {
		cfg.Payers.BalanceInterval = 10 * time.Second
	}
	if cfg.Solver.SlotDuration <= 0 {
		cfg.Solver.SlotDuration = 400 * time.Millisecond
	}
	if cfg.Solver.SendBuffer <= 0 {
		cfg.Solver.SendBuffer = 395 * time.Millisecond
	}
	if cfg.Solver.TickInterval <= 0 {
		cfg.Solver.TickInterval = 100 * time.Millisecond
	}
	if cfg.Solver.Retries <= 0 {
		cfg.Solver.Retries = 5
	}
	if cfg.Solver.RetryDelay <= 0 {
		cfg.Solver.RetryDelay = 200 * time.Millisecond
	}
	if cfg.Solver.ExecuteRetryDelay <= 0 {
		cfg.Solver.ExecuteRetryDelay = time.Second
	}
	if cfg.Solver.MaxExecutionAttempts <= 0 {
		cfg.Solver.MaxExecutionAttempts = 3
	}
	if cfg.Attestation.Wormscan == "" {
		cfg.Attestation.Wormscan = WormholescanVaaTestnet
		if cfg.Environment == EnvironmentMainnet {
			cfg.Attestation.Wormscan = WormholescanVaaMainnet
		}
	}
	if cfg.Attestation.Circle == "" {
		cfg.Attestation.Circle = CctpAttestationTestnet
		if cfg.Environment == EnvironmentMainnet {
			cfg.Attestation.Circle = CctpAttestationMainnet
		}
	}
	if cfg.Attestation.RequestsPerSecond <= 0 {
		cfg.Attestation.RequestsPerSecond = 5
	}
	if cfg.Attestation.RequeueDelay <= 0 {
		cfg.Attestation.RequeueDelay = time.Minute
	}
	if cfg.Attestation.Timeout <= 0 {
		cfg.Attestation.Timeout = 10 * time.Second
	}
	if cfg.PubSub.ConsumerGroup == "" {
		cfg.PubSub.ConsumerGroup = "solver"
	}
	if cfg.PubSub.FastOrder == "" {
		cfg.PubSub.FastOrder = "fastOrder"
	}
	if cfg.PubSub.FinalizedOrder == "" {
		cfg.PubSub.FinalizedOrder = "finalizedOrder"
	}
	if cfg.PubSub.AuctionUpdate == "" {
		cfg.PubSub.AuctionUpdate = "auctionUpdate"
	}
	if cfg.Monitor.Listen == "" {
		cfg.Monitor.Listen = "0.0.0.0:8089"
	}
}

func (cfg *Config) Validate() error {
	switch cfg.Environment {
	case EnvironmentMainnet, EnvironmentTestnet:
	default:
		return fmt.Errorf("invalid environment %q", cfg.Environment)
	}
	if _, err := cfg.MatchingEngine(); err != nil {
		return err
	}
	if _, err := cfg.Mint(); err != nil {
		return err
	}
	if _, err := cfg.KnownAtaOwners(); err != nil {
		return err
	}
	seen := make(map[uint16]bool)
	for _, p := range cfg.Pricing {
		if seen[p.Chain] {
			return fmt.Errorf("duplicate pricing for chain %d", p.Chain)
		}
		seen[p.Chain] = true
	}
	return nil
}

func (cfg *Config) MatchingEngine() (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(cfg.Solana.MatchingEngine)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid matching_engine %q: %w", cfg.Solana.MatchingEngine, err)
	}
	return key, nil
}

func (cfg *Config) Mint() (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(cfg.Solana.Mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid mint %q: %w", cfg.Solana.Mint, err)
	}
	return key, nil
}

func (cfg *Config) KnownAtaOwners() ([]solana.PublicKey, error) {
	owners := make([]solana.PublicKey, 0, len(cfg.Solana.KnownAtaOwners))
	for _, s := range cfg.Solana.KnownAtaOwners {
		key, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("invalid known_ata_owner %q: %w", s, err)
		}
		owners = append(owners, key)
	}
	return owners, nil
}

func (cfg *Config) PayerKeys() ([]solana.PrivateKey, error) {
	keys := make([]solana.PrivateKey, 0, len(cfg.Payers.Keys))
	for i, s := range cfg.Payers.Keys {
		key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid payer key #%d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (cfg *Config) PricingFor(chain uint16) *PricingConfig {
	for i := range cfg.Pricing {
		if cfg.Pricing[i].Chain == chain {
			return &cfg.Pricing[i]
		}
	}
	return nil
}
