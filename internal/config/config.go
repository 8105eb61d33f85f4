package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"balance_pool/internal/domain/entity"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server        ServerConfig            `yaml:"server"`
	Logging       LoggingConfig           `yaml:"logging"`
	Networks      []NetworkOverride       `yaml:"networks"`
	Chains        []entity.Chain          `yaml:"chains"`
	Registry      RegistryConfig          `yaml:"registry"`
	Wallets       WalletsConfig           `yaml:"wallets"`
	Settings      entity.Settings         `yaml:"settings"`
	RpcClient     RpcClientConfig         `yaml:"rpcClient"`
	Modules       ModulesConfig           `yaml:"modules"`
	BalancePool   BalancePoolConfig       `yaml:"balancePool"`
	BalanceCache  BalanceCacheConfig      `yaml:"balanceCache"`
	Cache         CacheConfig             `yaml:"cache"`
	DEXScreener   DEXScreenerConfig       `yaml:"dexScreener"`
	TokenPriceSvc TokenPriceServiceConfig `yaml:"tokenPriceService"`
}

// ServerConfig holds the server-specific configuration.
type ServerConfig struct {
	Port         string   `yaml:"port"`
	ReadTimeout  int      `yaml:"readTimeout"`  // seconds
	WriteTimeout int      `yaml:"writeTimeout"` // seconds, 0 keeps streams open
	IdleTimeout  int      `yaml:"idleTimeout"`  // seconds
	AllowOrigins []string `yaml:"allowOrigins"`
	MetricsPath  string   `yaml:"metricsPath"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// NetworkOverride adjusts a built-in EVM network definition or adds a new one.
type NetworkOverride struct {
	Identifier         string   `yaml:"identifier"`
	ChainID            uint64   `yaml:"chainID"`
	Name               string   `yaml:"name"`
	NativeSymbol       string   `yaml:"nativeSymbol"`
	PrimaryRPCURL      string   `yaml:"primaryRpcUrl"`
	FallbackRPCURLs    []string `yaml:"fallbackRpcUrls"`
	DEXScreenerChainID string   `yaml:"dexScreenerChainID"`
	SubstrateChainID   string   `yaml:"substrateChainId"`
	IsTestnet          *bool    `yaml:"isTestnet"`
	Disabled           bool     `yaml:"disabled"`
}

// RegistryConfig configures the file-backed chain registry.
type RegistryConfig struct {
	TokensDir             string `yaml:"tokensDir"`
	ReloadIntervalSeconds int    `yaml:"reloadIntervalSeconds"` // 0 disables polling
}

// WalletsConfig configures the file-backed keyring.
type WalletsConfig struct {
	File                  string `yaml:"file"`
	ReloadIntervalSeconds int    `yaml:"reloadIntervalSeconds"`
}

// RpcClientConfig holds configuration for RPC clients.
type RpcClientConfig struct {
	DefaultTimeoutMs int64   `yaml:"defaultTimeoutMs"`
	ConnectTimeoutMs int64   `yaml:"connectTimeoutMs"`
	RateLimit        float64 `yaml:"rateLimit"` // requests per second per network
	BurstLimit       int     `yaml:"burstLimit"`
	MaxBatchSize     int     `yaml:"maxBatchSize"`
}

// ModulesConfig selects and tunes the balance modules.
type ModulesConfig struct {
	PollIntervalMs int64 `yaml:"pollIntervalMs"`
	DisableNative  bool  `yaml:"disableNative"`
	DisableERC20   bool  `yaml:"disableERC20"`
}

// BalancePoolConfig holds the pool timings in milliseconds. Zero keeps the pool default.
type BalancePoolConfig struct {
	PublishDebounceMs     int64 `yaml:"publishDebounceMs"`
	InputDebounceMs       int64 `yaml:"inputDebounceMs"`
	ConsumerCloseDelayMs  int64 `yaml:"consumerCloseDelayMs"`
	ModuleCloseDelayMs    int64 `yaml:"moduleCloseDelayMs"`
	InitialisingTimeoutMs int64 `yaml:"initialisingTimeoutMs"`
	PersistIntervalMs     int64 `yaml:"persistIntervalMs"`
}

// BalanceCacheConfig selects the durable snapshot store.
type BalanceCacheConfig struct {
	Backend             string `yaml:"backend"` // sqlite, wal, memory or none
	Path                string `yaml:"path"`
	WalSegmentThreshold int    `yaml:"walSegmentThreshold"`
	WalMaxSegments      int    `yaml:"walMaxSegments"`
}

// CacheConfig holds configuration for the in-memory price cache.
type CacheConfig struct {
	DefaultExpirationMinutes int `yaml:"defaultExpirationMinutes"`
	CleanupIntervalMinutes   int `yaml:"cleanupIntervalMinutes"`
}

// DEXScreenerConfig holds the configuration for the DEX Screener client.
type DEXScreenerConfig struct {
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
}

// TokenPriceServiceConfig holds configuration for the TokenPriceService.
type TokenPriceServiceConfig struct {
	Enabled                  bool  `yaml:"enabled"`
	RequestTimeoutMillis     int64 `yaml:"requestTimeoutMillis"`
	CacheTTLMinutes          int   `yaml:"cacheTTLMinutes"`
	MaxTokensPerBatchRequest int   `yaml:"maxTokensPerBatchRequest"`
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

func (c BalancePoolConfig) PublishDebounce() time.Duration     { return ms(c.PublishDebounceMs) }
func (c BalancePoolConfig) InputDebounce() time.Duration       { return ms(c.InputDebounceMs) }
func (c BalancePoolConfig) ConsumerCloseDelay() time.Duration  { return ms(c.ConsumerCloseDelayMs) }
func (c BalancePoolConfig) ModuleCloseDelay() time.Duration    { return ms(c.ModuleCloseDelayMs) }
func (c BalancePoolConfig) InitialisingTimeout() time.Duration { return ms(c.InitialisingTimeoutMs) }
func (c BalancePoolConfig) PersistInterval() time.Duration     { return ms(c.PersistIntervalMs) }

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		logrus.Errorf("Failed to load config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to load config data from %s: %w", path, err)
	}
	logrus.Info("Configuration loaded successfully.")
	return cfg, nil
}

// Parse decodes YAML config data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
		logrus.Infof("Server.Port not set, defaulting to %s", c.Server.Port)
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Registry.TokensDir == "" {
		c.Registry.TokensDir = "data/tokens"
		logrus.Infof("Registry.TokensDir not set, defaulting to %s", c.Registry.TokensDir)
	}
	if c.Wallets.File == "" {
		c.Wallets.File = "data/wallets.txt"
		logrus.Infof("Wallets.File not set, defaulting to %s", c.Wallets.File)
	}
	if c.RpcClient.DefaultTimeoutMs == 0 {
		c.RpcClient.DefaultTimeoutMs = 10000
		logrus.Infof("RpcClient.DefaultTimeoutMs not set, defaulting to %d ms", c.RpcClient.DefaultTimeoutMs)
	}
	if c.RpcClient.ConnectTimeoutMs == 0 {
		c.RpcClient.ConnectTimeoutMs = 10000
	}
	if c.RpcClient.RateLimit == 0 {
		c.RpcClient.RateLimit = 10
		logrus.Infof("RpcClient.RateLimit not set, defaulting to %.0f req/s", c.RpcClient.RateLimit)
	}
	if c.RpcClient.BurstLimit == 0 {
		c.RpcClient.BurstLimit = int(c.RpcClient.RateLimit)
	}
	if c.RpcClient.MaxBatchSize == 0 {
		c.RpcClient.MaxBatchSize = 100
	}
	if c.Modules.PollIntervalMs == 0 {
		c.Modules.PollIntervalMs = 15000
		logrus.Infof("Modules.PollIntervalMs not set, defaulting to %d ms", c.Modules.PollIntervalMs)
	}
	if c.BalanceCache.Backend == "" {
		c.BalanceCache.Backend = "sqlite"
		logrus.Infof("BalanceCache.Backend not set, defaulting to %s", c.BalanceCache.Backend)
	}
	if c.BalanceCache.Path == "" {
		switch c.BalanceCache.Backend {
		case "sqlite":
			c.BalanceCache.Path = "data/balances.db"
		case "wal":
			c.BalanceCache.Path = "data/balances-wal"
		}
	}
	if c.Cache.DefaultExpirationMinutes == 0 {
		c.Cache.DefaultExpirationMinutes = 5
	}
	if c.Cache.CleanupIntervalMinutes == 0 {
		c.Cache.CleanupIntervalMinutes = 10
	}

	if c.TokenPriceSvc.MaxTokensPerBatchRequest == 0 {
		c.TokenPriceSvc.MaxTokensPerBatchRequest = 30 // DEX Screener limit
		logrus.Infof("MaxTokensPerBatchRequest for TokenPriceSvc not set, defaulting to %d", c.TokenPriceSvc.MaxTokensPerBatchRequest)
	}
	if c.TokenPriceSvc.CacheTTLMinutes == 0 {
		c.TokenPriceSvc.CacheTTLMinutes = 60
		logrus.Infof("CacheTTLMinutes for TokenPriceSvc not set, defaulting to %d minutes", c.TokenPriceSvc.CacheTTLMinutes)
	}
	if c.DEXScreener.BaseURL == "" {
		c.DEXScreener.BaseURL = "https://api.dexscreener.com"
		logrus.Infof("DEXScreener.BaseURL not set, defaulting to %s", c.DEXScreener.BaseURL)
	}
	if c.DEXScreener.RequestTimeoutMillis == 0 {
		c.DEXScreener.RequestTimeoutMillis = 10000
		logrus.Infof("DEXScreener.RequestTimeoutMillis not set, defaulting to %d ms", c.DEXScreener.RequestTimeoutMillis)
	}
	if c.TokenPriceSvc.RequestTimeoutMillis == 0 {
		c.TokenPriceSvc.RequestTimeoutMillis = c.DEXScreener.RequestTimeoutMillis
		logrus.Infof("TokenPriceSvc.RequestTimeoutMillis not set, defaulting to DEXScreener.RequestTimeoutMillis: %d ms", c.TokenPriceSvc.RequestTimeoutMillis)
	}
}

func (c *Config) validate() error {
	switch c.BalanceCache.Backend {
	case "sqlite", "wal", "memory", "none":
	default:
		return fmt.Errorf("unknown balanceCache.backend %q", c.BalanceCache.Backend)
	}
	seen := make(map[string]struct{}, len(c.Networks))
	for i, n := range c.Networks {
		id := strings.ToLower(n.Identifier)
		if id == "" {
			return fmt.Errorf("networks[%d]: identifier is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("networks[%d]: duplicate identifier %q", i, n.Identifier)
		}
		seen[id] = struct{}{}
	}
	for i, ch := range c.Chains {
		if ch.ID == "" {
			return fmt.Errorf("chains[%d]: id is required", i)
		}
		if ch.AccountFormat != "" && ch.AccountFormat != entity.AccountFormatEthereum && ch.AccountFormat != entity.AccountFormatSS58 {
			return fmt.Errorf("chains[%d]: unknown accountFormat %q", i, ch.AccountFormat)
		}
	}
	for _, n := range c.Networks {
		if n.DEXScreenerChainID == "" && n.ChainID != 0 {
			logrus.Warnf("Network '%s' (ChainID: %d) is missing dexScreenerChainID. Price fetching for this network via DEXScreener might fail.", n.Identifier, n.ChainID)
		}
	}
	return nil
}
