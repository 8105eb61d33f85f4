package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"balance_pool/internal/app/port"
	"balance_pool/internal/app/service/balancepool"
	"balance_pool/internal/config"
	"balance_pool/internal/domain/entity"
	"balance_pool/internal/infrastructure/balancecache"
	"balance_pool/internal/infrastructure/balancemodule/evm"
	"balance_pool/internal/infrastructure/errortracker"
	clientprovider "balance_pool/internal/infrastructure/network/client"
	networkdefinition "balance_pool/internal/infrastructure/network/definition"
	"balance_pool/internal/infrastructure/pricing"
	"balance_pool/internal/infrastructure/registry"
	"balance_pool/internal/infrastructure/restapi"
	"balance_pool/internal/infrastructure/settings"
	"balance_pool/internal/infrastructure/tokenloader"
	"balance_pool/internal/infrastructure/walletloader"
	"balance_pool/internal/pkg/logger"
	"balance_pool/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", "path", cfgPath, "error", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Info("Balance pool service starting", "config", cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	netDefProvider := networkdefinition.NewNetworkDefinitionProvider(logger.NewComponentLogger("networks"), cfg.Networks)
	tokenProvider := tokenloader.NewTokenLoader(cfg.Registry.TokensDir, logger.NewComponentLogger("tokens"))
	chainRegistry := registry.NewFileRegistry(netDefProvider, tokenProvider, cfg.Chains, logger.NewComponentLogger("registry"))
	if err := chainRegistry.Reload(); err != nil {
		logger.Fatal("Failed to load chain registry", "error", err)
	}

	keyring := walletloader.NewWalletFileLoader(cfg.Wallets.File, logger.NewComponentLogger("wallets"))
	if err := keyring.Reload(); err != nil {
		logger.Fatal("Failed to load wallets", "error", err)
	}
	settingsStore := settings.NewStore(cfg.Settings, logger.NewComponentLogger("settings"))

	go chainRegistry.Run(ctx, time.Duration(cfg.Registry.ReloadIntervalSeconds)*time.Second)
	go keyring.Run(ctx, time.Duration(cfg.Wallets.ReloadIntervalSeconds)*time.Second)

	clients := clientprovider.NewEVMClientProvider(clientprovider.Options{
		ConnectTimeout: time.Duration(cfg.RpcClient.ConnectTimeoutMs) * time.Millisecond,
		CallTimeout:    time.Duration(cfg.RpcClient.DefaultTimeoutMs) * time.Millisecond,
		RateLimit:      cfg.RpcClient.RateLimit,
		Burst:          cfg.RpcClient.BurstLimit,
		MaxBatchSize:   cfg.RpcClient.MaxBatchSize,
	}, logger.NewComponentLogger("rpc"))
	defer clients.Close()

	moduleOpts := evm.Options{PollInterval: time.Duration(cfg.Modules.PollIntervalMs) * time.Millisecond}
	var modules []port.BalanceModule
	if !cfg.Modules.DisableNative {
		modules = append(modules, evm.NewNativeModule(chainRegistry, clients, moduleOpts, logger.NewComponentLogger(entity.TokenTypeEvmNative)))
	}
	if !cfg.Modules.DisableERC20 {
		modules = append(modules, evm.NewERC20Module(chainRegistry, clients, moduleOpts, logger.NewComponentLogger(entity.TokenTypeEvmERC20)))
	}

	store, err := balancecache.Open(ctx, cfg.BalanceCache)
	if err != nil {
		logger.Fatal("Failed to open balance cache", "backend", cfg.BalanceCache.Backend, "error", err)
	}
	var cache port.BalanceCache
	if store != nil {
		cache = store
		defer store.Close()
	}

	pool, err := balancepool.New(balancepool.Config{
		Name:                "main",
		PrometheusReg:       reg,
		Registry:            chainRegistry,
		Keyring:             keyring,
		Settings:            settingsStore,
		Modules:             modules,
		Cache:               cache,
		ErrorTracker:        errortracker.NewLogTracker(logger.NewComponentLogger("errors"), reg),
		Logger:              logger.NewComponentLogger("balancepool"),
		PublishDebounce:     cfg.BalancePool.PublishDebounce(),
		InputDebounce:       cfg.BalancePool.InputDebounce(),
		ConsumerCloseDelay:  cfg.BalancePool.ConsumerCloseDelay(),
		ModuleCloseDelay:    cfg.BalancePool.ModuleCloseDelay(),
		InitialisingTimeout: cfg.BalancePool.InitialisingTimeout(),
		PersistInterval:     cfg.BalancePool.PersistInterval(),
	})
	if err != nil {
		logger.Fatal("Failed to create balance pool", "error", err)
	}

	var rates port.RateProvider
	if cfg.TokenPriceSvc.Enabled {
		dexClient := pricing.NewDEXScreenerClient(
			cfg.DEXScreener.BaseURL,
			time.Duration(cfg.TokenPriceSvc.RequestTimeoutMillis)*time.Millisecond,
			cfg.TokenPriceSvc.MaxTokensPerBatchRequest,
			logger.NewComponentLogger("dexscreener"),
		)
		rates = pricing.NewPriceService(
			dexClient,
			time.Duration(cfg.TokenPriceSvc.CacheTTLMinutes)*time.Minute,
			time.Duration(cfg.Cache.CleanupIntervalMinutes)*time.Minute,
			cfg.TokenPriceSvc.MaxTokensPerBatchRequest,
			logger.NewComponentLogger("pricing"),
		)
	}

	handler := restapi.NewBalanceHandler(pool, chainRegistry, rates, logger.NewComponentLogger("api"))
	router := restapi.SetupRouter(handler, restapi.RouterConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		MetricsPath:  cfg.Server.MetricsPath,
		Gatherer:     reg,
		Logger:       logger.NewComponentLogger("http"),
	})

	srv := &http.Server{
		Addr:         ":" + strings.TrimPrefix(cfg.Server.Port, ":"),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := pool.Close(); err != nil {
		logger.Error("Failed to close balance pool", "error", err)
	}
	logger.Info("Server exiting")
}
