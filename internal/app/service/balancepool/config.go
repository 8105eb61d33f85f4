package balancepool

import (
	"errors"
	"fmt"
	"time"

	"balance_pool/internal/app/port"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultPublishDebounce     = 250 * time.Millisecond
	DefaultInputDebounce       = 2 * time.Second
	DefaultConsumerCloseDelay  = 5 * time.Second
	DefaultModuleCloseDelay    = 10 * time.Second
	DefaultInitialisingTimeout = 30 * time.Second
	DefaultPersistInterval     = time.Minute
	DefaultPersistTimeout      = 10 * time.Second
)

// ErrInvalidConfig is returned by New when the Config is incomplete.
var ErrInvalidConfig = errors.New("invalid balance pool configuration")

// Config holds the dependencies and timings of a Pool.
type Config struct {
	Name          string
	PrometheusReg prometheus.Registerer

	Registry     port.ChainRegistry
	Keyring      port.Keyring
	Settings     port.SettingsStore
	Modules      []port.BalanceModule
	Cache        port.BalanceCache // optional
	ErrorTracker port.ErrorTracker // optional
	Logger       port.Logger

	// PublishDebounce coalesces bursts of merged updates into one consumer publish.
	PublishDebounce time.Duration
	// InputDebounce coalesces registry/keyring/settings changes after the first one.
	InputDebounce time.Duration
	// ConsumerCloseDelay is how long the pool waits after the last consumer
	// leaves before closing module subscriptions.
	ConsumerCloseDelay time.Duration
	// ModuleCloseDelay is how long closed module subscriptions are kept alive
	// before their close handles are invoked.
	ModuleCloseDelay time.Duration
	// InitialisingTimeout bounds how long identities may stay initialising after open.
	InitialisingTimeout time.Duration
	// PersistInterval is the snapshot period while a consumer is attached.
	PersistInterval time.Duration
	PersistTimeout  time.Duration
}

func (c *Config) validate() error {
	if c.Name == "" {
		return errors.New("pool name is required")
	}
	if c.Registry == nil {
		return errors.New("chain registry is required")
	}
	if c.Keyring == nil {
		return errors.New("keyring is required")
	}
	if c.Settings == nil {
		return errors.New("settings store is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	seen := make(map[string]struct{}, len(c.Modules))
	for i, m := range c.Modules {
		if m == nil {
			return fmt.Errorf("module %d is nil", i)
		}
		if m.Type() == "" {
			return fmt.Errorf("module %d has an empty type", i)
		}
		if _, dup := seen[m.Type()]; dup {
			return fmt.Errorf("duplicate module type %q", m.Type())
		}
		seen[m.Type()] = struct{}{}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PublishDebounce <= 0 {
		c.PublishDebounce = DefaultPublishDebounce
	}
	if c.InputDebounce <= 0 {
		c.InputDebounce = DefaultInputDebounce
	}
	if c.ConsumerCloseDelay <= 0 {
		c.ConsumerCloseDelay = DefaultConsumerCloseDelay
	}
	if c.ModuleCloseDelay <= 0 {
		c.ModuleCloseDelay = DefaultModuleCloseDelay
	}
	if c.InitialisingTimeout <= 0 {
		c.InitialisingTimeout = DefaultInitialisingTimeout
	}
	if c.PersistInterval <= 0 {
		c.PersistInterval = DefaultPersistInterval
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = DefaultPersistTimeout
	}
}
