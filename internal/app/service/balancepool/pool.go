package balancepool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"
)

// Status is the aggregate state published with every update.
type Status string

const (
	// StatusCached means module subscriptions are not open; balances come from the durable cache.
	StatusCached Status = "cached"
	// StatusInitialising means subscriptions are open but some identities have not reported yet.
	StatusInitialising Status = "initialising"
	// StatusLive means every watched identity has reported at least once.
	StatusLive Status = "live"
)

// Update is one publish to consumers.
type Update struct {
	Status   Status
	Balances entity.Balances
}

type subscriptionState int

const (
	stateClosed subscriptionState = iota
	stateOpen
	stateClosing
)

func (s subscriptionState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Pool aggregates balances from every balance module into one in-memory map
// keyed by balance identity and fans it out to consumers.
//
// All mutable state is owned by a single goroutine. Public methods, module
// callbacks and timers hand work to it through cmds.
type Pool struct {
	cfg     Config
	logger  port.Logger
	metrics *Metrics
	modules map[string]port.BalanceModule

	ctx       context.Context
	cancel    context.CancelFunc
	cmds      chan func()
	opened    chan openedEvent
	opening   sync.WaitGroup
	stopped   chan struct{}
	closeOnce sync.Once

	latest atomic.Pointer[Update]

	// Owned by the run loop.
	balances     map[string]entity.BalanceRecord
	initialising map[string]struct{}

	state       subscriptionState
	generation  uint64
	handles     []port.CloseFunc
	pendingOpen bool
	wantOpen    bool
	teardowns   map[*teardown]struct{}

	consumers          map[string]*consumer
	consumerCloseSeq   uint64
	consumerCloseTimer *time.Timer
	persistTicker      *time.Ticker

	chainData    *entity.ChainData
	accounts     []entity.Account
	haveAccounts bool
	settings     *entity.Settings
	applied      *watchInputs
	spec         entity.WatchSpec
	inputSeq     uint64
	inputTimer   *time.Timer

	publishSeq   uint64
	publishTimer *time.Timer
	initTimer    *time.Timer
}

// New hydrates the pool from the durable cache and starts its run loop.
// Module subscriptions are only opened once a consumer subscribes.
func New(cfg Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:          cfg,
		logger:       cfg.Logger,
		metrics:      NewMetrics(cfg.PrometheusReg, cfg.Name),
		modules:      make(map[string]port.BalanceModule, len(cfg.Modules)),
		ctx:          ctx,
		cancel:       cancel,
		cmds:         make(chan func(), 64),
		opened:       make(chan openedEvent, 1),
		stopped:      make(chan struct{}),
		balances:     make(map[string]entity.BalanceRecord),
		initialising: make(map[string]struct{}),
		teardowns:    make(map[*teardown]struct{}),
		consumers:    make(map[string]*consumer),
		spec:         make(entity.WatchSpec),
	}
	for _, m := range cfg.Modules {
		p.modules[m.Type()] = m
	}

	p.hydrate()
	p.latest.Store(p.currentUpdate())

	go p.run()
	return p, nil
}

// Snapshot returns the most recently published update.
func (p *Pool) Snapshot() Update {
	return *p.latest.Load()
}

// Close stops the run loop, tears down module subscriptions immediately and
// detaches every consumer. It is safe to call more than once.
func (p *Pool) Close() error {
	p.closeOnce.Do(p.cancel)
	<-p.stopped
	return nil
}

func (p *Pool) run() {
	defer close(p.stopped)

	chainCh := p.cfg.Registry.WatchChainData(p.ctx)
	accountsCh := p.cfg.Keyring.WatchAccounts(p.ctx)
	settingsCh := p.cfg.Settings.WatchSettings(p.ctx)

	for {
		var persistC <-chan time.Time
		if p.persistTicker != nil {
			persistC = p.persistTicker.C
		}

		select {
		case <-p.ctx.Done():
			p.shutdown()
			return
		case fn := <-p.cmds:
			fn()
		case ev := <-p.opened:
			p.onOpened(ev.gen, ev.handles)
		case data, ok := <-chainCh:
			if !ok {
				chainCh = nil
				continue
			}
			p.chainData = &data
			p.onInputsChanged()
		case accounts, ok := <-accountsCh:
			if !ok {
				accountsCh = nil
				continue
			}
			p.accounts = accounts
			p.haveAccounts = true
			p.onInputsChanged()
		case settings, ok := <-settingsCh:
			if !ok {
				settingsCh = nil
				continue
			}
			p.settings = &settings
			p.onInputsChanged()
		case <-persistC:
			p.persist()
		}
	}
}

// post schedules fn on the run loop. It reports false once the pool is closed.
func (p *Pool) post(fn func()) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}
	select {
	case p.cmds <- fn:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// after runs fn on the run loop once d has elapsed.
func (p *Pool) after(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { p.post(fn) })
}

func (p *Pool) shutdown() {
	for _, t := range []*time.Timer{p.publishTimer, p.inputTimer, p.initTimer, p.consumerCloseTimer} {
		if t != nil {
			t.Stop()
		}
	}
	p.stopPersistTicker()
	if len(p.consumers) > 0 {
		p.persist()
	}
	for id, c := range p.consumers {
		c.stop()
		delete(p.consumers, id)
	}
	p.metrics.Consumers.Set(0)

	for _, closeFn := range p.handles {
		closeFn()
	}
	p.handles = nil
	p.opening.Wait()
	for drained := false; !drained; {
		select {
		case ev := <-p.opened:
			for _, closeFn := range ev.handles {
				closeFn()
			}
		default:
			drained = true
		}
	}
	for t := range p.teardowns {
		t.timer.Stop()
		t.run()
	}
	p.teardowns = nil
	p.state = stateClosed
	p.logger.Info("balance pool stopped", "pool", p.cfg.Name, "records", len(p.balances))
}

func (p *Pool) status() Status {
	switch {
	case p.state != stateOpen:
		return StatusCached
	case len(p.initialising) > 0:
		return StatusInitialising
	default:
		return StatusLive
	}
}

func (p *Pool) currentUpdate() *Update {
	return &Update{
		Status:   p.status(),
		Balances: entity.BalancesFromMap(p.balances),
	}
}

// schedulePublish (re)starts the publish debounce.
func (p *Pool) schedulePublish() {
	p.publishSeq++
	seq := p.publishSeq
	if p.publishTimer != nil {
		p.publishTimer.Stop()
	}
	p.publishTimer = p.after(p.cfg.PublishDebounce, func() {
		if seq != p.publishSeq {
			return
		}
		p.publishTimer = nil
		p.publish()
	})
}

func (p *Pool) publish() {
	u := p.currentUpdate()
	p.latest.Store(u)
	for _, c := range p.consumers {
		c.deliver(u)
	}
	p.metrics.Publishes.Inc()
	p.logger.Debug("published balances", "status", string(u.Status), "records", u.Balances.Len(), "consumers", len(p.consumers))
}

func (p *Pool) recordsChanged() {
	p.metrics.RecordsTracked.Set(float64(len(p.balances)))
}

func (p *Pool) hasModule(source string) bool {
	_, ok := p.modules[source]
	return ok
}
