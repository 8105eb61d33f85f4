package balancepool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// consumer delivers updates on its own goroutine. Only the latest update is
// kept, so a slow callback never blocks the pool and may unsubscribe itself.
type consumer struct {
	id       string
	onUpdate func(Update)
	latest   atomic.Pointer[Update]
	notify   chan struct{}
	done     chan struct{}
	poolDone <-chan struct{}
	stopOnce sync.Once
}

// newConsumer creates a consumer whose goroutine also exits once poolDone is
// closed, including when it never got registered with the run loop.
func newConsumer(onUpdate func(Update), poolDone <-chan struct{}) *consumer {
	return &consumer{
		id:       uuid.NewString(),
		onUpdate: onUpdate,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		poolDone: poolDone,
	}
}

func (c *consumer) deliver(u *Update) {
	c.latest.Store(u)
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *consumer) run() {
	for {
		select {
		case <-c.done:
			return
		case <-c.poolDone:
			return
		case <-c.notify:
			select {
			case <-c.done:
				return
			case <-c.poolDone:
				return
			default:
			}
			if u := c.latest.Load(); u != nil {
				c.onUpdate(*u)
			}
		}
	}
}

func (c *consumer) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Subscribe registers onUpdate. It is called right away with the current
// balances and then after every debounced change. The first consumer opens
// module subscriptions; they are closed a grace period after the last one leaves.
//
// The returned function unsubscribes and may be called from within onUpdate.
func (p *Pool) Subscribe(onUpdate func(Update)) (unsubscribe func()) {
	c := newConsumer(onUpdate, p.ctx.Done())
	go c.run()
	if !p.post(func() { p.addConsumer(c) }) {
		c.stop()
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.stop()
			p.post(func() { p.removeConsumer(c.id) })
		})
	}
}

func (p *Pool) addConsumer(c *consumer) {
	p.consumers[c.id] = c
	p.metrics.Consumers.Set(float64(len(p.consumers)))
	p.cancelConsumerClose()
	if p.persistTicker == nil {
		p.persistTicker = time.NewTicker(p.cfg.PersistInterval)
	}
	c.deliver(p.currentUpdate())
	p.logger.Debug("consumer subscribed", "consumer", c.id, "consumers", len(p.consumers))
	p.maybeOpen()
}

func (p *Pool) removeConsumer(id string) {
	if _, ok := p.consumers[id]; !ok {
		return
	}
	delete(p.consumers, id)
	p.metrics.Consumers.Set(float64(len(p.consumers)))
	p.logger.Debug("consumer unsubscribed", "consumer", id, "consumers", len(p.consumers))
	if len(p.consumers) == 0 {
		p.stopPersistTicker()
		p.scheduleConsumerClose()
	}
}

func (p *Pool) scheduleConsumerClose() {
	p.cancelConsumerClose()
	seq := p.consumerCloseSeq
	p.consumerCloseTimer = p.after(p.cfg.ConsumerCloseDelay, func() {
		if seq != p.consumerCloseSeq || len(p.consumers) > 0 {
			return
		}
		p.consumerCloseTimer = nil
		p.persist()
		p.requestClose()
	})
}

func (p *Pool) cancelConsumerClose() {
	p.consumerCloseSeq++
	if p.consumerCloseTimer != nil {
		p.consumerCloseTimer.Stop()
		p.consumerCloseTimer = nil
	}
}
