package metrics

import (
	"time"

	"github.com/dipeo/eventplane/pkg/observers"
	"github.com/dipeo/eventplane/pkg/router"
)

// Collector periodically samples the router's connection registry and the
// metrics observer's active-execution buffer into the gauges exported by
// this package, via a ticker-driven poll loop rather than reacting to
// individual events.
type Collector struct {
	router   router.EventRouter
	observer *observers.MetricsObserver
	interval time.Duration
	stopCh   chan struct{}
}

func NewCollector(r router.EventRouter, o *observers.MetricsObserver) *Collector {
	return &Collector{
		router:   r,
		observer: o,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectRouterMetrics()
	c.collectObserverMetrics()
}

func (c *Collector) collectRouterMetrics() {
	if c.router == nil {
		return
	}
	stats := c.router.Stats()
	RouterConnectionsTotal.Set(float64(stats.ActiveConnections))
}

func (c *Collector) collectObserverMetrics() {
	if c.observer == nil {
		return
	}
	ObserverExecutionsActive.Set(float64(len(c.observer.GetAllMetrics())))
}
