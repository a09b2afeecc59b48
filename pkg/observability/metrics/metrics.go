// Package metrics exposes a reactor's lifecycle as Prometheus metrics. It
// reads the reactor's public accessors on every scrape rather than
// reaching into its internals, so a Collector can be wired to any Reactor
// without the core importing prometheus.
package metrics

import (
	"sync"

	"github.com/fluxorio/reactor/pkg/reactor"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements prometheus.Collector for one or more reactors.
type Collector struct {
	mu       sync.Mutex
	reactors map[string]*reactor.Reactor

	status      *prometheus.Desc
	restarts    *prometheus.Desc
	publishers  *prometheus.Desc
	subscribers *prometheus.Desc
}

// New returns an empty Collector. Register it with a prometheus.Registerer
// and attach reactors with Watch.
func New() *Collector {
	return &Collector{
		reactors: map[string]*reactor.Reactor{},
		status: prometheus.NewDesc(
			"reactor_status", "Current lifecycle status, one-hot per label value.",
			[]string{"reactor", "status"}, nil,
		),
		restarts: prometheus.NewDesc(
			"reactor_restarts_total", "Number of reboots performed.",
			[]string{"reactor"}, nil,
		),
		publishers: prometheus.NewDesc(
			"reactor_publishers", "Number of attached publisher channels.",
			[]string{"reactor"}, nil,
		),
		subscribers: prometheus.NewDesc(
			"reactor_subscribers", "Number of attached subscriber channels.",
			[]string{"reactor"}, nil,
		),
	}
}

// Watch registers r under name so its metrics are reported on every scrape.
func (c *Collector) Watch(name string, r *reactor.Reactor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactors[name] = r
}

// Unwatch stops reporting metrics for name.
func (c *Collector) Unwatch(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reactors, name)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.status
	ch <- c.restarts
	ch <- c.publishers
	ch <- c.subscribers
}

// Collect implements prometheus.Collector, reading each watched reactor's
// current status via its public accessors.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	snapshot := make(map[string]*reactor.Reactor, len(c.reactors))
	for name, r := range c.reactors {
		snapshot[name] = r
	}
	c.mu.Unlock()

	for name, r := range snapshot {
		st := r.Status()
		for _, s := range []reactor.Status{
			reactor.StatusCreated, reactor.StatusRunning, reactor.StatusFaulted,
			reactor.StatusRebooting, reactor.StatusImploded,
		} {
			value := 0.0
			if s == st {
				value = 1.0
			}
			ch <- prometheus.MustNewConstMetric(c.status, prometheus.GaugeValue, value, name, s.String())
		}
		ch <- prometheus.MustNewConstMetric(c.restarts, prometheus.CounterValue, float64(r.Restarts()), name)
		ch <- prometheus.MustNewConstMetric(c.publishers, prometheus.GaugeValue, float64(len(r.GetPublisherIdents())), name)
		ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(len(r.GetSubscriberIdents())), name)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
