// Package metrics exports JSON-RPC call metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

const (
	// Namespace prefixes every metric name.
	Namespace = "jsonrpc"

	// MethodUnknown labels calls to methods that were not registered.
	MethodUnknown = "unknown"
	// MethodNone labels payloads that failed before a method was read.
	MethodNone = "none"
)

// Collector records call counts and latencies. It implements jsonrpc.Observer.
type Collector struct {
	gatherer prometheus.Gatherer
	known    map[string]bool

	// CallsTotal counts calls by method and outcome code ("0" on success).
	CallsTotal *prometheus.CounterVec
	// CallDurationSeconds observes call latency by method.
	CallDurationSeconds *prometheus.HistogramVec
}

// New creates a Collector and registers its metrics with reg. Only the
// listed methods, plus rpc.discover, are used as label values; anything
// else is recorded as "unknown" so that callers cannot inflate cardinality.
//
// A nil reg uses a fresh registry.
func New(reg *prometheus.Registry, methods ...string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		gatherer: reg,
		known:    make(map[string]bool, len(methods)+1),
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "calls_total",
				Help:      "Total number of JSON-RPC calls. Broken down by method and error code (0 on success).",
			},
			[]string{"method", "code"},
		),
		CallDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "call_duration_seconds",
				Help:      "Latency in seconds of JSON-RPC calls. Broken down by method.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	c.known[jsonrpc.DiscoverMethod] = true
	for _, m := range methods {
		c.known[m] = true
	}

	for _, collector := range []prometheus.Collector{c.CallsTotal, c.CallDurationSeconds} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ForRegistry creates a Collector labelling every method registered in r.
func ForRegistry(reg *prometheus.Registry, r *jsonrpc.Registry) (*Collector, error) {
	descs := r.Methods()
	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	return New(reg, names...)
}

// ObserveCall implements jsonrpc.Observer.
func (c *Collector) ObserveCall(method string, code int, elapsed time.Duration) {
	label := c.label(method)
	c.CallsTotal.WithLabelValues(label, strconv.Itoa(code)).Inc()
	if method != "" {
		c.CallDurationSeconds.WithLabelValues(label).Observe(elapsed.Seconds())
	}
}

func (c *Collector) label(method string) string {
	switch {
	case method == "":
		return MethodNone
	case c.known[method]:
		return method
	default:
		return MethodUnknown
	}
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

var _ jsonrpc.Observer = (*Collector)(nil)
