// Package metrics contains the prometheus instrumentation for the fetchers.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type CacheReadStatus string

const (
	CacheReadStatusHit   CacheReadStatus = "hit"
	CacheReadStatusMiss  CacheReadStatus = "miss"
	CacheReadStatusError CacheReadStatus = "error"
)

// FetchMetrics instruments the log and state fetchers of one chain.
type FetchMetrics struct {
	chain string

	// Outcomes of eth_getLogs calls (ok, split, fatal).
	rpcRequests *prometheus.CounterVec

	// Number of times a block range was bisected.
	rangeSplits *prometheus.CounterVec

	// Multicall attempts partitioned by concurrency limit and status.
	multicallAttempts *prometheus.CounterVec

	// Response cache reads.
	cacheReads *prometheus.CounterVec

	// Latency of single RPC round trips.
	rpcLatencies *prometheus.HistogramVec
}

// NewFetchMetrics creates the instrumentation for chain. Collectors are shared
// between instances, so calling it repeatedly is safe.
func NewFetchMetrics(chain string) *FetchMetrics {
	m := &FetchMetrics{
		chain: chain,
		rpcRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetcher_rpc_requests",
				Help: "How many eth_getLogs requests were made, partitioned by outcome.",
			},
			[]string{"chain", "outcome"},
		),
		rangeSplits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetcher_range_splits",
				Help: "How many block ranges were bisected after a provider limit.",
			},
			[]string{"chain"},
		),
		multicallAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetcher_multicall_attempts",
				Help: "How many multicalls were issued, partitioned by concurrency limit and status.",
			},
			[]string{"chain", "limit", "status"},
		),
		cacheReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetcher_cache_reads",
				Help: "How many response cache reads occur, partitioned by status (hit, miss, error).",
			},
			[]string{"chain", "status"},
		),
		rpcLatencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fetcher_rpc_latencies",
				Help: "How long RPC round trips take, partitioned by method.",
			},
			[]string{"chain", "method"},
		),
	}
	m.rpcRequests = registerOnce(m.rpcRequests).(*prometheus.CounterVec)
	m.rangeSplits = registerOnce(m.rangeSplits).(*prometheus.CounterVec)
	m.multicallAttempts = registerOnce(m.multicallAttempts).(*prometheus.CounterVec)
	m.cacheReads = registerOnce(m.cacheReads).(*prometheus.CounterVec)
	m.rpcLatencies = registerOnce(m.rpcLatencies).(*prometheus.HistogramVec)
	return m
}

func (m *FetchMetrics) RPCRequests(outcome string) prometheus.Counter {
	return m.rpcRequests.WithLabelValues(m.chain, outcome)
}

func (m *FetchMetrics) RangeSplits() prometheus.Counter {
	return m.rangeSplits.WithLabelValues(m.chain)
}

func (m *FetchMetrics) MulticallAttempts(limit, status string) prometheus.Counter {
	return m.multicallAttempts.WithLabelValues(m.chain, limit, status)
}

func (m *FetchMetrics) CacheReads(status CacheReadStatus) prometheus.Counter {
	return m.cacheReads.WithLabelValues(m.chain, string(status))
}

// RPCLatencies returns a new latency timer for method.
func (m *FetchMetrics) RPCLatencies(method string) *prometheus.Timer {
	return prometheus.NewTimer(m.rpcLatencies.WithLabelValues(m.chain, method))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Registers the collector with Prometheus. If an identical collector is already
// registered, returns the existing collector, otherwise returns the provided collector.
func registerOnce(collector prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(collector); err != nil {
		are := &prometheus.AlreadyRegisteredError{}
		if errors.As(err, are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return collector
}
