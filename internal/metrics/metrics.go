// Package metrics collects Prometheus metrics for a runner invocation:
// Open Cloud requests, task polls, streamed log entries and the final
// result. A run is short-lived, so metrics are exported by writing a
// node-exporter textfile rather than by serving /metrics.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"yqhp/luau-runner/internal/execution"
	"yqhp/luau-runner/pkg/types"
)

// Collector provides runner metrics collection.
type Collector struct {
	registry *prometheus.Registry

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Task metrics
	pollsTotal *prometheus.CounterVec

	// Log metrics
	logPages          prometheus.Counter
	logEntries        *prometheus.CounterVec
	logEntriesDropped prometheus.Counter

	// Result metrics
	runDuration prometheus.Gauge
	runSuccess  prometheus.Gauge
	runErrors   *prometheus.CounterVec
	testsTotal  *prometheus.GaugeVec
	passRate    prometheus.Gauge
	lastRunTime prometheus.Gauge
}

// NewCollector creates a new runner metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "luau_runner"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "opencloud",
			Name:      "requests_total",
			Help:      "Total number of Open Cloud requests by operation and status code",
		},
		[]string{"op", "code"},
	)

	c.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "opencloud",
			Name:      "request_duration_seconds",
			Help:      "Open Cloud request latency",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"op"},
	)

	c.pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "polls_total",
			Help:      "Total number of task status polls by observed state",
		},
		[]string{"state"},
	)

	c.logPages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logs",
			Name:      "pages_total",
			Help:      "Total number of log pages fetched",
		},
	)

	c.logEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logs",
			Name:      "entries_total",
			Help:      "Total number of log entries forwarded by message type",
		},
		[]string{"type"},
	)

	c.logEntriesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logs",
			Name:      "entries_suppressed_total",
			Help:      "Total number of log entries dropped as noise or unspecified",
		},
	)

	c.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "duration_seconds",
		Help:      "Wall time of the last run",
	})

	c.runSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "success",
		Help:      "1 if the last run completed and its tests succeeded, 0 otherwise",
	})

	c.runErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "errors_total",
			Help:      "Total number of failed runs by error kind",
		},
		[]string{"kind"},
	)

	c.testsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tests",
			Name:      "count",
			Help:      "Test counts reported by the last run",
		},
		[]string{"result"},
	)

	c.passRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "tests",
		Name:      "pass_rate_percent",
		Help:      "Percentage of tests that passed in the last run",
	})

	c.lastRunTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "last_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})

	c.registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.pollsTotal,
		c.logPages,
		c.logEntries,
		c.logEntriesDropped,
		c.runDuration,
		c.runSuccess,
		c.runErrors,
		c.testsTotal,
		c.passRate,
		c.lastRunTime,
	)

	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRequest records one Open Cloud request.
func (c *Collector) ObserveRequest(op string, status int, elapsed time.Duration, err error) {
	code := strconv.Itoa(status)
	if status == 0 && err != nil {
		code = "error"
	}
	c.requestsTotal.WithLabelValues(op, code).Inc()
	c.requestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObservePoll records one task status poll.
func (c *Collector) ObservePoll(state types.TaskState) {
	c.pollsTotal.WithLabelValues(string(state)).Inc()
}

// ObserveLogs records the outcome of a log stream.
func (c *Collector) ObserveLogs(stats execution.LogStats) {
	c.logPages.Add(float64(stats.Pages))
	c.logEntriesDropped.Add(float64(stats.Suppressed))
	for typ, n := range stats.ByType {
		c.logEntries.WithLabelValues(string(typ)).Add(float64(n))
	}
}

// ObserveRun records the outcome of a run.
func (c *Collector) ObserveRun(summary *execution.Summary, err error, elapsed time.Duration) {
	c.runDuration.Set(elapsed.Seconds())
	c.lastRunTime.SetToCurrentTime()

	if err != nil {
		c.runSuccess.Set(0)
		kind := string(execution.KindOf(err))
		if kind == "" {
			kind = "UNKNOWN"
		}
		c.runErrors.WithLabelValues(kind).Inc()
		return
	}

	if summary.Success() {
		c.runSuccess.Set(1)
	} else {
		c.runSuccess.Set(0)
	}
	c.testsTotal.WithLabelValues("total").Set(float64(summary.Result.Total))
	c.testsTotal.WithLabelValues("passed").Set(float64(summary.Result.Passed))
	c.testsTotal.WithLabelValues("failed").Set(float64(summary.Result.Failed))
	c.passRate.Set(summary.PassRate)
}

// WriteTextfile writes every metric to path in the text exposition format,
// atomically, for the node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
