// Package metrics contains support for reporting validation metrics to a Prometheus pushgateway.
// Because bkvalidate runs as a transient process in CI we can't wait around for Prometheus
// to scrape us, we've got to push to them.
//
// All methods are safe to call on a nil *Metrics, in which case they do nothing.
package metrics

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/zachgrayio/bkvalidate/src/cli"
	"github.com/zachgrayio/bkvalidate/src/cli/logging"
	"github.com/zachgrayio/bkvalidate/src/process"
)

var log = logging.Log

// Results of a single validation.
const (
	Passed  = "passed"
	Failed  = "failed"
	Warned  = "warned"
	Skipped = "skipped"
)

// pushTimeout is how long we wait for the pushgateway before giving up on it.
const pushTimeout = 5 * time.Second

// pushRetries is how many times a failed push is retried within pushTimeout.
const pushRetries = 2

// Metrics holds the counters for one run.
type Metrics struct {
	registry           *prometheus.Registry
	validationCounter  *prometheus.CounterVec
	invocationCounter  *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	eventCounter       prometheus.Counter
}

// New creates a new set of metrics, registered against a private registry.
func New() *Metrics {
	u, err := user.Current()
	if err != nil {
		log.Warning("Can't determine current user name for metrics")
		u = &user.User{Username: "unknown"}
	}
	constLabels := prometheus.Labels{
		"user": u.Username,
		"arch": runtime.GOOS + "_" + runtime.GOARCH,
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		// Count of validations of each kind (target, flags, path...)
		validationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bkvalidate_validations_total",
			Help:        "Count of validations performed, by kind and result",
			ConstLabels: constLabels,
		}, []string{"kind", "result"}),
		// Count of times we've invoked the build tool, by subcommand.
		invocationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bkvalidate_tool_invocations_total",
			Help:        "Count of build tool invocations, by subcommand and whether they exited successfully",
			ConstLabels: constLabels,
		}, []string{"command", "success"}),
		invocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "bkvalidate_tool_invocation_duration_seconds",
			Help:        "Durations of build tool invocations",
			Buckets:     prometheus.ExponentialBuckets(0.05, 2, 12),
			ConstLabels: constLabels,
		}, []string{"command"}),
		eventCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bkvalidate_build_events_total",
			Help:        "Count of build events decoded from dry runs",
			ConstLabels: constLabels,
		}),
	}
	m.registry.MustRegister(m.validationCounter, m.invocationCounter, m.invocationDuration, m.eventCounter)
	return m
}

// Registry returns the registry the metrics are registered against.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordValidation records the result of one validation of the given kind.
func (m *Metrics) RecordValidation(kind, result string) {
	if m != nil {
		m.validationCounter.WithLabelValues(kind, result).Inc()
	}
}

// ValidationCounter returns the counter for validations of the given kind with the given result.
func (m *Metrics) ValidationCounter(kind, result string) prometheus.Counter {
	return m.validationCounter.WithLabelValues(kind, result)
}

// RecordEvents records that some build events were decoded.
func (m *Metrics) RecordEvents(n int) {
	if m != nil {
		m.eventCounter.Add(float64(n))
	}
}

// InstrumentRunner wraps a runner so every command it runs is counted and timed.
func (m *Metrics) InstrumentRunner(runner process.Runner) process.Runner {
	if m == nil {
		return runner
	}
	return process.RunnerFunc(func(dir string, argv []string) (*process.Result, error) {
		command := "unknown"
		if len(argv) > 1 {
			command = argv[1]
		}
		start := time.Now()
		result, err := runner.Run(dir, argv)
		m.invocationDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
		m.invocationCounter.WithLabelValues(command, b(err == nil && result.Success())).Inc()
		return result, err
	})
}

// Push sends the metrics to the given pushgateway.
func (m *Metrics) Push(url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	client := retryablehttp.NewClient()
	client.RetryMax = pushRetries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = &cli.HTTPLogWrapper{Log: log}
	pusher := push.New(url, job).Gatherer(m.registry).Client(client.StandardClient())
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		pusher = pusher.Grouping("instance", hostname)
	}
	start := time.Now()
	if err := deadline(pusher.Add, pushTimeout); err != nil {
		return fmt.Errorf("Could not push metrics to %s: %w", url, err)
	}
	log.Debug("Pushed metrics in %0.3fs", time.Since(start).Seconds())
	return nil
}

func b(value bool) string {
	if value {
		return "true"
	}
	return "false"
}

// deadline applies a deadline to an arbitrary function and returns when either the function
// completes or the deadline expires.
func deadline(f func() error, timeout time.Duration) error {
	c := make(chan error, 1)
	go func() {
		c <- f()
	}()
	select {
	case err := <-c:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("Metrics push timed out")
	}
}
