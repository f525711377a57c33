// Package metrics exports boot manager events as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moffa90/go-dcboot/bootloader"
)

const namespace = "dcboot"

// Collector counts boot events. Observe is a bootloader.EventCallback.
type Collector struct {
	registry *prometheus.Registry

	boots          *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	updates        *prometheus.CounterVec
	swapBlocks     *prometheus.CounterVec
	watchdogResets prometheus.Counter
	reverts        prometheus.Counter
	attempts       prometheus.Gauge
	version        prometheus.Gauge
}

// NewCollector registers the boot metrics with reg. A nil reg gets a fresh
// registry.
func NewCollector(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: reg,
		boots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boots_total",
			Help:      "Boots by persisted state at reset.",
		}, []string{"state"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Boot outcomes by action.",
		}, []string{"action"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Update lifecycle events by outcome.",
		}, []string{"outcome"}),
		swapBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_blocks_total",
			Help:      "Swapped blocks by direction.",
		}, []string{"direction"}),
		watchdogResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_resets_total",
			Help:      "Watchdog resets of an unconfirmed image.",
		}),
		reverts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reverts_total",
			Help:      "Completed reverts to the previous image.",
		}),
		attempts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attempts",
			Help:      "Watchdog reset counter of the unconfirmed image.",
		}),
		version: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "firmware_version",
			Help:      "Version of the image last started.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.boots, c.decisions, c.updates, c.swapBlocks,
		c.watchdogResets, c.reverts, c.attempts, c.version,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register boot metrics: %w", err)
		}
	}
	return c, nil
}

// Observe records e.
func (c *Collector) Observe(e bootloader.Event) {
	switch e.Type {
	case bootloader.EventBoot:
		c.boots.WithLabelValues(e.State.String()).Inc()
		c.attempts.Set(float64(e.Attempts))
	case bootloader.EventJump:
		c.decisions.WithLabelValues(bootloader.ActionJump.String()).Inc()
		c.version.Set(float64(e.Version))
		c.attempts.Set(float64(e.Attempts))
	case bootloader.EventRetry:
		c.decisions.WithLabelValues(bootloader.ActionRetry.String()).Inc()
	case bootloader.EventHalt:
		c.decisions.WithLabelValues(bootloader.ActionHalt.String()).Inc()
	case bootloader.EventUpdateAccepted:
		c.updates.WithLabelValues("accepted").Inc()
	case bootloader.EventUpdateRejected:
		c.updates.WithLabelValues("rejected").Inc()
	case bootloader.EventUpdateRequested:
		c.updates.WithLabelValues("requested").Inc()
	case bootloader.EventConfirmed:
		c.updates.WithLabelValues("confirmed").Inc()
		c.attempts.Set(0)
	case bootloader.EventSwapProgress:
		c.swapBlocks.WithLabelValues(e.Swap.Direction.String()).Inc()
	case bootloader.EventWatchdogReset:
		c.watchdogResets.Inc()
		c.attempts.Set(float64(e.Attempts))
	case bootloader.EventRevertComplete:
		c.reverts.Inc()
	}
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteFile writes the current metrics to path in the text format, for
// node-exporter style collection of one-shot runs.
func (c *Collector) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
