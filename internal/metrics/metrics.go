// ============================================================================
// Prometheus metrics
// ============================================================================
//
// Package: internal/metrics
// Purpose: Collect and expose supervisor metrics.
//
// Counters track cumulative session activity (lines, presence changes,
// deaths, checkpoints, recoveries); gauges expose the instantaneous state
// (accumulated playtime, players online). Exposed on /metrics when the
// endpoint is enabled in the configuration.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the supervisor's Prometheus metrics. Each collector
// carries its own registry so independent instances never collide.
type Collector struct {
	registry *prometheus.Registry

	linesProcessed prometheus.Counter
	joins          prometheus.Counter
	leaves         prometheus.Counter
	deaths         prometheus.Counter
	checkpoints    prometheus.Counter
	resets         prometheus.Counter
	rewinds        prometheus.Counter
	sessions       prometheus.Counter

	playtimeSeconds prometheus.Gauge
	playersOnline   prometheus.Gauge
}

// NewCollector creates and registers the metric set.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		linesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hardwarden_lines_processed_total",
			Help: "Total number of server log lines consumed",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hardwarden_joins_total",
			Help: "Total number of tracked player joins",
		}),
		leaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hardwarden_leaves_total",
			Help: "Total number of tracked player leaves",
		}),
		deaths: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hardwarden_deaths_total",
			Help: "Total number of tracked player deaths",
		}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hardwarden_checkpoints_total",
			Help: "Total number of checkpoint backups taken",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hardwarden_resets_total",
			Help: "Total number of world resets",
		}),
		rewinds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hardwarden_rewinds_total",
			Help: "Total number of world rewinds from backup",
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hardwarden_sessions_total",
			Help: "Total number of supervised sessions started",
		}),
		playtimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hardwarden_playtime_seconds",
			Help: "Accumulated playtime of the current world in seconds",
		}),
		playersOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hardwarden_players_online",
			Help: "Current number of tracked players online",
		}),
	}

	c.registry.MustRegister(
		c.linesProcessed,
		c.joins,
		c.leaves,
		c.deaths,
		c.checkpoints,
		c.resets,
		c.rewinds,
		c.sessions,
		c.playtimeSeconds,
		c.playersOnline,
	)

	return c
}

// RecordLine counts one consumed log line (heartbeats included).
func (c *Collector) RecordLine() { c.linesProcessed.Inc() }

// RecordJoin counts a player join.
func (c *Collector) RecordJoin() { c.joins.Inc() }

// RecordLeave counts a player leave.
func (c *Collector) RecordLeave() { c.leaves.Inc() }

// RecordDeath counts a classified death event.
func (c *Collector) RecordDeath() { c.deaths.Inc() }

// RecordCheckpoint counts a completed checkpoint backup.
func (c *Collector) RecordCheckpoint() { c.checkpoints.Inc() }

// RecordReset counts a world reset.
func (c *Collector) RecordReset() { c.resets.Inc() }

// RecordRewind counts a world rewind.
func (c *Collector) RecordRewind() { c.rewinds.Inc() }

// RecordSession counts a supervised session start.
func (c *Collector) RecordSession() { c.sessions.Inc() }

// UpdateState refreshes the instantaneous gauges.
func (c *Collector) UpdateState(playtimeSeconds float64, playersOnline int) {
	c.playtimeSeconds.Set(playtimeSeconds)
	c.playersOnline.Set(float64(playersOnline))
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer exposes /metrics on the given port. Blocks; run it in its
// own goroutine.
func (c *Collector) StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
