// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exports RAFF run and vote statistics to Prometheus.
package metrics

import (
	"time"

	"github.com/curioloop/raff/lmlovo"
	"github.com/curioloop/raff/raff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ raff.Observer = (*Metrics)(nil)

// Metrics observes a RAFF problem.
type Metrics struct {
	// LMLOVO runs by final status
	Runs *prometheus.CounterVec

	// Iterations per run
	Iterations prometheus.Histogram

	// Wall time per run
	RunDuration prometheus.Histogram

	// Clusters formed per vote
	Clusters prometheus.Histogram

	// Size of the winning cluster of the last vote
	WinnerSize prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "raff_lmlovo_runs_total",
			Help: "Total LMLOVO runs by final status",
		}, []string{"status"}),

		Iterations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "raff_lmlovo_iterations",
			Help:    "Accepted iterations of each LMLOVO run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),

		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "raff_lmlovo_run_duration_seconds",
			Help:    "Duration of each LMLOVO run",
			Buckets: []float64{1e-5, 1e-4, 5e-4, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		Clusters: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "raff_vote_clusters",
			Help:    "Clusters of candidate solutions formed per vote",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),

		WinnerSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "raff_vote_winner_size",
			Help: "Candidates in the winning cluster of the last vote",
		}),
	}
}

// ObserveRun records a finished LMLOVO run.
func (m *Metrics) ObserveRun(_ int, status lmlovo.Status, iter int, elapsed time.Duration) {
	if m != nil {
		m.Runs.WithLabelValues(status.String()).Inc()
		m.Iterations.Observe(float64(iter))
		m.RunDuration.Observe(elapsed.Seconds())
	}
}

// ObserveVote records the outcome of a vote.
func (m *Metrics) ObserveVote(_, clusters, winner int) {
	if m != nil {
		m.Clusters.Observe(float64(clusters))
		m.WinnerSize.Set(float64(winner))
	}
}
