// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the control server's ambient Prometheus
// metrics (SPEC_FULL.md §12: "ambient, ops-facing, not a policy
// surface"). This is the supplemented `/metrics` endpoint — there is no
// corresponding entity in spec.md §4.3's endpoint table, but carrying
// observability regardless of feature Non-goals is part of the ambient
// stack (SPEC_FULL.md §10.1 / §14).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the gauges and counters the control server updates
// after every mutation.
type Metrics struct {
	BlockedDomains   prometheus.Gauge
	ActiveAllowances prometheus.Gauge
	HardLockouts     prometheus.Gauge
	GrantsIssued     prometheus.Counter
	Revocations      prometheus.Counter
	ExpirySweeps     prometheus.Counter
}

// New registers and returns the metric set against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BlockedDomains: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "focusshield",
			Name:      "blocked_domains",
			Help:      "Number of domains currently in the effective block set.",
		}),
		ActiveAllowances: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "focusshield",
			Name:      "active_allowances",
			Help:      "Number of currently active time-bounded allowances.",
		}),
		HardLockouts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "focusshield",
			Name:      "hard_lockouts",
			Help:      "Number of currently active hard lockouts.",
		}),
		GrantsIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "focusshield",
			Name:      "grants_issued_total",
			Help:      "Total allowances granted.",
		}),
		Revocations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "focusshield",
			Name:      "revocations_total",
			Help:      "Total allowances explicitly revoked through the API.",
		}),
		ExpirySweeps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "focusshield",
			Name:      "expiry_sweeps_total",
			Help:      "Total defensive expiry-ticker passes run by the control server.",
		}),
	}
}
