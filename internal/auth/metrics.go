// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// Operation outcomes recorded by Metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Metrics counts auth operations by outcome.
// A failure is a client-caused rejection; an error is an internal fault.
type Metrics struct {
	Operations *prometheus.CounterVec
}

// NewMetrics creates and registers auth metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopkeep_auth_operations_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}
	reg.MustRegister(m.Operations)
	return m
}

func (m *Metrics) record(operation, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}
