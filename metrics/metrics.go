/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics records repository operation counts and latencies.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector observes the outcome of one repository operation.
type Collector interface {
	Observe(model, operation string, d time.Duration, err error)
}

// Nop drops every observation.
var Nop Collector = nopCollector{}

type nopCollector struct{}

func (nopCollector) Observe(string, string, time.Duration, error) {}

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Prometheus exports operation counters and latency histograms.
type Prometheus struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	outcome    func(error) string
}

// PrometheusOption configures a Prometheus collector.
type PrometheusOption func(*Prometheus)

// WithOutcome overrides how an error maps to the outcome label.
func WithOutcome(fn func(error) string) PrometheusOption {
	return func(p *Prometheus) {
		if fn != nil {
			p.outcome = fn
		}
	}
}

// NewPrometheus registers the repository metrics on registerer, the default
// registerer when nil.
func NewPrometheus(registerer prometheus.Registerer, opts ...PrometheusOption) (*Prometheus, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bunrepo_operations_total",
			Help: "Repository operations by model, operation and outcome",
		}, []string{"model", "operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bunrepo_operation_duration_seconds",
			Help:    "Repository operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"model", "operation"}),
		outcome: defaultOutcome,
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, c := range []prometheus.Collector{p.operations, p.duration} {
		if err := registerer.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register repository metrics: %w", err)
		}
	}
	return p, nil
}

func (p *Prometheus) Observe(model, operation string, d time.Duration, err error) {
	p.operations.WithLabelValues(model, operation, p.outcome(err)).Inc()
	p.duration.WithLabelValues(model, operation).Observe(d.Seconds())
}

func defaultOutcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
