// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics holds the Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the mailcal pipeline.
type Metrics struct {
	// EmailsTotal counts pipeline invocations by terminal status.
	EmailsTotal *prometheus.CounterVec

	// ExtractionSeconds observes model-call latency per mode.
	ExtractionSeconds *prometheus.HistogramVec

	// ModelTokensTotal counts prompt and completion tokens reported by the API.
	ModelTokensTotal *prometheus.CounterVec

	// NotifyFailuresTotal counts response emails that could not be sent.
	NotifyFailuresTotal prometheus.Counter
}

// Default creates metrics on the default registerer.
func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// New creates a new set of pipeline metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EmailsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailcal_emails_total",
				Help: "Inbound emails processed, by terminal status",
			},
			[]string{"status"},
		),
		ExtractionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailcal_extraction_seconds",
				Help:    "Model call latency",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 90},
			},
			[]string{"mode"},
		),
		ModelTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailcal_model_tokens_total",
				Help: "Tokens reported by the model API",
			},
			[]string{"kind"},
		),
		NotifyFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailcal_notify_failures_total",
				Help: "Response emails that failed to send",
			},
		),
	}
}
