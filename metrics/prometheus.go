// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roitracker"

// InitializePrometheusMetrics makes Prometheus the active metrics
// implementation.  Calling it again is a no-op.
func InitializePrometheusMetrics() {
	if _, ok := metrics.(*prometheusMetrics); !ok {
		metrics = &prometheusMetrics{}
	}
}

type prometheusMetrics struct {
	counters sync.Map
	gauges   sync.Map
}

func (o *prometheusMetrics) GetOrCreateCountMeter(name, help string) CountMeter {
	if m, ok := o.counters.Load(name); ok {
		return m.(CountMeter)
	}
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
	if err := prometheus.Register(counter); err != nil {
		log.Warnf("Unable to register metric %s: %v", name, err)
	}
	m, _ := o.counters.LoadOrStore(name, &promCountMeter{counter})
	return m.(CountMeter)
}

func (o *prometheusMetrics) GetOrCreateGaugeMeter(name, help string) GaugeMeter {
	if m, ok := o.gauges.Load(name); ok {
		return m.(GaugeMeter)
	}
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
	if err := prometheus.Register(gauge); err != nil {
		log.Warnf("Unable to register metric %s: %v", name, err)
	}
	m, _ := o.gauges.LoadOrStore(name, &promGaugeMeter{gauge})
	return m.(GaugeMeter)
}

func (o *prometheusMetrics) GetOrCreateHandler() http.Handler {
	return promhttp.Handler()
}

type promCountMeter struct {
	counter prometheus.Counter
}

func (c *promCountMeter) Add(i int64) {
	c.counter.Add(float64(i))
}

type promGaugeMeter struct {
	gauge prometheus.Gauge
}

func (c *promGaugeMeter) Set(v float64) {
	c.gauge.Set(v)
}
