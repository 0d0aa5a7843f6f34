// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metrics

import (
	"net/http"
	"sync"
)

// metrics is the process wide meter provider.  It defaults to a no-op
// implementation until InitializePrometheusMetrics is called.
var metrics = defaultNoopMetrics()

// Metrics defines the interface for metrics service implementations.
type Metrics interface {
	GetOrCreateCountMeter(name, help string) CountMeter
	GetOrCreateGaugeMeter(name, help string) GaugeMeter
	GetOrCreateHandler() http.Handler
}

// HTTPHandler returns the http handler for retrieving metrics.  It is nil
// when metrics are disabled.
func HTTPHandler() http.Handler {
	return metrics.GetOrCreateHandler()
}

// CountMeter is a monotonically increasing counter.
type CountMeter interface {
	Add(int64)
}

// Counter returns the named counter, creating it on first use.
func Counter(name, help string) CountMeter {
	return metrics.GetOrCreateCountMeter(name, help)
}

// GaugeMeter is a single value which can go up and down.
type GaugeMeter interface {
	Set(float64)
}

// Gauge returns the named gauge, creating it on first use.
func Gauge(name, help string) GaugeMeter {
	return metrics.GetOrCreateGaugeMeter(name, help)
}

// LazyLoadCounter defers creation of a counter until first use so package
// level meters bind to whichever implementation is active at that time.
func LazyLoadCounter(name, help string) func() CountMeter {
	var (
		once  sync.Once
		meter CountMeter
	)
	return func() CountMeter {
		once.Do(func() { meter = Counter(name, help) })
		return meter
	}
}

// LazyLoadGauge is the gauge counterpart of LazyLoadCounter.
func LazyLoadGauge(name, help string) func() GaugeMeter {
	var (
		once  sync.Once
		meter GaugeMeter
	)
	return func() GaugeMeter {
		once.Do(func() { meter = Gauge(name, help) })
		return meter
	}
}
