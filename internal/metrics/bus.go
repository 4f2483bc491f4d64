// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_bus_published_total",
		Help: "Total number of notifications published, by event",
	}, []string{"event"})

	BusListenerPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_bus_listener_panics_total",
		Help: "Total number of recovered listener panics, by event",
	}, []string{"event"})
)

// IncBusPublished records a published notification for the given event.
func IncBusPublished(event string) {
	if event == "" {
		event = "unknown"
	}
	BusPublishedTotal.WithLabelValues(event).Inc()
}

// IncBusListenerPanic records a listener that panicked while handling event.
func IncBusListenerPanic(event string) {
	if event == "" {
		event = "unknown"
	}
	BusListenerPanicsTotal.WithLabelValues(event).Inc()
}
