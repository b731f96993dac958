// Blind controller metrics definitions
//
// Defines all metrics for the blind controller including:
// - Lift position and motion metrics
// - Calibration record persistence metrics
// - Remote API metrics
// - System metrics
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	goruntime "runtime"
	"sync"
	"time"
)

// DeviceMetrics holds all blind controller metrics
type DeviceMetrics struct {
	// Motion metrics
	PositionSteps   *Gauge
	PositionPercent *Gauge
	RequestedSteps  *Gauge
	LimitSteps      *Gauge
	StepsTotal      *Counter
	OperationState  *Gauge
	MoveDuration    *Histogram

	// Request metrics
	LiftRequests *Counter

	// Persistence metrics
	RecordWrites        *Counter
	RecordWriteFailures *Counter

	// Remote API metrics
	WebsocketClients *Gauge
	WebsocketDrops   *Counter

	// System metrics
	HostUptime    *Counter
	GoGoroutines  *Gauge
	GoMemoryHeap  *Gauge
	GoMemoryAlloc *Gauge
	GoGCCycles    *Counter

	// Internal
	startTime time.Time
	registry  *Registry
}

// NewDeviceMetrics creates and registers all blind controller metrics
func NewDeviceMetrics() *DeviceMetrics {
	dm := &DeviceMetrics{
		startTime: time.Now(),
		registry:  NewRegistry(),
	}

	// Motion metrics
	dm.PositionSteps = NewGauge("blindctl_position_steps",
		"Current lift position in steps")
	dm.PositionPercent = NewGauge("blindctl_position_percent",
		"Current lift position as percent of travel")
	dm.RequestedSteps = NewGauge("blindctl_requested_steps",
		"Requested lift position in steps")
	dm.LimitSteps = NewGauge("blindctl_limit_steps",
		"Calibrated travel boundary in steps")
	dm.StepsTotal = NewCounter("blindctl_steps_total",
		"Total steps executed per direction")
	dm.OperationState = NewGauge("blindctl_operation_state",
		"Current motion state (0=stopped, 1=opening, 2=closing)")
	dm.MoveDuration = NewHistogram("blindctl_move_seconds",
		"Time from motion start to arrival", []float64{0.5, 1, 2, 5, 10, 30, 60, 120})

	// Request metrics
	dm.LiftRequests = NewCounter("blindctl_lift_requests_total",
		"Total lift requests per kind")

	// Persistence metrics
	dm.RecordWrites = NewCounter("blindctl_record_writes_total",
		"Total calibration record writes per field")
	dm.RecordWriteFailures = NewCounter("blindctl_record_write_failures_total",
		"Total failed calibration record writes per field")

	// Remote API metrics
	dm.WebsocketClients = NewGauge("blindctl_websocket_clients",
		"Number of connected websocket subscribers")
	dm.WebsocketDrops = NewCounter("blindctl_websocket_drops_total",
		"Total websocket subscribers dropped for not draining updates")

	// System metrics
	dm.HostUptime = NewCounter("blindctl_host_uptime_seconds_total",
		"Total host uptime in seconds")
	dm.GoGoroutines = NewGauge("blindctl_go_goroutines",
		"Number of active goroutines")
	dm.GoMemoryHeap = NewGauge("blindctl_go_memory_heap_bytes",
		"Go heap memory in use")
	dm.GoMemoryAlloc = NewGauge("blindctl_go_memory_alloc_bytes",
		"Go total memory allocated")
	dm.GoGCCycles = NewCounter("blindctl_go_gc_cycles_total",
		"Total Go garbage collection cycles")

	// Register all metrics
	dm.registerAll()

	return dm
}

// registerAll registers all metrics with the internal registry
func (dm *DeviceMetrics) registerAll() {
	metrics := []Metric{
		dm.PositionSteps, dm.PositionPercent, dm.RequestedSteps,
		dm.LimitSteps, dm.StepsTotal, dm.OperationState, dm.MoveDuration,
		dm.LiftRequests,
		dm.RecordWrites, dm.RecordWriteFailures,
		dm.WebsocketClients, dm.WebsocketDrops,
		dm.HostUptime, dm.GoGoroutines, dm.GoMemoryHeap, dm.GoMemoryAlloc,
		dm.GoGCCycles,
	}
	for _, m := range metrics {
		dm.registry.MustRegister(m)
	}
}

// UpdateSystemMetrics updates Go runtime metrics
func (dm *DeviceMetrics) UpdateSystemMetrics() {
	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)

	dm.GoGoroutines.Set(nil, float64(goruntime.NumGoroutine()))
	dm.GoMemoryHeap.Set(nil, float64(m.HeapAlloc))
	dm.GoMemoryAlloc.Set(nil, float64(m.Alloc))
	dm.GoGCCycles.Add(nil, uint64(m.NumGC)-dm.GoGCCycles.Get(nil))
	dm.HostUptime.Add(nil, uint64(time.Since(dm.startTime).Seconds()))
}

// SetPosition updates the actual lift position in steps
func (dm *DeviceMetrics) SetPosition(steps uint16) {
	dm.PositionSteps.Set(nil, float64(steps))
}

// SetPositionPercent updates the actual lift position as percent of travel
func (dm *DeviceMetrics) SetPositionPercent(pct uint8) {
	dm.PositionPercent.Set(nil, float64(pct))
}

// SetRequested updates the requested lift position in steps
func (dm *DeviceMetrics) SetRequested(steps uint16) {
	dm.RequestedSteps.Set(nil, float64(steps))
}

// SetLimits updates the calibrated travel boundaries
func (dm *DeviceMetrics) SetLimits(minPos, maxPos uint16) {
	dm.LimitSteps.Set(Labels{"bound": "min"}, float64(minPos))
	dm.LimitSteps.Set(Labels{"bound": "max"}, float64(maxPos))
}

// RecordStep counts one executed step
func (dm *DeviceMetrics) RecordStep(up bool) {
	direction := "down"
	if up {
		direction = "up"
	}
	dm.StepsTotal.Inc(Labels{"direction": direction})
}

// SetOperation updates the motion state gauge
// States: 0=stopped, 1=opening, 2=closing
func (dm *DeviceMetrics) SetOperation(op string) {
	state := OperationStateStopped
	switch op {
	case "opening":
		state = OperationStateOpening
	case "closing":
		state = OperationStateClosing
	}
	dm.OperationState.Set(nil, float64(state))
}

// ObserveMove records the duration of a completed move
func (dm *DeviceMetrics) ObserveMove(d time.Duration) {
	dm.MoveDuration.Observe(nil, d.Seconds())
}

// RecordLiftRequest counts a lift request ("percent" or "raw")
func (dm *DeviceMetrics) RecordLiftRequest(kind string) {
	dm.LiftRequests.Inc(Labels{"kind": kind})
}

// RecordWrite counts a calibration record write for one field
func (dm *DeviceMetrics) RecordWrite(field string, err error) {
	dm.RecordWrites.Inc(Labels{"field": field})
	if err != nil {
		dm.RecordWriteFailures.Inc(Labels{"field": field})
	}
}

// ClientConnected counts a websocket subscriber attach
func (dm *DeviceMetrics) ClientConnected() {
	dm.WebsocketClients.Inc(nil)
}

// ClientDisconnected counts a websocket subscriber detach
func (dm *DeviceMetrics) ClientDisconnected() {
	dm.WebsocketClients.Dec(nil)
}

// RecordClientDrop counts a subscriber dropped for a full update queue
func (dm *DeviceMetrics) RecordClientDrop() {
	dm.WebsocketDrops.Inc(nil)
}

// Gather returns all metrics in Prometheus text format
func (dm *DeviceMetrics) Gather() string {
	dm.UpdateSystemMetrics()
	return dm.registry.Gather()
}

// Registry returns the internal registry
func (dm *DeviceMetrics) Registry() *Registry {
	return dm.registry
}

// OperationState constants as exported by blindctl_operation_state
const (
	OperationStateStopped = 0
	OperationStateOpening = 1
	OperationStateClosing = 2
)

// Global metrics instance
var globalMetrics *DeviceMetrics
var globalMetricsOnce sync.Once

// GlobalMetrics returns the global device metrics instance
func GlobalMetrics() *DeviceMetrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = NewDeviceMetrics()
	})
	return globalMetrics
}
