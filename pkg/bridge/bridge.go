// Package bridge is the seam between the single-threaded actuator core
// and the smart-home side. The core polls the requested lift pair each
// loop iteration and pushes actual position, operation and limits back
// as it steps; HTTP handlers and the console write requests and read
// snapshots. All attribute state sits behind one mutex, so the core
// itself stays free of locking. Attribute pushes are also mirrored
// into the device metrics.
package bridge

import (
	"sync"
	"time"

	"blindctl/pkg/blind"
	"blindctl/pkg/log"
	"blindctl/pkg/metrics"
)

// Update is the document broadcast to websocket subscribers on every
// attribute push.
type Update struct {
	ActualRaw     uint16 `json:"actual_raw"`
	ActualPercent uint8  `json:"actual_percent"`
	Operation     string `json:"operation"`
}

// Status is the full attribute snapshot served by the status endpoint
// and the console.
type Status struct {
	RequestedRaw     uint16 `json:"requested_raw"`
	RequestedPercent uint8  `json:"requested_percent"`
	ActualRaw        uint16 `json:"actual_raw"`
	ActualPercent    uint8  `json:"actual_percent"`
	Operation        string `json:"operation"`
	MinPos           uint16 `json:"min_pos"`
	MaxPos           uint16 `json:"max_pos"`
}

// Bridge holds the remote-control attributes. It implements the core's
// Attributes interface on one side and the request/snapshot API the
// HTTP server and console use on the other.
type Bridge struct {
	mu sync.Mutex

	reqRaw uint16
	reqPct uint8

	actualRaw uint16
	actualPct uint8
	op        blind.Operation
	moveStart time.Time

	minPos, maxPos uint16

	notify func(Update)

	dm     *metrics.DeviceMetrics
	logger *log.Logger
}

// New builds a bridge seeded from the restored state. The requested
// pair starts at the restored position, so boot does not look like a
// pending request.
func New(minPos, maxPos, current uint16) *Bridge {
	pct := blind.PercentFromRaw(current, minPos, maxPos)
	dm := metrics.GlobalMetrics()
	dm.SetRequested(current)
	return &Bridge{
		reqRaw:    current,
		reqPct:    pct,
		actualRaw: current,
		actualPct: pct,
		op:        blind.OpStopped,
		minPos:    minPos,
		maxPos:    maxPos,
		dm:        dm,
		logger:    log.GetLogger("bridge"),
	}
}

// OnUpdate installs the broadcast hook. Set during wiring, before the
// control loop starts.
func (b *Bridge) OnUpdate(fn func(Update)) {
	b.mu.Lock()
	b.notify = fn
	b.mu.Unlock()
}

// RequestedLift returns the requested lift pair. Polled by the core
// each loop iteration; the raw value is its idempotence key.
func (b *Bridge) RequestedLift() (uint16, uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reqRaw, b.reqPct
}

// SetActualLift records the stepped raw position. Steps arrive one at
// a time, so the sign of the change is the direction.
func (b *Bridge) SetActualLift(raw uint16) {
	b.mu.Lock()
	prev := b.actualRaw
	b.actualRaw = raw
	if raw != prev {
		b.dm.RecordStep(raw > prev)
	}
	b.dm.SetPosition(raw)
	u, fn := b.updateLocked()
	b.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

// SetActualLiftPercent records the position as a percent of travel.
func (b *Bridge) SetActualLiftPercent(pct uint8) {
	b.mu.Lock()
	b.actualPct = pct
	b.dm.SetPositionPercent(pct)
	u, fn := b.updateLocked()
	b.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

// SetOperation records the motion state. Transitions out of and back
// to stopped bracket one move, which feeds the move duration metric.
func (b *Bridge) SetOperation(op blind.Operation) {
	b.mu.Lock()
	prev := b.op
	b.op = op
	if prev == blind.OpStopped && op != blind.OpStopped {
		b.moveStart = time.Now()
	} else if prev != blind.OpStopped && op == blind.OpStopped && !b.moveStart.IsZero() {
		b.dm.ObserveMove(time.Since(b.moveStart))
	}
	b.dm.SetOperation(string(op))
	u, fn := b.updateLocked()
	b.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

// SetLimits publishes the calibrated travel range. Pushed at boot and
// after a completed calibration cycle.
func (b *Bridge) SetLimits(minPos, maxPos uint16) {
	b.mu.Lock()
	b.minPos = minPos
	b.maxPos = maxPos
	b.dm.SetLimits(minPos, maxPos)
	u, fn := b.updateLocked()
	b.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

// updateLocked builds the broadcast document. Caller holds mu; the
// returned hook is invoked after unlocking.
func (b *Bridge) updateLocked() (Update, func(Update)) {
	return Update{
		ActualRaw:     b.actualRaw,
		ActualPercent: b.actualPct,
		Operation:     string(b.op),
	}, b.notify
}

// RequestPercent records a lift request by percent and returns the
// resulting snapshot. The raw key derives from the installed limits;
// values above 100 clamp in the remap downstream.
func (b *Bridge) RequestPercent(pct uint8) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reqPct = pct
	b.reqRaw = blind.TargetFromPercent(pct, b.minPos, b.maxPos)
	b.dm.RecordLiftRequest("percent")
	b.dm.SetRequested(b.reqRaw)
	b.logger.WithFields(log.Fields{
		"percent": pct, "raw": b.reqRaw,
	}).Info("lift requested")
	return b.statusLocked()
}

// RequestRaw records a lift request by raw position and returns the
// resulting snapshot. The core drives to the derived percent, so raw
// requests land on the percent grid.
func (b *Bridge) RequestRaw(raw uint16) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reqRaw = raw
	b.reqPct = blind.PercentFromRaw(raw, b.minPos, b.maxPos)
	b.dm.RecordLiftRequest("raw")
	b.dm.SetRequested(raw)
	b.logger.WithFields(log.Fields{
		"raw": raw, "percent": b.reqPct,
	}).Info("raw lift requested")
	return b.statusLocked()
}

// Status returns a consistent snapshot of all attributes.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked()
}

func (b *Bridge) statusLocked() Status {
	return Status{
		RequestedRaw:     b.reqRaw,
		RequestedPercent: b.reqPct,
		ActualRaw:        b.actualRaw,
		ActualPercent:    b.actualPct,
		Operation:        string(b.op),
		MinPos:           b.minPos,
		MaxPos:           b.maxPos,
	}
}
