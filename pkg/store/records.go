package store

import (
	"encoding/binary"
	"fmt"

	"blindctl/pkg/log"
	"blindctl/pkg/metrics"
)

// Record layout on the device, little-endian uint16 fields. The
// sentinel marks the record as initialized; any other value there
// means first boot or a corrupted image, and defaults are installed.
const (
	offMin      = 0
	offMax      = 2
	offCurrent  = 4
	offSentinel = 6

	// RecordSize is the device size needed to hold one record.
	RecordSize = 8

	sentinelValid = 0x55AA
)

// Record is the persisted actuator state.
type Record struct {
	Min     uint16
	Max     uint16
	Current uint16
}

// Records reads and writes the persisted record on a Device.
type Records struct {
	dev      Device
	dm       *metrics.DeviceMetrics
	logger   *log.Logger
	defaults Record
}

// NewRecords creates a Records adapter. defaultMin/defaultMax seed the
// record installed on first boot; the seeded position is their
// midpoint.
func NewRecords(dev Device, defaultMin, defaultMax uint16) *Records {
	return &Records{
		dev:    dev,
		dm:     metrics.GlobalMetrics(),
		logger: log.GetLogger("store"),
		defaults: Record{
			Min:     defaultMin,
			Max:     defaultMax,
			Current: defaultMin + (defaultMax-defaultMin)/2,
		},
	}
}

// Load returns the stored record. On a read failure or an
// uninitialized sentinel it installs and returns the defaults;
// restored reports which case occurred. Load never fails: a device
// that cannot even be written still yields usable defaults.
func (r *Records) Load() (rec Record, restored bool) {
	buf := make([]byte, RecordSize)
	_, err := r.dev.ReadAt(buf, 0)
	if err == nil && binary.LittleEndian.Uint16(buf[offSentinel:]) == sentinelValid {
		rec = Record{
			Min:     binary.LittleEndian.Uint16(buf[offMin:]),
			Max:     binary.LittleEndian.Uint16(buf[offMax:]),
			Current: binary.LittleEndian.Uint16(buf[offCurrent:]),
		}
		r.logger.WithFields(log.Fields{
			"min": rec.Min, "max": rec.Max, "position": rec.Current,
		}).Info("restored record")
		return rec, true
	}

	if err != nil {
		r.logger.WithError(err).Warn("record unreadable, installing defaults")
	} else {
		r.logger.Info("no valid record, installing defaults")
	}

	rec = r.defaults
	if err := r.SaveAll(rec.Min, rec.Max, rec.Current); err != nil {
		r.logger.WithError(err).Error("failed to install defaults")
	}
	return rec, false
}

// SaveMin persists the MIN boundary.
func (r *Records) SaveMin(v uint16) error {
	return r.putField("min", offMin, v)
}

// SaveMax persists the MAX boundary.
func (r *Records) SaveMax(v uint16) error {
	return r.putField("max", offMax, v)
}

// SavePosition persists the current position.
func (r *Records) SavePosition(v uint16) error {
	return r.putField("position", offCurrent, v)
}

// SaveAll persists the whole record and marks it valid in one write.
func (r *Records) SaveAll(min, max, current uint16) error {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint16(buf[offMin:], min)
	binary.LittleEndian.PutUint16(buf[offMax:], max)
	binary.LittleEndian.PutUint16(buf[offCurrent:], current)
	binary.LittleEndian.PutUint16(buf[offSentinel:], sentinelValid)

	_, err := r.dev.WriteAt(buf, 0)
	r.dm.RecordWrite("all", err)
	if err != nil {
		return fmt.Errorf("store: save record: %w", err)
	}
	return nil
}

func (r *Records) putField(field string, off int64, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := r.dev.WriteAt(buf[:], off)
	r.dm.RecordWrite(field, err)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", field, err)
	}
	return nil
}
