package store

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"blindctl/pkg/metrics"
)

func TestLoadInstallsDefaults(t *testing.T) {
	dev := NewMemDevice(RecordSize)
	records := NewRecords(dev, 0, 1000)

	rec, restored := records.Load()
	if restored {
		t.Error("expected defaults on a zeroed device")
	}
	if rec.Min != 0 || rec.Max != 1000 {
		t.Errorf("unexpected defaults: %+v", rec)
	}
	if rec.Current != 500 {
		t.Errorf("expected midpoint 500, got %d", rec.Current)
	}

	// The install must leave a valid record behind.
	rec2, restored := records.Load()
	if !restored {
		t.Error("expected restore after defaults were installed")
	}
	if rec2 != rec {
		t.Errorf("round trip mismatch: %+v vs %+v", rec2, rec)
	}
}

func TestLoadRejectsBadSentinel(t *testing.T) {
	dev := NewMemDevice(RecordSize)

	// Plausible positions but no valid sentinel.
	binary.LittleEndian.PutUint16(dev.buf[offMin:], 100)
	binary.LittleEndian.PutUint16(dev.buf[offMax:], 900)
	binary.LittleEndian.PutUint16(dev.buf[offCurrent:], 400)
	binary.LittleEndian.PutUint16(dev.buf[offSentinel:], 0x1234)

	records := NewRecords(dev, 0, 1000)
	rec, restored := records.Load()
	if restored {
		t.Error("expected defaults for invalid sentinel")
	}
	if rec.Min != 0 || rec.Max != 1000 || rec.Current != 500 {
		t.Errorf("expected defaults, got %+v", rec)
	}
}

func TestLoadSurvivesDeadDevice(t *testing.T) {
	dev := NewMemDevice(RecordSize)
	dev.FailAll()

	records := NewRecords(dev, 0, 1000)
	rec, restored := records.Load()
	if restored {
		t.Error("expected defaults from a dead device")
	}
	if rec.Min != 0 || rec.Max != 1000 || rec.Current != 500 {
		t.Errorf("expected defaults, got %+v", rec)
	}
}

func TestSaveFields(t *testing.T) {
	dev := NewMemDevice(RecordSize)
	records := NewRecords(dev, 0, 1000)
	records.Load()

	if err := records.SaveMin(120); err != nil {
		t.Fatalf("SaveMin failed: %v", err)
	}
	if err := records.SaveMax(880); err != nil {
		t.Fatalf("SaveMax failed: %v", err)
	}
	if err := records.SavePosition(333); err != nil {
		t.Fatalf("SavePosition failed: %v", err)
	}

	rec, restored := records.Load()
	if !restored {
		t.Fatal("expected valid record")
	}
	if rec.Min != 120 || rec.Max != 880 || rec.Current != 333 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestSaveAll(t *testing.T) {
	dev := NewMemDevice(RecordSize)
	records := NewRecords(dev, 0, 1000)

	if err := records.SaveAll(50, 120, 50); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	rec, restored := records.Load()
	if !restored {
		t.Fatal("expected valid record after SaveAll")
	}
	if rec.Min != 50 || rec.Max != 120 || rec.Current != 50 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestSaveReportsDeviceErrors(t *testing.T) {
	dev := NewMemDevice(RecordSize)
	records := NewRecords(dev, 0, 1000)
	records.Load()

	dev.FailAll()
	if err := records.SavePosition(10); err == nil {
		t.Error("expected error from failing device")
	}
}

func TestSaveCountsWrites(t *testing.T) {
	dev := NewMemDevice(RecordSize)
	records := NewRecords(dev, 0, 1000)
	records.Load()

	// Counters are read as deltas: the metrics instance is shared
	// across the package's tests.
	dm := metrics.GlobalMetrics()
	minBefore := dm.RecordWrites.Get(metrics.Labels{"field": "min"})
	posBefore := dm.RecordWrites.Get(metrics.Labels{"field": "position"})
	failBefore := dm.RecordWriteFailures.Get(metrics.Labels{"field": "position"})

	if err := records.SaveMin(120); err != nil {
		t.Fatalf("SaveMin failed: %v", err)
	}
	if err := records.SavePosition(333); err != nil {
		t.Fatalf("SavePosition failed: %v", err)
	}

	dev.FailAll()
	if err := records.SavePosition(10); err == nil {
		t.Fatal("expected error from failing device")
	}

	if got := dm.RecordWrites.Get(metrics.Labels{"field": "min"}) - minBefore; got != 1 {
		t.Errorf("expected 1 min write, got %d", got)
	}
	if got := dm.RecordWrites.Get(metrics.Labels{"field": "position"}) - posBefore; got != 2 {
		t.Errorf("expected 2 position writes, got %d", got)
	}
	if got := dm.RecordWriteFailures.Get(metrics.Labels{"field": "position"}) - failBefore; got != 1 {
		t.Errorf("expected 1 position write failure, got %d", got)
	}
}

func TestMemDeviceBounds(t *testing.T) {
	dev := NewMemDevice(4)
	buf := make([]byte, 8)

	if _, err := dev.ReadAt(buf, 0); err == nil {
		t.Error("expected out of range read error")
	}
	if _, err := dev.WriteAt(buf, 0); err == nil {
		t.Error("expected out of range write error")
	}
	if _, err := dev.ReadAt(buf[:2], -1); err == nil {
		t.Error("expected negative offset error")
	}
}

func TestFileDevicePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.bin")

	dev, err := OpenFile(path, RecordSize)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}

	records := NewRecords(dev, 0, 1000)
	if err := records.SaveAll(120, 880, 500); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	dev2, err := OpenFile(path, RecordSize)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer dev2.Close()

	rec, restored := NewRecords(dev2, 0, 1000).Load()
	if !restored {
		t.Fatal("expected record to survive reopen")
	}
	if rec.Min != 120 || rec.Max != 880 || rec.Current != 500 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestFileDeviceExclusiveLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.bin")

	dev, err := OpenFile(path, RecordSize)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer dev.Close()

	if _, err := OpenFile(path, RecordSize); err == nil {
		t.Error("expected second open to fail while locked")
	}
}

func TestFileDeviceBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.bin")

	dev, err := OpenFile(path, RecordSize)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer dev.Close()

	buf := make([]byte, 4)
	if _, err := dev.ReadAt(buf, RecordSize-2); err == nil {
		t.Error("expected out of range read error")
	}
	if _, err := dev.WriteAt(buf, RecordSize-2); err == nil {
		t.Error("expected out of range write error")
	}
}
