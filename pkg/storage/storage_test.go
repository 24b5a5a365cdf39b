package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/model"
)

func TestStorageAddAndListRuns(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "runs.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	rec1 := RunRecord{
		StartedAt:   time.Now().Add(-1 * time.Hour),
		Duration:    time.Minute,
		LocalALMAC:  "00:4f:21:03:ab:01",
		Interfaces:  []string{"eth0"},
		DeviceCount: 3,
		CMDURx:      100,
		CMDUTx:      90,
		Errors:      1,
	}
	rec2 := RunRecord{
		StartedAt:   time.Now(),
		Duration:    2 * time.Minute,
		LocalALMAC:  "00:4f:21:03:ab:01",
		Interfaces:  []string{"eth0", "wlan0"},
		DeviceCount: 5,
		CMDURx:      200,
		CMDUTx:      180,
		Errors:      0,
	}

	if err := store.AddRun(rec1); err != nil {
		t.Fatalf("AddRun(rec1) error = %v", err)
	}
	if err := store.AddRun(rec2); err != nil {
		t.Fatalf("AddRun(rec2) error = %v", err)
	}

	records, err := store.ListRuns(0) // exercise default limit handling
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListRuns() len = %d, want 2", len(records))
	}
	if records[0].DeviceCount != rec2.DeviceCount || records[0].ID != 2 {
		t.Fatalf("ListRuns() first record = %+v, want latest run with ID 2", records[0])
	}
	if records[1].DeviceCount != rec1.DeviceCount || records[1].ID != 1 {
		t.Fatalf("ListRuns() second record = %+v, want oldest run with ID 1", records[1])
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	if _, err := Open("disabled"); err == nil {
		t.Fatalf("Open(\"disabled\") expected error, got nil")
	}
}

func TestTouchDeviceAndDevices(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, "devices.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	if err := store.TouchDevice(DeviceRecord{ALMAC: "00:4f:21:03:ab:0c", LastSeen: now, IfaceCount: 2}); err != nil {
		t.Fatalf("TouchDevice() error = %v", err)
	}
	if err := store.TouchDevice(DeviceRecord{ALMAC: "00:4f:21:03:ab:0d", LastSeen: now, IsMultiAP: true, IfaceCount: 1}); err != nil {
		t.Fatalf("TouchDevice() error = %v", err)
	}

	devices, err := store.Devices()
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Devices() len = %d, want 2", len(devices))
	}
}

func TestTouchDeviceOverwritesExistingEntry(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, "devices.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mac := "00:4f:21:03:ab:0c"
	first := time.Now().Add(-time.Hour)
	second := time.Now()

	if err := store.TouchDevice(DeviceRecord{ALMAC: mac, LastSeen: first}); err != nil {
		t.Fatalf("TouchDevice(first) error = %v", err)
	}
	if err := store.TouchDevice(DeviceRecord{ALMAC: mac, LastSeen: second}); err != nil {
		t.Fatalf("TouchDevice(second) error = %v", err)
	}

	devices, err := store.Devices()
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("Devices() len = %d, want 1 after overwrite, got %d", 1, len(devices))
	}
	if !devices[0].LastSeen.Equal(second) {
		t.Fatalf("Devices()[0].LastSeen = %v, want %v", devices[0].LastSeen, second)
	}
}

func TestSyncGraphSkipsLocalDevice(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, "devices.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	local := model.MAC{0x00, 0x4f, 0x21, 0x03, 0xab, 0x01}
	neighbor := model.MAC{0x00, 0x4f, 0x21, 0x03, 0xab, 0x0c}
	g := model.NewGraph(local, time.Minute)
	g.Touch(neighbor, time.Now())

	if err := store.SyncGraph(g); err != nil {
		t.Fatalf("SyncGraph() error = %v", err)
	}

	devices, err := store.Devices()
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("Devices() len = %d, want 1 (local device must be skipped)", len(devices))
	}
	if devices[0].ALMAC != neighbor.String() {
		t.Fatalf("Devices()[0].ALMAC = %s, want %s", devices[0].ALMAC, neighbor.String())
	}
}
