package stats

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/engine"
	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/platform/simnet"
)

func newTestLoop(t *testing.T) *engine.Loop {
	t.Helper()
	medium := simnet.NewMedium()
	node := simnet.NewNode(medium, model.MAC{0x00, 0x4f, 0x21, 0x03, 0xab, 0x01}, "eth0")
	t.Cleanup(func() { node.Close() })
	return engine.NewLoop(engine.Config{
		LocalALMAC: model.MAC{0x00, 0x4f, 0x21, 0x03, 0xab, 0x01},
		Backend:    node,
	})
}

func TestCollectPopulatesSnapshot(t *testing.T) {
	loop := newTestLoop(t)
	loop.Stats.CMDURx = 4
	loop.Stats.CMDUTx = 2

	started := time.Now().Add(-time.Second)
	snap := Collect(loop, started)

	if snap.CMDURx != 4 || snap.CMDUTx != 2 {
		t.Fatalf("expected counters to carry through, got %+v", snap.Stats)
	}
	if snap.Uptime <= 0 {
		t.Error("expected a positive uptime")
	}
	if snap.GoroutineCount == 0 {
		t.Error("expected a non-zero goroutine count")
	}
	if snap.LocalALMAC == "" {
		t.Error("expected the local AL MAC to be set")
	}
}

func TestExportJSONWritesValidDocument(t *testing.T) {
	loop := newTestLoop(t)
	loop.Stats.TopologyDiscoveryRx = 3
	snap := Collect(loop, time.Now())

	path := filepath.Join(t.TempDir(), "stats.json")
	if err := ExportJSON(snap, path); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TopologyDiscoveryRx != 3 {
		t.Errorf("expected TopologyDiscoveryRx 3, got %d", got.TopologyDiscoveryRx)
	}
}

func TestExportCSVWritesHeaderAndRows(t *testing.T) {
	loop := newTestLoop(t)
	snap := Collect(loop, time.Now())

	path := filepath.Join(t.TempDir(), "stats.csv")
	if err := ExportCSV(snap, path); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) < 2 {
		t.Fatalf("expected at least a header and one data row, got %d rows", len(rows))
	}
	if rows[0][0] != "Metric" || rows[0][1] != "Value" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
}

func TestSnapshotStringIncludesCounters(t *testing.T) {
	loop := newTestLoop(t)
	loop.Stats.CMDURx = 9
	snap := Collect(loop, time.Now())

	s := snap.String()
	if s == "" {
		t.Fatal("expected a non-empty summary string")
	}
}
