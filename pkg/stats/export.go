// Package stats exports the AL event loop's runtime counters (pkg/engine's
// Stats) as JSON or CSV, for operators and for feeding external monitoring
// rather than walking the SNMP agent for every counter.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/engine"
)

// Snapshot is a point-in-time, JSON-serializable copy of everything an
// operator would want to export: the loop's own counters plus a handful
// of process-level figures the teacher's Statistics.Update also captured.
type Snapshot struct {
	CollectedAt time.Time     `json:"collected_at"`
	Uptime      time.Duration `json:"uptime_ns"`
	LocalALMAC  string        `json:"local_al_mac"`
	DeviceCount int           `json:"device_count"`

	MemoryUsageMB  uint64 `json:"memory_usage_mb"`
	GoroutineCount int    `json:"goroutine_count"`
	CPUCount       int    `json:"cpu_count"`

	engine.Stats
}

// Collect builds a Snapshot from a running Loop, started is when the
// daemon began running (for uptime).
func Collect(l *engine.Loop, started time.Time) Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Snapshot{
		CollectedAt:    time.Now(),
		Uptime:         time.Since(started),
		LocalALMAC:     l.Graph().Local().ALMAC.String(),
		DeviceCount:    l.Graph().Count(),
		MemoryUsageMB:  m.Alloc / 1024 / 1024,
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		Stats:          l.Stats.Snapshot(),
	}
}

// ExportJSON writes the snapshot to filename as indented JSON.
func ExportJSON(snap Snapshot, filename string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: marshal json: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("stats: write json: %w", err)
	}
	return nil
}

// ExportCSV writes the snapshot to filename as a flat metric/value table,
// the same two-column shape the teacher's ExportCSV produced.
func ExportCSV(snap Snapshot, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("stats: create csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"Metric", "Value"}); err != nil {
		return fmt.Errorf("stats: write csv header: %w", err)
	}
	rows := [][2]string{
		{"Collected At", snap.CollectedAt.Format(time.RFC3339)},
		{"Uptime (seconds)", fmt.Sprintf("%.0f", snap.Uptime.Seconds())},
		{"Local AL MAC", snap.LocalALMAC},
		{"Device Count", fmt.Sprintf("%d", snap.DeviceCount)},
		{"Memory Usage (MB)", fmt.Sprintf("%d", snap.MemoryUsageMB)},
		{"Goroutine Count", fmt.Sprintf("%d", snap.GoroutineCount)},
		{"CPU Count", fmt.Sprintf("%d", snap.CPUCount)},
		{"CMDU Rx", fmt.Sprintf("%d", snap.CMDURx)},
		{"CMDU Tx", fmt.Sprintf("%d", snap.CMDUTx)},
		{"Frames Dropped", fmt.Sprintf("%d", snap.FramesDropped)},
		{"Duplicates Dropped", fmt.Sprintf("%d", snap.DuplicatesDropped)},
		{"Fragments Reassembled", fmt.Sprintf("%d", snap.FragmentsReassembled)},
		{"Malformed Dropped", fmt.Sprintf("%d", snap.MalformedDropped)},
		{"Topology Discovery Rx", fmt.Sprintf("%d", snap.TopologyDiscoveryRx)},
		{"Topology Query Tx", fmt.Sprintf("%d", snap.TopologyQueryTx)},
		{"Link Metric Query Rx", fmt.Sprintf("%d", snap.LinkMetricQueryRx)},
		{"WSC Exchanges Started", fmt.Sprintf("%d", snap.WSCExchangesStarted)},
		{"WSC Exchanges Completed", fmt.Sprintf("%d", snap.WSCExchangesCompleted)},
		{"WSC Exchanges Failed", fmt.Sprintf("%d", snap.WSCExchangesFailed)},
		{"Vendor Dispatched", fmt.Sprintf("%d", snap.VendorDispatched)},
		{"Timers Fired", fmt.Sprintf("%d", snap.TimersFired)},
		{"Topology Changes", fmt.Sprintf("%d", snap.TopologyChanges)},
	}
	for _, row := range rows {
		if err := w.Write(row[:]); err != nil {
			return fmt.Errorf("stats: write csv row %q: %w", row[0], err)
		}
	}
	return nil
}

// String renders a short human-readable summary, for a log line or a
// terminal print rather than a full export file.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"Stats: uptime=%s devices=%d mem=%dMB goroutines=%d cmdu_rx=%d cmdu_tx=%d dropped=%d",
		s.Uptime.Round(time.Second), s.DeviceCount, s.MemoryUsageMB, s.GoroutineCount,
		s.CMDURx, s.CMDUTx, s.FramesDropped,
	)
}
