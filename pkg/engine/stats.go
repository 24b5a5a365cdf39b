package engine

import "sync"

// Stats mirrors the teacher's Statistics struct: a flat set of counters
// behind one RWMutex, incremented from the single consumer goroutine and
// read from anywhere (the pkg/stats exporter, the TUI, tests).
type Stats struct {
	mu sync.RWMutex

	CMDURx                int64
	CMDUTx                int64
	FramesDropped         int64
	DuplicatesDropped     int64
	FragmentsReassembled  int64
	MalformedDropped      int64
	TopologyDiscoveryRx   int64
	TopologyQueryTx       int64
	LinkMetricQueryRx     int64
	WSCExchangesStarted   int64
	WSCExchangesCompleted int64
	WSCExchangesFailed    int64
	VendorDispatched      int64
	TimersFired           int64
	TopologyChanges       int64
}

func (s *Stats) inc(counter *int64) {
	s.mu.Lock()
	*counter++
	s.mu.Unlock()
}

// Snapshot returns a lock-free copy of the current counters.
func (s *Stats) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := *s
	cp.mu = sync.RWMutex{}
	return cp
}
