package engine

import (
	"sync"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/cmdu"
	"github.com/krisarmstrong/hmeshd/pkg/errs"
	"github.com/krisarmstrong/hmeshd/pkg/logging"
	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/pkg/tlv"
	"github.com/krisarmstrong/hmeshd/pkg/wsc"
)

// EtherType and destination MAC constants for the two wire protocols the
// loop speaks directly, spec section 6.
const (
	EtherTypeCMDU = 0x893a
	EtherTypeLLDP = 0x88cc
)

// BroadcastALMAC is the 1905.1 local-broadcast destination AL MAC.
var BroadcastALMAC = model.MAC{0x01, 0x80, 0xc2, 0x00, 0x00, 0x13}

// LLDPNearestBridgeMAC is the LLDP nearest-bridge multicast destination.
var LLDPNearestBridgeMAC = model.MAC{0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e}

// Config bundles everything a Loop needs at construction. Registrar is nil
// if this node is not a registrar for any band.
type Config struct {
	LocalALMAC     model.MAC
	Backend        Backend
	DeviceTimeout  time.Duration
	Registrar      *model.RegistrarConfig
	Vendors        *model.VendorRegistry
	DeviceInfo     wsc.DeviceInfo
	MarkerPath     string        // topology-change marker file, empty disables polling
	MarkerInterval time.Duration // defaults to 2s if zero
}

// Loop is the single-consumer AL event loop: the sole owner of the device
// graph, the fragment reassembler, the dedup cache, and every in-flight WSC
// enrollee state machine. Every other goroutine in the process only ever
// posts into events.
type Loop struct {
	backend    Backend
	localALMAC model.MAC
	deviceInfo wsc.DeviceInfo

	graph       *model.Graph
	vendors     *model.VendorRegistry
	registrar   *model.RegistrarConfig
	dedup       *cmdu.Dedup
	reassembler *cmdu.Reassembler
	ids         *cmdu.IDAllocator
	timers      *TimerWheel
	Stats       Stats

	enrolleesMu sync.Mutex
	enrollees   map[model.MAC]*wsc.EnrolleeRadio // keyed by radio UID

	pendingMu sync.Mutex
	pending   map[model.Fingerprint]*pendingExchange

	handlers map[cmdu.MessageType]handlerFunc

	// rxIfaceMAC is the local interface a CMDU currently being dispatched
	// arrived on. It is set once per handleCMDUFrame call and read by
	// handlers (handleTopologyDiscovery) that need to link a local
	// interface to a remote one; safe without a lock since the dispatch
	// loop is single-consumer and no handler outlives its own call.
	rxIfaceMAC model.MAC

	markerPath     string
	markerInterval time.Duration

	events chan any
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type handlerFunc func(l *Loop, srcAL model.MAC, c *cmdu.CMDU) error

// pendingExchange tracks one outbound request awaiting a correlated
// response: the timer token that will fire a retry/timeout, the retry
// count, and a closure that re-sends the original request.
type pendingExchange struct {
	token int
	retry RetryState
	resend func()
	onTimeout func()
}

// NewLoop constructs a Loop in the stopped state. Call Run to start it.
func NewLoop(cfg Config) *Loop {
	if cfg.MarkerInterval == 0 {
		cfg.MarkerInterval = 2 * time.Second
	}
	vendors := cfg.Vendors
	if vendors == nil {
		vendors = model.NewVendorRegistry()
	}
	l := &Loop{
		backend:    cfg.Backend,
		localALMAC: cfg.LocalALMAC,
		deviceInfo: cfg.DeviceInfo,
		graph:      model.NewGraph(cfg.LocalALMAC, cfg.DeviceTimeout),
		vendors:    vendors,
		registrar:  cfg.Registrar,
		dedup:      cmdu.NewDedup(cmdu.DedupCapacity),
		ids:        cmdu.NewIDAllocator(),
		enrollees:  make(map[model.MAC]*wsc.EnrolleeRadio),
		pending:    make(map[model.Fingerprint]*pendingExchange),
		markerPath:     cfg.MarkerPath,
		markerInterval: cfg.MarkerInterval,
		events:     make(chan any, 256),
		stopCh:     make(chan struct{}),
	}
	l.reassembler = cmdu.NewReassembler(time.Now)
	l.timers = NewTimerWheel(l.events, l.stopCh)
	l.handlers = defaultHandlers()
	return l
}

// Graph exposes the device graph for read-mostly callers (ALME, the TUI).
// Graph itself is safe for concurrent use; it is the one piece of state the
// loop shares directly rather than funnelling through events, matching
// spec section 5's "no data structure is accessed from more than one
// thread except..." carve-out for state that is already internally
// synchronized.
func (l *Loop) Graph() *model.Graph { return l.graph }

// EnrolleeRadio returns (creating if absent) the WSC enrollee state machine
// for the given radio UID.
func (l *Loop) EnrolleeRadio(radioUID model.MAC) *wsc.EnrolleeRadio {
	l.enrolleesMu.Lock()
	defer l.enrolleesMu.Unlock()
	r, ok := l.enrollees[radioUID]
	if !ok {
		r = wsc.NewEnrolleeRadio(l.localALMAC)
		l.enrollees[radioUID] = r
	}
	return r
}

// Run starts the loop's goroutines: the backend-frame pump, the periodic
// GC sweep, the optional topology-marker watcher, and the dispatch loop
// itself. It blocks until Stop is called.
func (l *Loop) Run() {
	l.wg.Add(1)
	go l.pumpFrames()

	l.wg.Add(1)
	go l.periodicGC()

	if l.markerPath != "" {
		l.wg.Add(1)
		go l.watchTopologyMarker()
	}

	l.wg.Add(1)
	go l.advertiseLLDP()

	l.dispatchLoop()
}

// Stop signals every loop goroutine to exit and waits for them to finish.
func (l *Loop) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}

// pumpFrames is the sole bridge between the backend's own goroutine(s) and
// the loop's single consumer channel, the same non-blocking hand-off the
// teacher's receiveThread uses against its recvQueue.
func (l *Loop) pumpFrames() {
	defer l.wg.Done()
	recv := l.backend.Recv()
	for {
		select {
		case <-l.stopCh:
			return
		case f, ok := <-recv:
			if !ok {
				return
			}
			select {
			case l.events <- f:
			default:
				l.Stats.inc(&l.Stats.FramesDropped)
			}
		}
	}
}

func (l *Loop) periodicGC() {
	defer l.wg.Done()
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case now := <-t.C:
			select {
			case l.events <- gcTick{now}:
			default:
			}
		}
	}
}

type gcTick struct{ at time.Time }

// dispatchLoop is the single consumer: every state mutation in the AL core
// happens here, in event-arrival order, matching spec section 5's
// single-writer requirement.
func (l *Loop) dispatchLoop() {
	for {
		select {
		case <-l.stopCh:
			l.reassembler.GC()
			return
		case ev := <-l.events:
			l.handleEvent(ev)
		}
	}
}

func (l *Loop) handleEvent(ev any) {
	switch e := ev.(type) {
	case RawFrame:
		l.handleFrame(e)
	case TimerFired:
		l.Stats.inc(&l.Stats.TimersFired)
		l.handleTimerFired(e)
	case gcTick:
		l.graph.Prune(e.at)
		l.reassembler.GC()
	case TopologyChanged:
		l.Stats.inc(&l.Stats.TopologyChanges)
		l.handleTopologyChanged()
	case AlmeRequest:
		l.handleAlmeRequest(e)
	default:
		logging.Debug("engine: dropped unrecognized event type %T", ev)
	}
}

func (l *Loop) handleFrame(f RawFrame) {
	switch f.EtherType {
	case EtherTypeCMDU:
		l.handleCMDUFrame(f)
	case EtherTypeLLDP:
		l.handleLLDPFrame(f)
	default:
		l.Stats.inc(&l.Stats.FramesDropped)
	}
}

func (l *Loop) handleCMDUFrame(f RawFrame) {
	c, err := l.reassembler.Feed([6]byte(f.SrcMAC), f.Payload)
	if err != nil {
		l.Stats.inc(&l.Stats.MalformedDropped)
		logging.Warning("engine: reassembly failed from %s: %v", f.SrcMAC, err)
		return
	}
	if c == nil {
		return // awaiting further fragments
	}
	l.Stats.inc(&l.Stats.CMDURx)
	if l.dedup.Seen([6]byte(f.SrcMAC), c.MessageID, c.MessageType) {
		l.Stats.inc(&l.Stats.DuplicatesDropped)
		return
	}
	fp := model.Fingerprint{SourceALMAC: f.SrcMAC, MessageID: c.MessageID, MessageType: uint16(c.MessageType)}
	l.clearPending(fp)

	l.rxIfaceMAC = f.IfaceMAC
	h, ok := l.handlers[c.MessageType]
	if !ok {
		logging.Debug("engine: no handler for CMDU message type %s from %s", c.MessageType, f.SrcMAC)
		return
	}
	if err := h(l, f.SrcMAC, c); err != nil {
		if kind, ok := errs.KindOf(err); ok && kind == errs.KindIgnored {
			return
		}
		logging.Warning("engine: handler for %s failed: %v", c.MessageType, err)
	}
}

// sendCMDU encodes a CMDU and transmits every fragment to dst over the
// first interface the backend reports; the other local interfaces are
// not used for sending.
func (l *Loop) sendCMDU(dst model.MAC, msgType cmdu.MessageType, tlvs []tlv.TLV) (*cmdu.CMDU, error) {
	c := &cmdu.CMDU{MessageType: msgType, MessageID: l.ids.Next(), TLVs: tlvs}
	fragments, err := cmdu.Encode(c, false)
	if err != nil {
		return nil, errs.Malformed("engine.sendCMDU", err)
	}
	ifaces := l.backend.Interfaces()
	if len(ifaces) == 0 {
		return nil, errs.PlatformError("engine.sendCMDU", nil)
	}
	for _, frag := range fragments {
		if err := l.backend.Send(ifaces[0].MAC, dst, EtherTypeCMDU, frag); err != nil {
			return nil, errs.PlatformError("engine.sendCMDU", err)
		}
	}
	l.Stats.inc(&l.Stats.CMDUTx)
	return c, nil
}

func (l *Loop) registerPending(fp model.Fingerprint, firstDelay time.Duration, resend, onTimeout func()) error {
	token, err := l.timers.Schedule(firstDelay, fp)
	if err != nil {
		return err
	}
	l.pendingMu.Lock()
	l.pending[fp] = &pendingExchange{token: token, resend: resend, onTimeout: onTimeout}
	l.pendingMu.Unlock()
	return nil
}

func (l *Loop) clearPending(fp model.Fingerprint) {
	l.pendingMu.Lock()
	pe, ok := l.pending[fp]
	if ok {
		delete(l.pending, fp)
	}
	l.pendingMu.Unlock()
	if ok {
		l.timers.Cancel(pe.token)
	}
}

func (l *Loop) handleTimerFired(ev TimerFired) {
	fp, ok := ev.Payload.(model.Fingerprint)
	if !ok {
		return
	}
	l.pendingMu.Lock()
	pe, ok := l.pending[fp]
	l.pendingMu.Unlock()
	if !ok {
		return
	}
	if pe.retry.Exhausted() {
		l.pendingMu.Lock()
		delete(l.pending, fp)
		l.pendingMu.Unlock()
		if pe.onTimeout != nil {
			pe.onTimeout()
		}
		return
	}
	pe.retry.Attempt++
	if pe.resend != nil {
		pe.resend()
	}
	token, err := l.timers.Schedule(pe.retry.NextBackoff(), fp)
	if err != nil {
		logging.Warning("engine: failed to re-arm retry timer: %v", err)
		return
	}
	l.pendingMu.Lock()
	pe.token = token
	l.pendingMu.Unlock()
}
