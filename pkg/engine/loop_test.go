package engine

import (
	"testing"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/cmdu"
	"github.com/krisarmstrong/hmeshd/pkg/errs"
	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/pkg/tlv"
	"github.com/krisarmstrong/hmeshd/pkg/wsc"
)

func mac(b byte) model.MAC {
	return model.MAC{0x00, 0x4f, 0x21, 0x03, 0xab, b}
}

// sentFrame records one Backend.Send call for assertions.
type sentFrame struct {
	ifaceMAC, dst model.MAC
	etherType     uint16
	payload       []byte
}

// fakeBackend is an in-package Backend stub: Recv is driven manually by
// the test, Send records every outbound frame for inspection.
type fakeBackend struct {
	ifaces []InterfaceInfo
	recvCh chan RawFrame
	sent   []sentFrame
}

func newFakeBackend(localIface model.MAC) *fakeBackend {
	return &fakeBackend{
		ifaces: []InterfaceInfo{{MAC: localIface, Name: "eth0"}},
		recvCh: make(chan RawFrame, 16),
	}
}

func (b *fakeBackend) Interfaces() []InterfaceInfo { return b.ifaces }
func (b *fakeBackend) Recv() <-chan RawFrame       { return b.recvCh }
func (b *fakeBackend) Send(ifaceMAC, dst model.MAC, etherType uint16, payload []byte) error {
	b.sent = append(b.sent, sentFrame{ifaceMAC, dst, etherType, payload})
	return nil
}
func (b *fakeBackend) Close() error { return nil }

func newTestLoop(local model.MAC, backend *fakeBackend, registrar *model.RegistrarConfig) *Loop {
	return NewLoop(Config{
		LocalALMAC: local,
		Backend:    backend,
		Registrar:  registrar,
		DeviceInfo: wsc.DefaultDeviceInfo(),
	})
}

func TestTimerWheelScheduleFireCancel(t *testing.T) {
	out := make(chan any, 4)
	stop := make(chan struct{})
	defer close(stop)
	tw := NewTimerWheel(out, stop)

	tok, err := tw.Schedule(10*time.Millisecond, "fired")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	select {
	case ev := <-out:
		f, ok := ev.(TimerFired)
		if !ok || f.Token != tok || f.Payload != "fired" {
			t.Fatalf("unexpected event: %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	tok2, err := tw.Schedule(10*time.Millisecond, "cancel-me")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	tw.Cancel(tok2)
	select {
	case ev := <-out:
		t.Fatalf("expected no event after cancel, got %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerWheelExhaustion(t *testing.T) {
	out := make(chan any, MaxTimerToken+8)
	stop := make(chan struct{})
	defer close(stop)
	tw := NewTimerWheel(out, stop)

	for i := 0; i < MaxTimerToken; i++ {
		if _, err := tw.Schedule(time.Hour, i); err != nil {
			t.Fatalf("Schedule %d: %v", i, err)
		}
	}
	_, err := tw.Schedule(time.Hour, "one-too-many")
	if err == nil {
		t.Fatal("expected ResourceExhausted once MaxTimerToken outstanding timers are scheduled")
	}
	if kind, ok := errs.KindOf(err); !ok || kind != errs.KindResourceExhausted {
		t.Fatalf("expected KindResourceExhausted, got %v", err)
	}
}

func TestRetryStateBackoffAndExhaustion(t *testing.T) {
	var rs RetryState
	first := rs.NextBackoff()
	rs.Attempt++
	second := rs.NextBackoff()
	if second <= first {
		t.Fatalf("expected exponential growth, got %v then %v", first, second)
	}
	if rs.Exhausted() {
		t.Fatal("should not be exhausted after one attempt")
	}
	rs.Attempt = DefaultMaxRetries
	if !rs.Exhausted() {
		t.Fatal("expected exhaustion at DefaultMaxRetries")
	}
}

func TestRegistrarUniquenessRejectsSecondController(t *testing.T) {
	local := mac(0x01)
	backend := newFakeBackend(local)
	reg := &model.RegistrarConfig{ByBand: map[model.Band]model.BSSInfo{
		model.Band24GHz: {SSID: "mesh-24"},
	}}
	l := newTestLoop(local, backend, reg)

	other := l.graph.Touch(mac(0x02), time.Now())
	other.IsMultiAPController = true
	other.Radios[mac(0x22)] = &model.Radio{UID: mac(0x22), Bands: []model.Band{model.Band24GHz}}

	if err := l.checkRegistrarUniqueness(model.Band24GHz); err == nil {
		t.Fatal("expected a policy error when another controller already serves this band")
	} else if kind, ok := errs.KindOf(err); !ok || kind != errs.KindPolicy {
		t.Fatalf("expected KindPolicy, got %v", err)
	}

	// A band we hold no registrar config for is never contested.
	if err := l.checkRegistrarUniqueness(model.Band5GHz); err != nil {
		t.Fatalf("expected no error for an unconfigured band, got %v", err)
	}
}

func TestRegistrarUniquenessAllowsSoleController(t *testing.T) {
	local := mac(0x01)
	backend := newFakeBackend(local)
	reg := &model.RegistrarConfig{ByBand: map[model.Band]model.BSSInfo{
		model.Band24GHz: {SSID: "mesh-24"},
	}}
	l := newTestLoop(local, backend, reg)

	if err := l.checkRegistrarUniqueness(model.Band24GHz); err != nil {
		t.Fatalf("expected no conflict with no other controller known, got %v", err)
	}
}

func TestHandleTopologyDiscoveryTriggersQuery(t *testing.T) {
	local := mac(0x01)
	peer := mac(0x02)
	backend := newFakeBackend(local)
	l := newTestLoop(local, backend, nil)

	c := &cmdu.CMDU{
		MessageType: cmdu.MsgTopologyDiscovery,
		MessageID:   1,
		TLVs: []tlv.TLV{
			&tlv.ALMACAddress{MAC: tlv.MAC(peer)},
			&tlv.MACAddress{MAC: tlv.MAC(peer)},
			&tlv.EndOfMessage{},
		},
	}
	if err := l.handleTopologyDiscovery(peer, c); err != nil {
		t.Fatalf("handleTopologyDiscovery: %v", err)
	}

	if dev := l.graph.Get(peer); dev == nil {
		t.Fatal("expected peer to be registered in the graph")
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected a TopologyQuery to be sent to the new peer, got %d frames", len(backend.sent))
	}
	decoded, err := cmdu.Decode(backend.sent[0].payload)
	if err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	if decoded.MessageType != cmdu.MsgTopologyQuery {
		t.Fatalf("expected a TopologyQuery, got %s", decoded.MessageType)
	}
}

func TestHandleTopologyQueryAnswersWithDeviceInformation(t *testing.T) {
	local := mac(0x01)
	peer := mac(0x02)
	backend := newFakeBackend(local)
	l := newTestLoop(local, backend, nil)
	l.graph.Local().Interfaces[mac(0x11)] = &model.Interface{MAC: mac(0x11)}

	c := &cmdu.CMDU{MessageType: cmdu.MsgTopologyQuery, MessageID: 2, TLVs: []tlv.TLV{&tlv.EndOfMessage{}}}
	if err := l.handleTopologyQuery(peer, c); err != nil {
		t.Fatalf("handleTopologyQuery: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one response frame, got %d", len(backend.sent))
	}
	decoded, err := cmdu.Decode(backend.sent[0].payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.MessageType != cmdu.MsgTopologyResponse {
		t.Fatalf("expected TopologyResponse, got %s", decoded.MessageType)
	}
	info, ok := findTLV[*tlv.DeviceInformation](decoded.TLVs)
	if !ok {
		t.Fatal("expected a DeviceInformation TLV in the response")
	}
	if len(info.Interfaces) != 1 || model.MAC(info.Interfaces[0].MAC) != mac(0x11) {
		t.Fatalf("unexpected interface list: %+v", info.Interfaces)
	}
}

func TestHandleLinkMetricQueryUnknownNeighborRejected(t *testing.T) {
	local := mac(0x01)
	peer := mac(0x02)
	unknown := mac(0x99)
	backend := newFakeBackend(local)
	l := newTestLoop(local, backend, nil)

	c := &cmdu.CMDU{
		MessageType: cmdu.MsgLinkMetricQuery,
		MessageID:   3,
		TLVs: []tlv.TLV{
			&tlv.LinkMetricQuery{
				Scope:         tlv.LinkMetricScopeSpecificNeighbor,
				NeighborALMAC: tlv.MAC(unknown),
				MetricType:    tlv.LinkMetricTypeBoth,
			},
			&tlv.EndOfMessage{},
		},
	}
	if err := l.handleLinkMetricQuery(peer, c); err != nil {
		t.Fatalf("handleLinkMetricQuery: %v", err)
	}
	decoded, err := cmdu.Decode(backend.sent[0].payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	code, ok := findTLV[*tlv.LinkMetricResultCode](decoded.TLVs)
	if !ok || code.Code != tlv.LinkMetricResultInvalidNeighbor {
		t.Fatalf("expected an InvalidNeighbor result code, got %+v ok=%v", code, ok)
	}
}

func TestHandleLinkMetricQueryAllNeighborsCoversEveryKnownDevice(t *testing.T) {
	local := mac(0x01)
	querier := mac(0x02)
	neighborA := mac(0x10)
	neighborB := mac(0x20)
	backend := newFakeBackend(local)
	l := newTestLoop(local, backend, nil)

	l.graph.Touch(neighborA, time.Now())
	l.graph.Touch(neighborB, time.Now())

	c := &cmdu.CMDU{
		MessageType: cmdu.MsgLinkMetricQuery,
		MessageID:   4,
		TLVs: []tlv.TLV{
			&tlv.LinkMetricQuery{Scope: tlv.LinkMetricScopeAllNeighbors, MetricType: tlv.LinkMetricTypeBoth},
			&tlv.EndOfMessage{},
		},
	}
	if err := l.handleLinkMetricQuery(querier, c); err != nil {
		t.Fatalf("handleLinkMetricQuery: %v", err)
	}
	decoded, err := cmdu.Decode(backend.sent[0].payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	var txCount, rxCount int
	seen := map[model.MAC]bool{}
	for _, v := range decoded.TLVs {
		switch m := v.(type) {
		case *tlv.TransmitterLinkMetric:
			txCount++
			seen[model.MAC(m.NeighborALMAC)] = true
		case *tlv.ReceiverLinkMetric:
			rxCount++
			seen[model.MAC(m.NeighborALMAC)] = true
		}
	}
	if txCount != 2 || rxCount != 2 {
		t.Fatalf("expected 2 tx and 2 rx metric TLVs (one pair per known neighbor), got tx=%d rx=%d", txCount, rxCount)
	}
	if !seen[neighborA] || !seen[neighborB] {
		t.Fatalf("expected metrics tagged with both known neighbors, got %+v", seen)
	}
}

func TestWSCHandshakeOverCMDU(t *testing.T) {
	registrarMAC := mac(0x01)
	enrolleeMAC := mac(0x02)

	registrarBackend := newFakeBackend(registrarMAC)
	registrar := newTestLoop(registrarMAC, registrarBackend, &model.RegistrarConfig{
		ByBand: map[model.Band]model.BSSInfo{
			model.Band24GHz: {SSID: "mesh-24", NetKey: "supersecretpsk!!", Roles: model.MultiAPFronthaul},
		},
	})

	enrolleeBackend := newFakeBackend(enrolleeMAC)
	enrollee := newTestLoop(enrolleeMAC, enrolleeBackend, nil)

	radio := enrollee.EnrolleeRadio(enrolleeMAC)
	m1, err := radio.BeginSearch(wsc.AuthWPA2PSK, wsc.EncrAES, []model.Band{model.Band24GHz}, wsc.DefaultDeviceInfo())
	if err != nil {
		t.Fatalf("BeginSearch: %v", err)
	}
	if err := radio.AwaitM2(); err != nil {
		t.Fatalf("AwaitM2: %v", err)
	}

	m1CMDU := &cmdu.CMDU{
		MessageType: cmdu.MsgAPAutoconfigurationWSC,
		MessageID:   5,
		TLVs:        []tlv.TLV{&tlv.WSC{Payload: m1}, &tlv.EndOfMessage{}},
	}
	if err := registrar.handleAPAutoconfigurationWSC(enrolleeMAC, m1CMDU); err != nil {
		t.Fatalf("registrar handling M1: %v", err)
	}
	if len(registrarBackend.sent) != 1 {
		t.Fatalf("expected registrar to send M2, got %d frames", len(registrarBackend.sent))
	}

	m2Decoded, err := cmdu.Decode(registrarBackend.sent[0].payload)
	if err != nil {
		t.Fatalf("decode M2 CMDU: %v", err)
	}
	m2TLV, ok := findTLV[*tlv.WSC](m2Decoded.TLVs)
	if !ok {
		t.Fatal("expected a WSC TLV carrying M2")
	}

	m2CMDU := &cmdu.CMDU{
		MessageType: cmdu.MsgAPAutoconfigurationWSC,
		MessageID:   6,
		TLVs:        []tlv.TLV{m2TLV, &tlv.EndOfMessage{}},
	}
	if err := enrollee.handleAPAutoconfigurationWSC(registrarMAC, m2CMDU); err != nil {
		t.Fatalf("enrollee handling M2: %v", err)
	}
	if radio.State() != wsc.StateConfigured {
		t.Fatalf("expected enrollee radio to reach StateConfigured, got %s", radio.State())
	}
}
