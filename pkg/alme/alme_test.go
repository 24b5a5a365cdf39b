package alme

import (
	"net"
	"testing"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/pkg/tlv"
)

func mac(b byte) model.MAC { return model.MAC{0x00, 0x4f, 0x21, 0x03, 0xab, b} }

func TestGetIntfListRoundTrip(t *testing.T) {
	resp := &GetIntfListResponse{Interfaces: []IntfDescriptor{
		{MAC: mac(1), MediaType: tlv.MediaEthernetGigabit, BridgeFlag: true},
		{MAC: mac(2), MediaType: tlv.MediaWiFi80211n24, BridgeFlag: false},
	}}
	encoded := resp.Forge()
	typ, decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if typ != TypeGetIntfListResponse {
		t.Fatalf("expected TypeGetIntfListResponse, got %s", typ)
	}
	got := decoded.(*GetIntfListResponse)
	if len(got.Interfaces) != 2 || got.Interfaces[0].MAC != mac(1) || !got.Interfaces[0].BridgeFlag {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSetIntfPwrStateRoundTrip(t *testing.T) {
	req := &SetIntfPwrStateRequest{MAC: mac(3), State: PowerSave}
	typ, decoded, err := Decode(req.Forge())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if typ != TypeSetIntfPwrStateRequest {
		t.Fatalf("unexpected type: %s", typ)
	}
	got := decoded.(*SetIntfPwrStateRequest)
	if got.MAC != mac(3) || got.State != PowerSave {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	confirm := &SetIntfPwrStateConfirm{MAC: mac(3), Reason: ReasonSuccess}
	typ2, decoded2, err := Decode(confirm.Forge())
	if err != nil || typ2 != TypeSetIntfPwrStateConfirm {
		t.Fatalf("confirm decode: %v %s", err, typ2)
	}
	if decoded2.(*SetIntfPwrStateConfirm).Reason != ReasonSuccess {
		t.Fatal("expected ReasonSuccess to survive round trip")
	}
}

func TestGetMetricRoundTrip(t *testing.T) {
	resp := &GetMetricResponse{
		Metrics: []MetricDescriptor{{
			NeighborALMAC: mac(4),
			LocalIfaceMAC: mac(5),
			BridgeFlag:    true,
			Tx:            &tlv.TxLinkMetricEntry{PacketsSent: 10, PHYRate: 866},
			Rx:            &tlv.RxLinkMetricEntry{PacketsReceived: 9, RSSI: 200},
		}},
		Reason: ReasonSuccess,
	}
	typ, decoded, err := Decode(resp.Forge())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if typ != TypeGetMetricResponse {
		t.Fatalf("unexpected type: %s", typ)
	}
	got := decoded.(*GetMetricResponse)
	if len(got.Metrics) != 1 || got.Metrics[0].Tx.PacketsSent != 10 || got.Metrics[0].Rx.RSSI != 200 {
		t.Fatalf("round trip mismatch: %+v", got.Metrics)
	}
}

func TestDecodeUnknownTypeRejected(t *testing.T) {
	if _, _, err := Decode([]byte{0xaa}); err == nil {
		t.Fatal("expected an error for an unrecognized ALME type")
	}
}

func TestServerOneRequestPerConnection(t *testing.T) {
	submit := func(payload []byte) []byte {
		return (&GetIntfListResponse{Interfaces: []IntfDescriptor{{MAC: mac(9)}}}).Forge()
	}
	srv, err := NewServer("127.0.0.1:0", submit)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.Serve()
	defer srv.Stop()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write((&GetIntfListRequest{}).Forge()); err != nil {
		t.Fatalf("write request: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	typ, decoded, err := Decode(buf[:n])
	if err != nil || typ != TypeGetIntfListResponse {
		t.Fatalf("unexpected reply: %v %s", err, typ)
	}
	if decoded.(*GetIntfListResponse).Interfaces[0].MAC != mac(9) {
		t.Fatal("reply did not round trip the submitted response")
	}
}
