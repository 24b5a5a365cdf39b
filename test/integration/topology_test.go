// Package integration exercises the AL event loop end to end over
// platform/simnet's in-memory medium: real Ethernet-framed CMDUs travel
// from a raw sender node into a running engine.Loop, rather than calling
// its handler methods directly as pkg/engine's own unit tests do.
package integration

import (
	"testing"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/cmdu"
	"github.com/krisarmstrong/hmeshd/pkg/engine"
	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/pkg/tlv"
	"github.com/krisarmstrong/hmeshd/pkg/wsc"
	"github.com/krisarmstrong/hmeshd/platform/simnet"
)

func mac(b byte) model.MAC { return model.MAC{0x00, 0x4f, 0x21, 0x03, 0xab, b} }

const pollInterval = 5 * time.Millisecond
const pollTimeout = 2 * time.Second

// waitFor polls cond until it returns true or pollTimeout elapses.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(pollTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(pollInterval)
	}
	t.Fatal(msg)
}

// TestTopologyDiscoveryEstablishesNeighborLink is Scenario A: a
// TopologyDiscovery CMDU carrying a neighbor's AL MAC and interface MAC
// arrives on a local interface; the receiving AL entity must record that
// neighbor with the matching interface, linked to the receiving local
// interface.
func TestTopologyDiscoveryEstablishesNeighborLink(t *testing.T) {
	localALMAC := mac(0x01)
	localIfaceMAC := model.MAC{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0x01}
	neighborALMAC := mac(0x0c)
	neighborIfaceMAC := mac(0x0d)

	medium := simnet.NewMedium()
	localNode := simnet.NewNode(medium, localIfaceMAC, "eth0")
	defer localNode.Close()

	loop := engine.NewLoop(engine.Config{
		LocalALMAC: localALMAC,
		Backend:    localNode,
		DeviceInfo: wsc.DefaultDeviceInfo(),
	})
	go loop.Run()
	defer loop.Stop()

	sender := simnet.NewNode(medium, neighborIfaceMAC, "neighbor0")
	defer sender.Close()

	discovery := &cmdu.CMDU{
		MessageType: cmdu.MsgTopologyDiscovery,
		MessageID:   1,
		TLVs: []tlv.TLV{
			&tlv.ALMACAddress{MAC: tlv.MAC(neighborALMAC)},
			&tlv.MACAddress{MAC: tlv.MAC(neighborIfaceMAC)},
			&tlv.EndOfMessage{},
		},
	}
	fragments, err := cmdu.Encode(discovery, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, frag := range fragments {
		if err := sender.Send(neighborIfaceMAC, engine.BroadcastALMAC, engine.EtherTypeCMDU, frag); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	waitFor(t, func() bool { return loop.Graph().Get(neighborALMAC) != nil },
		"neighbor device never appeared in the graph")

	dev := loop.Graph().Get(neighborALMAC)
	iface, ok := dev.Interfaces[neighborIfaceMAC]
	if !ok {
		t.Fatalf("expected neighbor device to carry interface %s, got %+v", neighborIfaceMAC, dev.Interfaces)
	}
	local := loop.Graph().Local()
	localIface, ok := local.Interfaces[localIfaceMAC]
	if !ok {
		t.Fatalf("expected the local interface %s to be recorded", localIfaceMAC)
	}
	if _, linked := localIface.Neighbors[neighborIfaceMAC]; !linked {
		t.Fatal("expected the local interface to be linked to the neighbor interface")
	}
	if _, linked := iface.Neighbors[localIfaceMAC]; !linked {
		t.Fatal("expected the neighbor interface to be linked back to the local interface")
	}
}

// TestDuplicateTopologyNotificationSuppressed is Scenario F: the same
// TopologyNotification delivered twice (same source AL MAC, message id,
// message type) must only trigger one reaction — here, exactly one
// TopologyQuery sent back to the notifier.
func TestDuplicateTopologyNotificationSuppressed(t *testing.T) {
	localALMAC := mac(0x01)
	localIfaceMAC := model.MAC{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0x01}
	notifierALMAC := mac(0x02)

	medium := simnet.NewMedium()
	localNode := simnet.NewNode(medium, localIfaceMAC, "eth0")
	defer localNode.Close()

	loop := engine.NewLoop(engine.Config{
		LocalALMAC: localALMAC,
		Backend:    localNode,
		DeviceInfo: wsc.DefaultDeviceInfo(),
	})
	go loop.Run()
	defer loop.Stop()

	sender := simnet.NewNode(medium, notifierALMAC, "notifier0")
	defer sender.Close()

	notification := &cmdu.CMDU{
		MessageType: cmdu.MsgTopologyNotification,
		MessageID:   7,
		TLVs: []tlv.TLV{
			&tlv.ALMACAddress{MAC: tlv.MAC(notifierALMAC)},
			&tlv.EndOfMessage{},
		},
	}
	fragments, err := cmdu.Encode(notification, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var queriesSeen int
	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.After(300 * time.Millisecond)
		for {
			select {
			case f := <-sender.Recv():
				if f.EtherType != engine.EtherTypeCMDU {
					continue
				}
				decoded, err := cmdu.Decode(f.Payload)
				if err == nil && decoded.MessageType == cmdu.MsgTopologyQuery {
					queriesSeen++
				}
			case <-deadline:
				return
			}
		}
	}()

	for i := 0; i < 2; i++ {
		for _, frag := range fragments {
			if err := sender.Send(notifierALMAC, localALMAC, engine.EtherTypeCMDU, frag); err != nil {
				t.Fatalf("send: %v", err)
			}
		}
	}
	<-done

	if queriesSeen != 1 {
		t.Fatalf("expected exactly one TopologyQuery after a duplicate notification, got %d", queriesSeen)
	}
}
