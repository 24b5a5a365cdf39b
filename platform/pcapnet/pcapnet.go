// Package pcapnet is the production engine.Backend: it opens one pcap
// handle per configured interface in promiscuous mode and multiplexes
// their received frames into a single channel, the same one-handle-per-
// interface layout the teacher's pkg/capture.Engine uses, generalized
// from a single interface to the AL's full interface set.
package pcapnet

import (
	"fmt"
	"net"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/krisarmstrong/hmeshd/pkg/engine"
	"github.com/krisarmstrong/hmeshd/pkg/logging"
	"github.com/krisarmstrong/hmeshd/pkg/model"
)

const snapshotLength = 1600

// bpfFilter filters the link layer to just the two protocols
// the loop speaks; everything else (IP, ARP, STP...) is dropped at the
// capture boundary rather than funnelled into the event channel only to
// be dropped there.
var bpfFilter = "ether proto 0x893a or ether proto 0x88cc"

type iface struct {
	name   string
	mac    model.MAC
	handle *pcap.Handle
}

// Backend implements engine.Backend over one or more live interfaces.
type Backend struct {
	ifaces []iface
	recvCh chan engine.RawFrame
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Open binds a pcap handle to every named interface, in promiscuous mode,
// filtered to 1905.1/LLDP EtherTypes.
func Open(names []string) (*Backend, error) {
	b := &Backend{
		recvCh: make(chan engine.RawFrame, 1024),
		stopCh: make(chan struct{}),
	}
	for _, name := range names {
		mac, err := interfaceMAC(name)
		if err != nil {
			b.Close()
			return nil, err
		}
		handle, err := pcap.OpenLive(name, snapshotLength, true, pcap.BlockForever)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("pcapnet: open %s: %w", name, err)
		}
		if err := handle.SetBPFFilter(bpfFilter); err != nil {
			handle.Close()
			b.Close()
			return nil, fmt.Errorf("pcapnet: set filter on %s: %w", name, err)
		}
		b.ifaces = append(b.ifaces, iface{name: name, mac: mac, handle: handle})
	}

	for i := range b.ifaces {
		b.wg.Add(1)
		go b.readLoop(b.ifaces[i])
	}
	return b, nil
}

func interfaceMAC(name string) (model.MAC, error) {
	ni, err := net.InterfaceByName(name)
	if err != nil {
		return model.MAC{}, fmt.Errorf("pcapnet: lookup interface %s: %w", name, err)
	}
	if len(ni.HardwareAddr) != 6 {
		return model.MAC{}, fmt.Errorf("pcapnet: interface %s has no 6-byte hardware address", name)
	}
	var mac model.MAC
	copy(mac[:], ni.HardwareAddr)
	return mac, nil
}

func (b *Backend) readLoop(f iface) {
	defer b.wg.Done()
	src := gopacket.NewPacketSource(f.handle, f.handle.LinkType())
	for {
		select {
		case <-b.stopCh:
			return
		case pkt, ok := <-src.Packets():
			if !ok {
				return
			}
			ethLayer := pkt.Layer(layers.LayerTypeEthernet)
			if ethLayer == nil {
				continue
			}
			eth, ok := ethLayer.(*layers.Ethernet)
			if !ok {
				continue
			}
			var srcMAC, dstMAC model.MAC
			copy(srcMAC[:], eth.SrcMAC)
			copy(dstMAC[:], eth.DstMAC)

			frame := engine.RawFrame{
				IfaceMAC:  f.mac,
				SrcMAC:    srcMAC,
				DstMAC:    dstMAC,
				EtherType: uint16(eth.EthernetType),
				Payload:   append([]byte(nil), eth.Payload...),
			}
			select {
			case b.recvCh <- frame:
			case <-b.stopCh:
				return
			}
		}
	}
}

func (b *Backend) Interfaces() []engine.InterfaceInfo {
	out := make([]engine.InterfaceInfo, 0, len(b.ifaces))
	for _, f := range b.ifaces {
		out = append(out, engine.InterfaceInfo{MAC: f.mac, Name: f.name})
	}
	return out
}

func (b *Backend) Recv() <-chan engine.RawFrame { return b.recvCh }

func (b *Backend) Send(ifaceMAC, dst model.MAC, etherType uint16, payload []byte) error {
	for _, f := range b.ifaces {
		if f.mac != ifaceMAC {
			continue
		}
		ethLayer := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr(ifaceMAC[:]),
			DstMAC:       net.HardwareAddr(dst[:]),
			EthernetType: layers.EthernetType(etherType),
		}
		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		if err := gopacket.SerializeLayers(buf, opts, ethLayer, gopacket.Payload(payload)); err != nil {
			return fmt.Errorf("pcapnet: serialize frame: %w", err)
		}
		if err := f.handle.WritePacketData(buf.Bytes()); err != nil {
			logging.Warning("pcapnet: send on %s failed: %v", f.name, err)
			return fmt.Errorf("pcapnet: send on %s: %w", f.name, err)
		}
		return nil
	}
	return fmt.Errorf("pcapnet: no interface with MAC %s", ifaceMAC)
}

func (b *Backend) Close() error {
	close(b.stopCh)
	for _, f := range b.ifaces {
		f.handle.Close()
	}
	b.wg.Wait()
	return nil
}
