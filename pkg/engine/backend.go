// Package engine implements the AL event loop: a single consumer goroutine
// that owns the device graph and dispatches every CMDU, LLDP frame, and
// internal timer/topology event it receives. Every other goroutine in the
// process (packet readers, the timer wheel, the ALME server, a push-button
// source, the topology-change watcher) is a producer that only ever sends
// into the loop's event channel, mirroring the single-consumer dispatch
// loop the teacher builds around its recvQueue/decodeThread pair.
package engine

import "github.com/krisarmstrong/hmeshd/pkg/model"

// RawFrame is one Ethernet frame read off an interface, tagged with the
// local interface it arrived on and the frame's EtherType so the loop can
// route it to the CMDU or LLDP path without re-parsing the header twice.
type RawFrame struct {
	IfaceMAC  model.MAC
	SrcMAC    model.MAC
	DstMAC    model.MAC
	EtherType uint16
	Payload   []byte
}

// InterfaceInfo describes one local interface the backend exposes.
type InterfaceInfo struct {
	MAC  model.MAC
	Name string
}

// Backend is the platform trait surface the loop sends/receives raw frames
// through. platform/pcapnet implements it over gopacket/pcap;
// platform/simnet implements it in-memory for tests.
type Backend interface {
	// Interfaces lists the local interfaces this backend serves.
	Interfaces() []InterfaceInfo
	// Recv returns a channel of frames arriving on any served interface.
	// The channel is closed when the backend is closed.
	Recv() <-chan RawFrame
	// Send transmits payload out ifaceMAC to dst with the given EtherType.
	Send(ifaceMAC, dst model.MAC, etherType uint16, payload []byte) error
	// Close releases any underlying capture handles.
	Close() error
}
