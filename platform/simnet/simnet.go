// Package simnet is an in-memory engine.Backend used by the integration
// tests and the pkg/tui and pkg/stats tests: a shared medium that fans every
// sent frame out to every attached node except the sender, standing in
// for a physical Ethernet segment with no teacher equivalent to ground
// on (the teacher only ever talks to a real NIC).
package simnet

import (
	"fmt"
	"sync"

	"github.com/krisarmstrong/hmeshd/pkg/engine"
	"github.com/krisarmstrong/hmeshd/pkg/model"
)

// Medium is the shared broadcast domain several Node backends attach to.
type Medium struct {
	mu    sync.Mutex
	nodes map[*Node]struct{}
}

// NewMedium creates an empty shared segment.
func NewMedium() *Medium {
	return &Medium{nodes: make(map[*Node]struct{})}
}

func (m *Medium) attach(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n] = struct{}{}
}

func (m *Medium) detach(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, n)
}

func (m *Medium) broadcast(from *Node, frame engine.RawFrame) {
	m.mu.Lock()
	peers := make([]*Node, 0, len(m.nodes))
	for n := range m.nodes {
		if n != from {
			peers = append(peers, n)
		}
	}
	m.mu.Unlock()
	for _, n := range peers {
		n.deliver(frame)
	}
}

// Node is one simulated host's Backend, bound to a single interface.
type Node struct {
	medium *Medium
	iface  engine.InterfaceInfo
	recvCh chan engine.RawFrame
	closed chan struct{}
	once   sync.Once
}

// NewNode attaches a new simulated interface with the given MAC/name to
// medium. The returned *Node implements engine.Backend.
func NewNode(medium *Medium, mac model.MAC, name string) *Node {
	n := &Node{
		medium: medium,
		iface:  engine.InterfaceInfo{MAC: mac, Name: name},
		recvCh: make(chan engine.RawFrame, 256),
		closed: make(chan struct{}),
	}
	medium.attach(n)
	return n
}

func (n *Node) deliver(frame engine.RawFrame) {
	select {
	case <-n.closed:
		return
	default:
	}
	frame.IfaceMAC = n.iface.MAC
	select {
	case n.recvCh <- frame:
	case <-n.closed:
	}
}

func (n *Node) Interfaces() []engine.InterfaceInfo {
	return []engine.InterfaceInfo{n.iface}
}

func (n *Node) Recv() <-chan engine.RawFrame { return n.recvCh }

func (n *Node) Send(ifaceMAC, dst model.MAC, etherType uint16, payload []byte) error {
	if ifaceMAC != n.iface.MAC {
		return fmt.Errorf("simnet: node %s has no interface %s", n.iface.Name, ifaceMAC)
	}
	frame := engine.RawFrame{
		IfaceMAC:  n.iface.MAC,
		SrcMAC:    n.iface.MAC,
		DstMAC:    dst,
		EtherType: etherType,
		Payload:   append([]byte(nil), payload...),
	}
	n.medium.broadcast(n, frame)
	return nil
}

func (n *Node) Close() error {
	n.once.Do(func() {
		close(n.closed)
		n.medium.detach(n)
		close(n.recvCh)
	})
	return nil
}
