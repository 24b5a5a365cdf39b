package model

import (
	"testing"
	"time"
)

func testMAC(b byte) MAC {
	return MAC{0x00, 0x4f, 0x21, 0x03, 0xab, b}
}

func TestNewGraphAlwaysHasLocalDevice(t *testing.T) {
	local := testMAC(0x01)
	g := NewGraph(local, 0)
	if g.Count() != 1 {
		t.Fatalf("expected 1 device (local_device), got %d", g.Count())
	}
	if g.Local() == nil {
		t.Fatal("local_device must always be present")
	}
	if g.Local().ALMAC != local {
		t.Fatalf("local_device ALMAC mismatch: got %v want %v", g.Local().ALMAC, local)
	}
}

func TestTouchCreatesAndUpdatesDevice(t *testing.T) {
	g := NewGraph(testMAC(0x01), 0)
	peer := testMAC(0x02)
	t1 := time.Now()
	d := g.Touch(peer, t1)
	if d.ALMAC != peer {
		t.Fatalf("unexpected device: %v", d.ALMAC)
	}
	if g.Count() != 2 {
		t.Fatalf("expected 2 devices after Touch, got %d", g.Count())
	}

	t2 := t1.Add(time.Second)
	g.Touch(peer, t2)
	if g.Get(peer).LastSeen != t2 {
		t.Fatal("Touch should update LastSeen on an existing device")
	}
	if g.Count() != 2 {
		t.Fatalf("re-touching an existing peer should not create a new device, got count %d", g.Count())
	}
}

func TestLinkNeighborsIsSymmetric(t *testing.T) {
	g := NewGraph(testMAC(0x01), 0)
	a := &Interface{MAC: testMAC(0x10)}
	b := &Interface{MAC: testMAC(0x11)}
	g.LinkNeighbors(a, b)

	if a.Neighbors[b.MAC] != b {
		t.Fatal("expected a to have b as a neighbor")
	}
	if b.Neighbors[a.MAC] != a {
		t.Fatal("expected b to have a as a neighbor")
	}

	g.UnlinkNeighbors(a, b)
	if _, ok := a.Neighbors[b.MAC]; ok {
		t.Fatal("expected neighbor link removed from a")
	}
	if _, ok := b.Neighbors[a.MAC]; ok {
		t.Fatal("expected neighbor link removed from b")
	}
}

func TestPruneExpiresStaleDevicesNotLocal(t *testing.T) {
	local := testMAC(0x01)
	g := NewGraph(local, time.Minute)
	base := time.Now()
	peer := testMAC(0x02)
	g.Touch(peer, base)

	// Not yet stale.
	expired := g.Prune(base.Add(30 * time.Second))
	if len(expired) != 0 {
		t.Fatalf("expected nothing pruned yet, got %v", expired)
	}
	if g.Get(peer) == nil {
		t.Fatal("peer should still be present")
	}

	// Now stale.
	expired = g.Prune(base.Add(2 * time.Minute))
	if len(expired) != 1 || expired[0] != peer {
		t.Fatalf("expected peer pruned, got %v", expired)
	}
	if g.Get(peer) != nil {
		t.Fatal("peer should have been removed")
	}
	if g.Get(local) == nil {
		t.Fatal("local_device must never be pruned")
	}
}

func TestPruneGarbageCollectsDanglingNeighbors(t *testing.T) {
	local := testMAC(0x01)
	g := NewGraph(local, time.Minute)
	base := time.Now()

	survivor := g.Touch(local, base) // keep local fresh
	peer := testMAC(0x02)
	peerDevice := g.Touch(peer, base)

	survivorIface := &Interface{MAC: testMAC(0x20), Neighbors: make(map[MAC]*Interface)}
	peerIface := &Interface{MAC: testMAC(0x21), Neighbors: make(map[MAC]*Interface)}
	survivor.Interfaces[survivorIface.MAC] = survivorIface
	peerDevice.Interfaces[peerIface.MAC] = peerIface
	g.LinkNeighbors(survivorIface, peerIface)

	g.Prune(base.Add(2 * time.Minute))

	if _, ok := survivorIface.Neighbors[peerIface.MAC]; ok {
		t.Fatal("expected dangling neighbor pointer garbage-collected after peer pruned")
	}
}

func TestSnapshotReflectsCurrentState(t *testing.T) {
	g := NewGraph(testMAC(0x01), 0)
	g.Touch(testMAC(0x02), time.Now())
	snap := g.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries in snapshot, got %d", len(snap))
	}
}
