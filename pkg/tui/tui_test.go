package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/krisarmstrong/hmeshd/pkg/engine"
	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/platform/simnet"
)

func newTestLoop(t *testing.T) *engine.Loop {
	t.Helper()
	medium := simnet.NewMedium()
	mac := model.MAC{0x00, 0x4f, 0x21, 0x03, 0xab, 0x01}
	node := simnet.NewNode(medium, mac, "eth0")
	t.Cleanup(func() { node.Close() })
	return engine.NewLoop(engine.Config{LocalALMAC: mac, Backend: node})
}

func TestNewModelCapturesLocalALMAC(t *testing.T) {
	loop := newTestLoop(t)
	m := NewModel(loop).(model)
	if m.localALMAC != loop.Graph().Local().ALMAC {
		t.Fatalf("localALMAC = %s, want %s", m.localALMAC, loop.Graph().Local().ALMAC)
	}
}

func TestUpdateQuitsOnQ(t *testing.T) {
	loop := newTestLoop(t)
	m := NewModel(loop)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
}

func TestUpdateRefreshesOnTick(t *testing.T) {
	loop := newTestLoop(t)
	loop.Graph().Touch(model.MAC{0x00, 0x4f, 0x21, 0x03, 0xab, 0x0c}, time.Now())

	next, cmd := NewModel(loop).Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("expected the next tick to be scheduled")
	}
	m := next.(model)
	if len(m.devices) != 2 { // local + the touched neighbor
		t.Fatalf("devices = %d, want 2", len(m.devices))
	}
}

func TestViewListsLocalDevice(t *testing.T) {
	loop := newTestLoop(t)
	next, _ := NewModel(loop).Update(tickMsg(time.Now()))
	out := next.(model).View()

	if !strings.Contains(out, "local") {
		t.Fatalf("expected view to mark the local device, got:\n%s", out)
	}
}
