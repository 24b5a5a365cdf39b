package wsc

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/model"
)

// EnrolleeState is the current step of a radio's WSC exchange.
type EnrolleeState string

const (
	StateIdle        EnrolleeState = "idle"
	StateSearching   EnrolleeState = "searching"
	StateAwaitingM2  EnrolleeState = "awaiting_m2"
	StateConfigured  EnrolleeState = "configured"
)

// EnrolleeRadio drives one radio's enrollee-side WSC state machine:
// Idle -> Searching -> AwaitingM2 -> Configured, with teardown and
// timeout transitions back to Idle from any in-flight state. The WSC
// state (M1 buffer, nonce, DH private key) exists only between
// BeginSearch's M1 and a successful/failed/timed-out M2, matching the
// model.Radio.WSC lifetime invariant.
type EnrolleeRadio struct {
	mu         sync.Mutex
	state      EnrolleeState
	alMAC      model.MAC
	m1         *M1
	privateKey *big.Int
	startedAt  time.Time
}

// NewEnrolleeRadio constructs a radio state machine in StateIdle for the
// given AL MAC.
func NewEnrolleeRadio(alMAC model.MAC) *EnrolleeRadio {
	return &EnrolleeRadio{state: StateIdle, alMAC: alMAC}
}

// State returns the current state.
func (e *EnrolleeRadio) State() EnrolleeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// BeginSearch builds a fresh M1 and transitions Idle -> Searching. It is
// an error to call this while an exchange is already in flight; callers
// must Timeout or Teardown first.
func (e *EnrolleeRadio) BeginSearch(authTypes, encrTypes uint16, bands []model.Band, dev DeviceInfo) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return nil, fmt.Errorf("wsc: BeginSearch called in state %q, expected %q", e.state, StateIdle)
	}

	raw, keys, _, err := BuildM1(e.alMAC, authTypes, encrTypes, bands, dev)
	if err != nil {
		return nil, err
	}
	m1, err := ParseM1(raw)
	if err != nil {
		return nil, fmt.Errorf("wsc: internal: failed to re-parse freshly built M1: %w", err)
	}

	e.m1 = m1
	e.privateKey = keys.Private
	e.startedAt = time.Now()
	e.state = StateSearching
	return raw, nil
}

// AwaitM2 transitions Searching -> AwaitingM2 once the M1 has gone out on
// the wire (APAutoconfigurationWSC is about to be sent carrying it).
func (e *EnrolleeRadio) AwaitM2() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateSearching {
		return fmt.Errorf("wsc: AwaitM2 called in state %q, expected %q", e.state, StateSearching)
	}
	e.state = StateAwaitingM2
	return nil
}

// ReceiveM2 validates a peer's M2 against the in-flight M1 and, on
// success, transitions AwaitingM2 -> Configured and returns the BSS
// configuration and Multi-AP role to apply.
func (e *EnrolleeRadio) ReceiveM2(m2Data []byte) (*M2Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateAwaitingM2 {
		return nil, fmt.Errorf("wsc: ReceiveM2 called in state %q, expected %q", e.state, StateAwaitingM2)
	}

	result, err := ValidateM2(e.m1, e.privateKey, m2Data)
	if err != nil {
		return nil, err
	}

	if result.Teardown {
		e.reset()
		return result, nil
	}
	e.state = StateConfigured
	return result, nil
}

// Timeout aborts an in-flight exchange (Searching or AwaitingM2) and
// returns to Idle. It is a no-op from Idle or Configured.
func (e *EnrolleeRadio) Timeout() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateSearching || e.state == StateAwaitingM2 {
		e.reset()
	}
}

// Teardown clears a Configured radio's credentials and returns to Idle,
// driven by a Multi-AP teardown bit or an operator action.
func (e *EnrolleeRadio) Teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

func (e *EnrolleeRadio) reset() {
	e.m1 = nil
	e.privateKey = nil
	e.startedAt = time.Time{}
	e.state = StateIdle
}

// Elapsed reports how long the current exchange has been in flight; zero
// if idle.
func (e *EnrolleeRadio) Elapsed(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startedAt.IsZero() {
		return 0
	}
	return now.Sub(e.startedAt)
}

// defaultDeviceInfo is a placeholder DeviceInfo used where the caller has
// not supplied its own; kept here rather than in engine to avoid a
// pkg/engine -> pkg/wsc -> pkg/engine import cycle.
var defaultDeviceInfo = DeviceInfo{
	Manufacturer: "hmeshd",
	ModelName:    "AL Agent",
	ModelNumber:  "1",
	SerialNumber: "0",
}

// DefaultDeviceInfo returns the fallback DeviceInfo used when none is
// configured.
func DefaultDeviceInfo() DeviceInfo { return defaultDeviceInfo }
