package errs

import (
	"errors"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := Malformed("tlv.Parse", errors.New("short buffer"))
	kind, ok := KindOf(err)
	if !ok || kind != KindMalformed {
		t.Fatalf("KindOf = %v, %v", kind, ok)
	}
}

func TestIsMatchesKindNotOp(t *testing.T) {
	a := Timeout("engine.awaitM2", nil)
	b := Timeout("engine.awaitResponse", nil)
	if !errors.Is(a, b) {
		t.Fatal("expected same-kind errors to match via errors.Is")
	}
	c := Policy("engine.registrar", nil)
	if errors.Is(a, c) {
		t.Fatal("expected different-kind errors not to match")
	}
}

func TestWrappedCauseUnwraps(t *testing.T) {
	cause := errors.New("hmac mismatch")
	err := Unauthenticated("wsc.VerifyM2", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap to expose the underlying cause")
	}
}
