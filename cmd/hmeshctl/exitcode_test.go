package main

import (
	"errors"
	"testing"
)

func TestExitCodeForClassifiedError(t *testing.T) {
	err := withExitCode(exitNoInterfaces, errors.New("no interfaces"))
	if got := exitCodeFor(err); got != exitNoInterfaces {
		t.Fatalf("exitCodeFor = %d, want %d", got, exitNoInterfaces)
	}
}

func TestExitCodeForUnclassifiedErrorDefaultsToOne(t *testing.T) {
	if got := exitCodeFor(errors.New("boom")); got != 1 {
		t.Fatalf("exitCodeFor = %d, want 1", got)
	}
}

func TestWithExitCodeNilIsNil(t *testing.T) {
	if err := withExitCode(exitOSError, nil); err != nil {
		t.Fatalf("withExitCode(nil) = %v, want nil", err)
	}
}

func TestExitErrorUnwraps(t *testing.T) {
	inner := errors.New("root cause")
	err := withExitCode(exitInterfaceError, inner)
	if !errors.Is(err, inner) {
		t.Fatal("expected errors.Is to find the wrapped root cause")
	}
}
