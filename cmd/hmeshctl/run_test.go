package main

import (
	"testing"
	"time"
)

func TestRunRejectsMissingALMAC(t *testing.T) {
	runOpts = struct {
		alMAC      string
		interfaces string
		wholeNet   bool
		registrar  string
		verbosity  int
		port       int
		configPath string
		statsFile  string
		statsEvery time.Duration
		storePath  string
		tui        bool
	}{interfaces: "eth0"}

	err := runRun(runCmd, nil)
	if err == nil {
		t.Fatal("expected an error when --al-mac is missing")
	}
	if code := exitCodeFor(err); code != exitInvalidArgs {
		t.Fatalf("exit code = %d, want %d", code, exitInvalidArgs)
	}
}

func TestRunRejectsMissingInterfaces(t *testing.T) {
	runOpts = struct {
		alMAC      string
		interfaces string
		wholeNet   bool
		registrar  string
		verbosity  int
		port       int
		configPath string
		statsFile  string
		statsEvery time.Duration
		storePath  string
		tui        bool
	}{alMAC: "02:11:22:33:44:55"}

	err := runRun(runCmd, nil)
	if err == nil {
		t.Fatal("expected an error when --interfaces is missing")
	}
	if code := exitCodeFor(err); code != exitInvalidArgs {
		t.Fatalf("exit code = %d, want %d", code, exitInvalidArgs)
	}
}

func TestRunRejectsMalformedALMAC(t *testing.T) {
	runOpts = struct {
		alMAC      string
		interfaces string
		wholeNet   bool
		registrar  string
		verbosity  int
		port       int
		configPath string
		statsFile  string
		statsEvery time.Duration
		storePath  string
		tui        bool
	}{alMAC: "not-a-mac", interfaces: "eth0"}

	err := runRun(runCmd, nil)
	if err == nil {
		t.Fatal("expected an error for a malformed AL MAC")
	}
	if code := exitCodeFor(err); code != exitInvalidArgs {
		t.Fatalf("exit code = %d, want %d", code, exitInvalidArgs)
	}
}
