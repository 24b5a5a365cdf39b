package main

import (
	"testing"

	"github.com/krisarmstrong/hmeshd/pkg/alme"
)

func TestBuildAlmeRequestGetIntfList(t *testing.T) {
	msg, err := buildAlmeRequest("get-intf-list", "")
	if err != nil {
		t.Fatalf("buildAlmeRequest: %v", err)
	}
	if _, ok := msg.(*alme.GetIntfListRequest); !ok {
		t.Fatalf("got %T, want *alme.GetIntfListRequest", msg)
	}
}

func TestBuildAlmeRequestGetMetricParsesMAC(t *testing.T) {
	msg, err := buildAlmeRequest("get-metric", "02:11:22:33:44:55")
	if err != nil {
		t.Fatalf("buildAlmeRequest: %v", err)
	}
	req, ok := msg.(*alme.GetMetricRequest)
	if !ok {
		t.Fatalf("got %T, want *alme.GetMetricRequest", msg)
	}
	if req.NeighborALMAC.String() != "02:11:22:33:44:55" {
		t.Fatalf("unexpected mac: %s", req.NeighborALMAC)
	}
}

func TestBuildAlmeRequestRejectsUnknownType(t *testing.T) {
	if _, err := buildAlmeRequest("set-fwd-rule", ""); err == nil {
		t.Fatal("expected an error for an unknown request type")
	}
}

func TestBuildAlmeRequestRejectsBadMAC(t *testing.T) {
	if _, err := buildAlmeRequest("get-metric", "not-a-mac"); err == nil {
		t.Fatal("expected an error for a malformed MAC")
	}
}
