package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
device_info:
  manufacturer: Acme
  model_name: Mesh Node
  serial_number: SN001

registrar:
  - band: 2.4GHz
    ssid: home-network
    bssid: "02:11:22:33:44:55"
    auth_mode: wpa2psk
    enc_mode: aes
    net_key: supersecret
    fronthaul: true
  - band: 5GHz
    ssid: home-network-5g
    bssid: "02:11:22:33:44:56"
    auth_mode: wpa2psk
    enc_mode: aes
    net_key: supersecret
    backhaul: true

snmp:
  enabled: true
  listen: "0.0.0.0:1161"
  community: public

marker_path: /tmp/hmeshd-topology-changed
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hmeshd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAndValidateSample(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	rc, err := cfg.ToRegistrarConfig()
	if err != nil {
		t.Fatalf("ToRegistrarConfig: %v", err)
	}
	if len(rc.ByBand) != 2 {
		t.Fatalf("expected 2 registrar bands, got %d", len(rc.ByBand))
	}

	di := cfg.ToDeviceInfo()
	if di.Manufacturer != "Acme" || di.SerialNumber != "SN001" {
		t.Fatalf("unexpected device info: %+v", di)
	}
}

func TestValidateRejectsOpenWithEncryption(t *testing.T) {
	cfg := &Config{Registrar: []BSSConfig{{
		Band: "2.4GHz", SSID: "x", BSSID: "02:11:22:33:44:55",
		AuthMode: "open", EncMode: "aes",
	}}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected a validation error for open+aes")
	}
}

func TestValidateRejectsDuplicateBand(t *testing.T) {
	cfg := &Config{Registrar: []BSSConfig{
		{Band: "2.4GHz", SSID: "a", BSSID: "02:11:22:33:44:55", AuthMode: "open", EncMode: "none"},
		{Band: "2.4GHz", SSID: "b", BSSID: "02:11:22:33:44:56", AuthMode: "open", EncMode: "none"},
	}}
	verrs, ok := Validate(cfg).(ValidationErrors)
	if !ok || len(verrs) == 0 {
		t.Fatal("expected ValidationErrors for a duplicate band")
	}
}

func TestValidateRejectsFronthaulAndBackhaulTogether(t *testing.T) {
	cfg := &Config{Registrar: []BSSConfig{{
		Band: "2.4GHz", SSID: "x", BSSID: "02:11:22:33:44:55",
		AuthMode: "open", EncMode: "none", Fronthaul: true, Backhaul: true,
	}}}
	if Validate(cfg) == nil {
		t.Fatal("expected a validation error for fronthaul+backhaul")
	}
}
