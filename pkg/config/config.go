// Package config provides YAML configuration file loading and parsing for
// the AL daemon: the per-band registrar BSS table, local device identity
// used in WSC exchanges, vendor OUI extensions, and the SNMP/marker-file
// ambient settings that don't belong on the command line. The CLI flags
// in cmd/hmeshctl's run subcommand remain the source of truth for
// al_mac/interfaces/registrar iface/port.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/pkg/wsc"
)

// BSSConfig is one per-band registrar entry as written in YAML.
type BSSConfig struct {
	Band     string `yaml:"band"`
	SSID     string `yaml:"ssid"`
	BSSID    string `yaml:"bssid"`
	AuthMode string `yaml:"auth_mode"`
	EncMode  string `yaml:"enc_mode"`
	NetKey   string `yaml:"net_key"`
	Fronthaul bool  `yaml:"fronthaul"`
	Backhaul  bool  `yaml:"backhaul"`
}

// DeviceInfoConfig is the WSC enrollee/registrar device-identity tuple.
type DeviceInfoConfig struct {
	Manufacturer string `yaml:"manufacturer"`
	ModelName    string `yaml:"model_name"`
	ModelNumber  string `yaml:"model_number"`
	SerialNumber string `yaml:"serial_number"`
}

// VendorExtension maps an IEEE OUI to a friendly name. Validate checks the
// OUI format; nothing else in the daemon reads these entries.
type VendorExtension struct {
	OUI  string `yaml:"oui"`
	Name string `yaml:"name"`
}

// SNMPConfig configures the optional read-only SNMP agent.
type SNMPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Community string `yaml:"community"`
}

// Config is the top-level YAML document shape.
type Config struct {
	DeviceInfo  DeviceInfoConfig  `yaml:"device_info"`
	Registrar   []BSSConfig       `yaml:"registrar"`
	Vendors     []VendorExtension `yaml:"vendors"`
	SNMP        SNMPConfig        `yaml:"snmp"`
	MarkerPath  string            `yaml:"marker_path"`
}

// Load reads and parses the YAML document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

var bandNames = map[string]model.Band{
	"2.4GHz": model.Band24GHz,
	"5GHz":   model.Band5GHz,
	"60GHz":  model.Band60GHz,
}

var authNames = map[string]uint16{
	"open":     wsc.AuthOpen,
	"wpapsk":   wsc.AuthWPAPSK,
	"wpa":      wsc.AuthWPA,
	"wpa2":     wsc.AuthWPA2,
	"wpa2psk":  wsc.AuthWPA2PSK,
}

var encNames = map[string]uint16{
	"none": wsc.EncrNone,
	"tkip": wsc.EncrTKIP,
	"aes":  wsc.EncrAES,
}

// ToRegistrarConfig converts the YAML registrar table into the runtime
// model.RegistrarConfig the engine consumes, keyed by band.
func (c *Config) ToRegistrarConfig() (*model.RegistrarConfig, error) {
	rc := &model.RegistrarConfig{ByBand: make(map[model.Band]model.BSSInfo)}
	for i, entry := range c.Registrar {
		band, ok := bandNames[entry.Band]
		if !ok {
			return nil, fmt.Errorf("config: registrar[%d]: unknown band %q", i, entry.Band)
		}
		auth, ok := authNames[entry.AuthMode]
		if !ok {
			return nil, fmt.Errorf("config: registrar[%d]: unknown auth_mode %q", i, entry.AuthMode)
		}
		enc, ok := encNames[entry.EncMode]
		if !ok {
			return nil, fmt.Errorf("config: registrar[%d]: unknown enc_mode %q", i, entry.EncMode)
		}
		bssid, err := model.ParseMAC(entry.BSSID)
		if err != nil {
			return nil, fmt.Errorf("config: registrar[%d]: %w", i, err)
		}
		var roles model.MultiAPRole
		if entry.Fronthaul {
			roles |= model.MultiAPFronthaul
		}
		if entry.Backhaul {
			roles |= model.MultiAPBackhaulBSS
		}
		rc.ByBand[band] = model.BSSInfo{
			SSID: entry.SSID, BSSID: bssid, AuthMode: auth, EncMode: enc,
			NetKey: entry.NetKey, Roles: roles,
		}
	}
	return rc, nil
}

// ToDeviceInfo converts the YAML device identity into the wsc.DeviceInfo
// the local registrar/enrollee advertises, falling back to the package
// defaults for anything left blank.
func (c *Config) ToDeviceInfo() wsc.DeviceInfo {
	d := wsc.DefaultDeviceInfo()
	if c.DeviceInfo.Manufacturer != "" {
		d.Manufacturer = c.DeviceInfo.Manufacturer
	}
	if c.DeviceInfo.ModelName != "" {
		d.ModelName = c.DeviceInfo.ModelName
	}
	if c.DeviceInfo.ModelNumber != "" {
		d.ModelNumber = c.DeviceInfo.ModelNumber
	}
	if c.DeviceInfo.SerialNumber != "" {
		d.SerialNumber = c.DeviceInfo.SerialNumber
	}
	return d
}
