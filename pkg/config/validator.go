// Package config provides configuration validation
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks a loaded Config for internal consistency, collecting
// every problem found rather than stopping at the first, mirroring the
// teacher's config validator's "report everything in one pass" idiom.
func Validate(c *Config) error {
	var errs ValidationErrors

	seenBands := make(map[string]bool)
	for i, entry := range c.Registrar {
		field := func(name string) string { return fmt.Sprintf("registrar[%d].%s", i, name) }

		if seenBands[entry.Band] {
			errs = append(errs, &ValidationError{
				Field: field("band"), Message: "duplicate band " + entry.Band,
				Suggestion: "each band may have at most one registrar BSS",
			})
		}
		seenBands[entry.Band] = true

		if _, ok := bandNames[entry.Band]; !ok {
			errs = append(errs, &ValidationError{
				Field: field("band"), Message: "unrecognized band " + entry.Band,
				Suggestion: "use one of 2.4GHz, 5GHz, 60GHz",
			})
		}
		if entry.SSID == "" || len(entry.SSID) > 32 {
			errs = append(errs, &ValidationError{
				Field: field("ssid"), Message: "SSID must be 1-32 bytes",
			})
		}
		if _, err := parseHexGroups(entry.BSSID, 6); err != nil {
			errs = append(errs, &ValidationError{
				Field: field("bssid"), Message: err.Error(),
				Suggestion: "use colon-separated hex, e.g. 02:11:22:33:44:55",
			})
		}
		auth, authOK := authNames[entry.AuthMode]
		if !authOK {
			errs = append(errs, &ValidationError{
				Field: field("auth_mode"), Message: "unrecognized auth_mode " + entry.AuthMode,
				Suggestion: "use one of open, wpapsk, wpa, wpa2, wpa2psk",
			})
		}
		enc, encOK := encNames[entry.EncMode]
		if !encOK {
			errs = append(errs, &ValidationError{
				Field: field("enc_mode"), Message: "unrecognized enc_mode " + entry.EncMode,
				Suggestion: "use one of none, tkip, aes",
			})
		}
		if authOK && encOK {
			if auth == authNames["open"] && enc != encNames["none"] {
				errs = append(errs, &ValidationError{
					Field: field("enc_mode"), Message: "open authentication requires enc_mode none",
				})
			}
			if auth != authNames["open"] && entry.NetKey == "" {
				errs = append(errs, &ValidationError{
					Field: field("net_key"), Message: "net_key is required for any non-open auth_mode",
				})
			}
		}
		if entry.Fronthaul && entry.Backhaul {
			errs = append(errs, &ValidationError{
				Field: field("backhaul"), Message: "a BSS cannot be both fronthaul and backhaul",
			})
		}
	}

	for i, v := range c.Vendors {
		if _, err := parseHexGroups(v.OUI, 3); err != nil {
			errs = append(errs, &ValidationError{
				Field: fmt.Sprintf("vendors[%d].oui", i), Message: err.Error(),
				Suggestion: "use three colon-separated hex bytes, e.g. 00:11:22",
			})
		}
	}

	if c.SNMP.Enabled && c.SNMP.Listen == "" {
		errs = append(errs, &ValidationError{
			Field: "snmp.listen", Message: "listen address is required when snmp.enabled is true",
		})
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// parseHexGroups validates a colon-separated hex byte string with exactly
// n groups, used for both BSSID (n=6) and OUI (n=3) fields.
func parseHexGroups(s string, n int) ([]byte, error) {
	parts := strings.Split(s, ":")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d colon-separated hex bytes, got %d", n, len(parts))
	}
	out := make([]byte, n)
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte %q", p)
		}
		out[i] = byte(v)
	}
	return out, nil
}
