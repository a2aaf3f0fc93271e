package quant

import (
	"fmt"
	"strings"
)

// Policy selects what happens to values that will not round-trip.
type Policy int

const (
	// WrapSilently discards high-order bits and never reports. This is what
	// the firmware on the other end of the link does.
	WrapSilently Policy = iota
	// ClampAndReport saturates out-of-window values to the nearest bound,
	// writes negatives as-is, and returns an error for either.
	ClampAndReport
	// Reject leaves the destination untouched and returns an error.
	Reject
)

var policyNames = map[Policy]string{
	WrapSilently:   "wrap",
	ClampAndReport: "clamp",
	Reject:         "reject",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy accepts the names printed by String. The empty string is
// WrapSilently.
func ParsePolicy(s string) (Policy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return WrapSilently, nil
	}
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown truncation policy %q (want wrap, clamp or reject)", s)
}

func (p Policy) MarshalText() ([]byte, error) {
	if _, ok := policyNames[p]; !ok {
		return nil, fmt.Errorf("unknown truncation policy %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// UnmarshalYAML lets yaml.v2 configs name the policy.
func (p *Policy) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return p.UnmarshalText([]byte(s))
}

// Set and Type make *Policy usable as a command-line flag value.
func (p *Policy) Set(s string) error { return p.UnmarshalText([]byte(s)) }

func (p *Policy) Type() string { return "policy" }
