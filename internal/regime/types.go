package regime

import "fmt"

// RegimeType classifies current market behavior. The set is closed: the
// exit-decision ladder switches exhaustively over these three values, so
// adding or removing a regime is a compile-time-checked change.
type RegimeType int

const (
	RegimeTrending RegimeType = iota
	RegimeRanging
	RegimeChoppy
)

// String returns the string representation of the regime
func (r RegimeType) String() string {
	switch r {
	case RegimeTrending:
		return "TRENDING"
	case RegimeRanging:
		return "RANGING"
	case RegimeChoppy:
		return "CHOPPY"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether r is one of the known regimes
func (r RegimeType) Valid() bool {
	switch r {
	case RegimeTrending, RegimeRanging, RegimeChoppy:
		return true
	}
	return false
}

// Parse converts a regime name into a RegimeType
func Parse(name string) (RegimeType, error) {
	switch name {
	case "TRENDING", "trending":
		return RegimeTrending, nil
	case "RANGING", "ranging":
		return RegimeRanging, nil
	case "CHOPPY", "choppy":
		return RegimeChoppy, nil
	default:
		return RegimeRanging, fmt.Errorf("unknown regime %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler
func (r RegimeType) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *RegimeType) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
