package types

// Side represents the direction of a leveraged position
type Side int

const (
	SideLong Side = iota
	SideShort
)

// String returns the string representation of the position side
func (s Side) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Sign returns +1 for long positions and -1 for short positions
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// OrderType represents the order type used to enter a position
type OrderType int

const (
	OrderTypeMarket OrderType = iota // Taker entry
	OrderTypeLimit                   // Maker entry
)

// String returns the string representation of the order type
func (o OrderType) String() string {
	switch o {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	default:
		return "UNKNOWN"
	}
}

// IsMaker reports whether the entry order type pays maker fees
func (o OrderType) IsMaker() bool {
	return o == OrderTypeLimit
}
