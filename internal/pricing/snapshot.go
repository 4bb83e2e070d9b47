package pricing

import "time"

// Source tags where a resolved price came from
type Source int

const (
	SourceUnknown Source = iota
	SourceLive
	SourceCachedFallback
	SourceOrderBookMid
	SourceLastCandle
)

// String returns the string representation of the price source
func (s Source) String() string {
	switch s {
	case SourceLive:
		return "LIVE"
	case SourceCachedFallback:
		return "CACHED_FALLBACK"
	case SourceOrderBookMid:
		return "ORDERBOOK_MID"
	case SourceLastCandle:
		return "LAST_CANDLE"
	default:
		return "UNKNOWN"
	}
}

// CallContext selects the staleness budget a price must satisfy.
// Stop-loss/exit evaluation needs near-immediate data; entry-signal
// generation tolerates several seconds.
type CallContext int

const (
	ContextSignal CallContext = iota
	ContextExit
)

// String returns the string representation of the call context
func (c CallContext) String() string {
	switch c {
	case ContextSignal:
		return "SIGNAL"
	case ContextExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is a bounded-staleness price observation
type Snapshot struct {
	Price  float64
	Source Source
	Age    time.Duration
	Stale  bool // Age exceeded the call-context budget
}
