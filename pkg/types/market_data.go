package types

import "time"

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// PriceLevel is a single order-book level.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBook is a depth snapshot for one symbol.
type OrderBook struct {
	Symbol    string
	Bids      []PriceLevel // Sorted best-first
	Asks      []PriceLevel // Sorted best-first
	Timestamp time.Time
}

// MidPrice returns the bid/ask midpoint, or 0 when either side is empty.
func (ob *OrderBook) MidPrice() float64 {
	if ob == nil || len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	return (ob.Bids[0].Price + ob.Asks[0].Price) / 2
}
