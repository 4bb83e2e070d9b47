package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// PriceUpdateFunc receives live ticker prices from the stream
type PriceUpdateFunc func(symbol string, price float64)

// StateFunc is notified on connect/disconnect transitions
type StateFunc func(connected bool)

const (
	streamPingInterval = 20 * time.Second
	streamReadTimeout  = 30 * time.Second
	redialBackoff      = 5 * time.Second
)

// PriceStream maintains a public websocket subscription to linear
// ticker topics and pushes last-price updates to the consumer. It
// redials on read failure and supports externally requested reconnects
// from the fallback governor.
type PriceStream struct {
	url     string
	symbols []string
	onPrice PriceUpdateFunc
	onState StateFunc
	log     zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewPriceStream creates a price stream for the given symbols
func NewPriceStream(client *Client, symbols []string, onPrice PriceUpdateFunc, onState StateFunc, log zerolog.Logger) *PriceStream {
	return &PriceStream{
		url:     fmt.Sprintf("wss://%s/v5/public/linear", client.StreamHost()),
		symbols: symbols,
		onPrice: onPrice,
		onState: onState,
		log:     log.With().Str("component", "price_stream").Logger(),
	}
}

// Run connects and consumes ticker messages until ctx is cancelled,
// redialing after failures.
func (s *PriceStream) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.connectAndConsume(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Dur("backoff", redialBackoff).Msg("stream dropped, redialing")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(redialBackoff):
		}
	}
}

// Reconnect forces the current connection closed; the Run loop redials.
// The fallback governor calls this when live prices go quiet.
func (s *PriceStream) Reconnect(symbol string, fallbackCount int, reason string) {
	s.log.Warn().Str("symbol", symbol).Int("fallback_count", fallbackCount).
		Str("reason", reason).Msg("forcing stream reconnect")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *PriceStream) connectAndConsume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
		if s.onState != nil {
			s.onState(false)
		}
	}()

	if err := s.subscribe(conn); err != nil {
		return err
	}
	if s.onState != nil {
		s.onState(true)
	}
	s.log.Info().Int("symbols", len(s.symbols)).Msg("price stream connected")

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go s.pingLoop(pingCtx, conn)

	for {
		if ctx.Err() != nil {
			return nil
		}
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		s.handleMessage(data)
	}
}

func (s *PriceStream) subscribe(conn *websocket.Conn) error {
	args := make([]string, 0, len(s.symbols))
	for _, symbol := range s.symbols {
		args = append(args, "tickers."+symbol)
	}
	msg := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (s *PriceStream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
				return
			}
		}
	}
}

func (s *PriceStream) handleMessage(data []byte) {
	var msg struct {
		Topic string `json:"topic"`
		Data  struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return // Operational frames (pong, subscribe acks) are skipped
	}
	if msg.Data.Symbol == "" {
		return
	}
	price := parseFloat64(msg.Data.LastPrice)
	if price <= 0 {
		return
	}
	s.onPrice(msg.Data.Symbol, price)
}
