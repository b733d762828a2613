package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vol-oracle-go/infrastructure/logger"
)

var errPriceRange = errors.New("feed: price outside representable range")

// Recorder receives operational metrics from the stream.
type Recorder interface {
	FeedMessage()
	FeedReconnect()
}

const (
	readTimeout      = 30 * time.Second
	writeTimeout     = 5 * time.Second
	minReconnectWait = time.Second
	maxReconnectWait = 30 * time.Second
)

// tickerMessage is one price update from the upstream feed. Price arrives as
// a decimal string to avoid float drift on the wire.
type tickerMessage struct {
	Instrument string `json:"instrument"`
	Price      string `json:"price"`
}

type subscribeRequest struct {
	Op          string   `json:"op"`
	Instruments []string `json:"instruments"`
}

// Stream maintains a websocket subscription to the upstream ticker and writes
// each update into the shared Static cache. It reconnects with exponential
// backoff until the context is cancelled.
type Stream struct {
	url         string
	instruments []string
	cache       *Static
	dialer      *websocket.Dialer
	log         *logger.Logger
	rec         Recorder
}

func NewStream(url string, instruments []string, cache *Static, log *logger.Logger) *Stream {
	return &Stream{
		url:         url,
		instruments: instruments,
		cache:       cache,
		dialer:      websocket.DefaultDialer,
		log:         log,
	}
}

func (s *Stream) SetRecorder(r Recorder) { s.rec = r }

// Run connects and consumes price updates until ctx is cancelled. It never
// returns a transport error; those are logged and retried.
func (s *Stream) Run(ctx context.Context) error {
	wait := minReconnectWait
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("feed disconnected", zap.Error(err), zap.Duration("retry_in", wait))
		if s.rec != nil {
			s.rec.FeedReconnect()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > maxReconnectWait {
			wait = maxReconnectWait
		}
	}
}

// consume runs one connection: dial, subscribe, read until failure.
func (s *Stream) consume(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock the read loop when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(subscribeRequest{Op: "subscribe", Instruments: s.instruments}); err != nil {
		return err
	}
	s.log.Info("feed connected", zap.String("url", s.url), zap.Strings("instruments", s.instruments))

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := s.handle(raw); err != nil {
			s.log.Warn("feed message dropped", zap.Error(err), zap.ByteString("raw", raw))
		}
	}
}

func (s *Stream) handle(raw []byte) error {
	var msg tickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}
	if msg.Instrument == "" || msg.Price == "" {
		return errors.New("feed: incomplete ticker message")
	}
	price, err := parsePrice(msg.Price)
	if err != nil {
		return err
	}
	s.cache.Set(msg.Instrument, price)
	if s.rec != nil {
		s.rec.FeedMessage()
	}
	return nil
}

// parsePrice converts a decimal string into the 1e8 fixed-point domain,
// truncating precision beyond the eighth decimal.
func parsePrice(text string) (int64, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, err
	}
	scaled := d.Shift(8).BigInt()
	if !scaled.IsInt64() {
		return 0, errPriceRange
	}
	price := scaled.Int64()
	if price <= 0 {
		return 0, errPriceRange
	}
	return price, nil
}
