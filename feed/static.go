// Package feed supplies 1e8 fixed-point spot prices to the oracle and pricer,
// either from a live websocket stream or from a static table for tooling and
// tests.
package feed

import (
	"errors"
	"sync"
)

var ErrNoPrice = errors.New("feed: no price for instrument")

// Static is an in-memory price table. It backs the CLI tooling and serves as
// the cache the Stream writes into.
type Static struct {
	mu     sync.RWMutex
	prices map[string]int64
}

func NewStatic() *Static {
	return &Static{prices: make(map[string]int64)}
}

func (s *Static) Set(instrument string, price int64) {
	s.mu.Lock()
	s.prices[instrument] = price
	s.mu.Unlock()
}

func (s *Static) GetPrice(instrument string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[instrument]
	if !ok || price <= 0 {
		return 0, ErrNoPrice
	}
	return price, nil
}
