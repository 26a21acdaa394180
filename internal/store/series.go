package store

import "sync"

// Series is one instrument's daily OHLCV history as time-ordered parallel
// slices (timestamps are epoch seconds). A refresh replaces the whole
// value; nothing mutates a Series in place, so readers may keep references
// across refreshes.
type Series struct {
	Timestamp []int64   `json:"timestamp"`
	Open      []float64 `json:"open"`
	High      []float64 `json:"high"`
	Low       []float64 `json:"low"`
	Close     []float64 `json:"close"`
	Volume    []int64   `json:"volume"`
}

func (s Series) Len() int { return len(s.Close) }

// HistoryCache holds the latest fetched Series per instrument. Written
// only by the history worker, read by the signal path and the HTTP layer.
type HistoryCache struct {
	mu       sync.RWMutex
	bySymbol map[string]Series
}

func NewHistoryCache() *HistoryCache {
	return &HistoryCache{bySymbol: make(map[string]Series)}
}

func (h *HistoryCache) Put(short string, series Series) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bySymbol[short] = series
}

func (h *HistoryCache) Get(short string) (Series, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.bySymbol[short]
	return s, ok
}

func (h *HistoryCache) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bySymbol)
}
