package store

import (
	"math"
	"sync"
	"time"

	"niftyfeed/internal/market"
	"niftyfeed/internal/registry"
)

// Trading signal values attached to quotes.
const (
	SignalBuy  = "BUY"
	SignalSell = "SELL"
	SignalHold = "HOLD"
)

// Direction records which way a flagged field moved relative to the
// previous quote. DirectionNone covers unchanged fields and first updates,
// where there is no positive baseline to compare against.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// Relative move (percent) a price field must exceed before it is flagged
// changed. Volume flags on any difference.
const priceChangeThreshold = 0.01

// Quote is the reconciled state of one instrument. Every registered
// instrument always has exactly one Quote; quotes are overwritten, never
// deleted. The changed/direction flags and prev shadows describe the last
// applied update relative to the one before it.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Ltp           float64   `json:"ltp"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        int64     `json:"volume"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Signal        string    `json:"signal"`
	Timestamp     time.Time `json:"timestamp"`
	IsIndex       bool      `json:"is_index"`
	MarketStatus  string    `json:"market_status"`

	LtpChanged    bool `json:"ltp_changed"`
	OpenChanged   bool `json:"open_changed"`
	HighChanged   bool `json:"high_changed"`
	LowChanged    bool `json:"low_changed"`
	VolumeChanged bool `json:"volume_changed"`

	LtpDirection    Direction `json:"ltp_direction"`
	OpenDirection   Direction `json:"open_direction"`
	HighDirection   Direction `json:"high_direction"`
	LowDirection    Direction `json:"low_direction"`
	VolumeDirection Direction `json:"volume_direction"`

	PrevLtp    float64 `json:"prev_ltp"`
	PrevOpen   float64 `json:"prev_open"`
	PrevHigh   float64 `json:"prev_high"`
	PrevLow    float64 `json:"prev_low"`
	PrevClose  float64 `json:"prev_close"`
	PrevVolume int64   `json:"prev_volume"`
}

// QuoteUpdate is the typed ingestion boundary. A zero field means "absent
// from this update": the provider reports 0 for "not available", never for
// "traded at zero", so zero values fall back to the prior quote. An empty
// MarketStatus leaves the current status alone.
type QuoteUpdate struct {
	Ltp    float64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64

	MarketStatus string
}

// Store is the per-instrument quote table. One mutex covers mutation and
// copy-out; nothing network-bound ever runs under it.
type Store struct {
	mu      sync.Mutex
	quotes  map[string]*Quote
	ordered []string // publication order: index first, then ascending short name
}

// New seeds one zero-valued Quote per registered instrument so consumers
// observe the full universe before any update arrives.
func New(reg *registry.Registry) *Store {
	now := time.Now()
	instruments := reg.Ordered()
	s := &Store{
		quotes:  make(map[string]*Quote, len(instruments)),
		ordered: make([]string, 0, len(instruments)),
	}
	for _, ins := range instruments {
		s.quotes[ins.Short] = &Quote{
			Symbol:          ins.Short,
			Signal:          SignalHold,
			Timestamp:       now,
			IsIndex:         ins.IsIndex,
			MarketStatus:    market.StatusClosed,
			LtpDirection:    DirectionNone,
			OpenDirection:   DirectionNone,
			HighDirection:   DirectionNone,
			LowDirection:    DirectionNone,
			VolumeDirection: DirectionNone,
		}
		s.ordered = append(s.ordered, ins.Short)
	}
	return s
}

// Upsert merges the positive fields of u into the instrument's quote,
// recomputes the delta annotations and change figures against the prior
// state, and stamps the update time. Unknown symbols are rejected: the
// registry fixes the universe. Returns whether the update was applied.
func (s *Store) Upsert(short string, u QuoteUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotes[short]
	if !ok {
		return false
	}
	prev := *q

	if u.Ltp > 0 {
		q.Ltp = u.Ltp
	}
	if u.Open > 0 {
		q.Open = u.Open
	}
	if u.High > 0 {
		q.High = u.High
	}
	if u.Low > 0 {
		q.Low = u.Low
	}
	if u.Close > 0 {
		q.Close = u.Close
	}
	if u.Volume > 0 {
		q.Volume = u.Volume
	}

	q.LtpChanged, q.LtpDirection = diffPrice(prev.Ltp, q.Ltp)
	q.OpenChanged, q.OpenDirection = diffPrice(prev.Open, q.Open)
	q.HighChanged, q.HighDirection = diffPrice(prev.High, q.High)
	q.LowChanged, q.LowDirection = diffPrice(prev.Low, q.Low)
	q.VolumeChanged, q.VolumeDirection = diffVolume(prev.Volume, q.Volume)

	q.PrevLtp = prev.Ltp
	q.PrevOpen = prev.Open
	q.PrevHigh = prev.High
	q.PrevLow = prev.Low
	q.PrevClose = prev.Close
	q.PrevVolume = prev.Volume

	q.Change, q.ChangePercent = changeFrom(q.Ltp, q.Close)
	if u.MarketStatus != "" {
		q.MarketStatus = u.MarketStatus
	}
	q.Timestamp = time.Now()
	return true
}

// diffPrice flags a price move. The value has already been merged, so cur
// can only be zero when prev was too. A first positive value is flagged
// changed without a direction; after that, only moves beyond the relative
// threshold count, which keeps float jitter out of the published flags.
func diffPrice(prev, cur float64) (bool, Direction) {
	if cur == prev {
		return false, DirectionNone
	}
	if prev <= 0 {
		return true, DirectionNone
	}
	pct := math.Abs(cur-prev) / prev * 100
	if pct <= priceChangeThreshold {
		return false, DirectionNone
	}
	if cur > prev {
		return true, DirectionUp
	}
	return true, DirectionDown
}

// diffVolume flags any difference at all; direction still needs a positive
// baseline.
func diffVolume(prev, cur int64) (bool, Direction) {
	if cur == prev {
		return false, DirectionNone
	}
	if prev <= 0 {
		return true, DirectionNone
	}
	if cur > prev {
		return true, DirectionUp
	}
	return true, DirectionDown
}

// changeFrom derives the day change from last price vs close. A zero close
// yields a zero percentage, not a division by zero.
func changeFrom(ltp, close float64) (change, changePercent float64) {
	change = ltp - close
	if close > 0 {
		changePercent = change / close * 100
	}
	return change, changePercent
}

// SetSignal attaches a freshly computed trading signal. This is the only
// write path for Quote.Signal; Upsert always preserves it.
func (s *Store) SetSignal(short, signal string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotes[short]
	if !ok {
		return false
	}
	q.Signal = signal
	return true
}

// SnapshotAll returns a deep copy of the table in publication order: the
// index instrument first, the rest ascending by short name. The copy is
// detached; callers can hold or mutate it freely.
func (s *Store) SnapshotAll() []Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Quote, 0, len(s.ordered))
	for _, short := range s.ordered {
		out = append(out, *s.quotes[short])
	}
	return out
}

// Get returns a copy of one instrument's quote.
func (s *Store) Get(short string) (Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotes[short]
	if !ok {
		return Quote{}, false
	}
	return *q, true
}

// MatchByLtp returns the instruments whose current last price lies within
// tolerance of price, in publication order. Identity resolution uses this
// to match bid prices from anonymous stream messages.
func (s *Store) MatchByLtp(price, tolerance float64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hits []string
	for _, short := range s.ordered {
		if math.Abs(s.quotes[short].Ltp-price) < tolerance {
			hits = append(hits, short)
		}
	}
	return hits
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ordered)
}
