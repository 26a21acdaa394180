package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"niftyfeed/internal/client/fyers"
	"niftyfeed/internal/feed"
	"niftyfeed/internal/registry"
	"niftyfeed/internal/store"
)

// directSymbolFields are probed in order when a push message carries no
// standard identifier.
var directSymbolFields = []string{"symbol", "sym", "symbol_name", "n", "name", "tk", "token", "id"}

// QuoteStreamService consumes the provider's push feed. Identified symbol
// updates and resolvable direct updates land in the store through the
// same merge rules as the poller; everything applied marks the push
// channel live. One inbound message is one batch: subscribers hear about
// it at most once.
type QuoteStreamService struct {
	Creds    fyers.Credentials
	Registry *registry.Registry
	Store    *store.Store
	Liveness *feed.Liveness
	Bus      *feed.Publisher
	Logger   *zap.Logger

	// Poller, when set, is asked for one warm fetch right after each
	// (re)connect so the table is populated before the first push lands.
	Poller *QuotePollService

	SocketURL     string
	ReconnectWait time.Duration

	mu      sync.Mutex
	mapping map[string]string
}

func (s *QuoteStreamService) Run(ctx context.Context) error {
	if s == nil || s.Registry == nil || s.Store == nil {
		return fmt.Errorf("quote stream service not configured")
	}
	stream := fyers.NewDataStream(s.Creds, fyers.StreamOptions{
		URL:           s.SocketURL,
		Symbols:       s.Registry.Symbols(),
		ReconnectWait: s.ReconnectWait,
		OnConnect:     func() { s.handleConnected(ctx) },
		Logger:        s.Logger,
	})
	return stream.Run(ctx, s.HandleMessage)
}

func (s *QuoteStreamService) handleConnected(ctx context.Context) {
	s.seedMapping()
	if s.Poller == nil {
		return
	}
	if _, err := s.Poller.FetchQuotes(ctx); err != nil && s.Logger != nil {
		s.Logger.Warn("warm fetch after connect failed", zap.Error(err))
	}
}

// HandleMessage routes one raw frame. Exported so the socket loop stays a
// dumb pipe and the whole taxonomy is testable without a connection.
func (s *QuoteStreamService) HandleMessage(raw []byte) {
	var message map[string]json.RawMessage
	if err := json.Unmarshal(raw, &message); err != nil {
		if s.Logger != nil {
			s.Logger.Warn("invalid push message", zap.Error(err))
		}
		return
	}
	switch {
	case hasField(message, "s"):
		s.handleSymbolUpdate(message)
	case hasField(message, "ltp"):
		s.handleDirectUpdate(message, raw)
	case hasField(message, "type"):
		s.handleControl(message)
	default:
		if s.Logger != nil {
			s.Logger.Debug("unhandled push message format", zap.ByteString("payload", clip(raw, 100)))
		}
	}
}

// handleSymbolUpdate processes the standard batch format {"s":..,"d":[..]}.
func (s *QuoteStreamService) handleSymbolUpdate(message map[string]json.RawMessage) {
	var entries []fyers.QuoteEntry
	if raw, ok := message["d"]; ok {
		if err := json.Unmarshal(raw, &entries); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("malformed symbol update batch", zap.Error(err))
			}
			return
		}
	}
	applied := 0
	for _, entry := range entries {
		if entry.N == "" || len(entry.V) == 0 {
			continue
		}
		short := s.normalizeIdentifier(entry.N)
		s.remember(entry.N, short)
		vals := fyers.DecodeTickValues(entry.V)
		if !s.applyUpdate(short, vals) {
			continue
		}
		applied++
	}
	if applied == 0 {
		return
	}
	s.markPush()
	s.notify()
}

// handleDirectUpdate processes a flat tick that carries prices but no
// standard identifier, resolving the symbol by a chain of heuristics.
func (s *QuoteStreamService) handleDirectUpdate(message map[string]json.RawMessage, raw []byte) {
	identifier := s.resolveDirectSymbol(message)
	if identifier == "" {
		if s.Logger != nil {
			s.Logger.Debug("cannot determine symbol for push message", zap.ByteString("payload", clip(raw, 100)))
		}
		return
	}
	short := s.normalizeIdentifier(identifier)
	s.remember(identifier, short)

	vals := fyers.DecodeTickValues(message)
	backfillFromLtp(&vals)

	if !s.applyUpdate(short, vals) {
		if s.Logger != nil {
			s.Logger.Debug("direct update for untracked symbol", zap.String("symbol", short))
		}
		return
	}
	s.markPush()
	s.notify()
}

func (s *QuoteStreamService) handleControl(message map[string]json.RawMessage) {
	if s.Logger == nil {
		return
	}
	msgType := fyers.ParseString(message["type"])
	note := fyers.ParseString(message["message"])
	switch msgType {
	case "cn":
		s.Logger.Info("push channel connected", zap.String("message", note))
	case "sub":
		s.Logger.Info("push channel subscription ack", zap.String("message", note))
	default:
		s.Logger.Debug("push channel control message", zap.String("type", msgType), zap.String("message", note))
	}
}

// resolveDirectSymbol walks the identifier heuristics in order. The last
// two steps guess from a sequence number or the wall clock; they are
// deterministic but carry no guarantee the guess is right.
func (s *QuoteStreamService) resolveDirectSymbol(message map[string]json.RawMessage) string {
	for _, field := range directSymbolFields {
		if val := fyers.ParseString(message[field]); val != "" {
			if s.Logger != nil {
				s.Logger.Debug("found symbol identifier", zap.String("field", field), zap.String("symbol", val))
			}
			return val
		}
	}
	if val := fyers.ParseString(message["instrument_name"]); val != "" {
		return val
	}
	if val := fyers.ParseString(message["instrument"]); val != "" {
		return val
	}
	if bid := fyers.ParseFloat(message["bid_price"]); bid > 0 {
		matches := s.Store.MatchByLtp(bid, 0.1)
		if len(matches) == 1 {
			if s.Logger != nil {
				s.Logger.Debug("determined symbol by price matching", zap.String("symbol", matches[0]))
			}
			return matches[0]
		}
	}
	if sec := fyers.ParseString(message["security_id"]); sec != "" {
		if short, ok := s.lookupMapping(sec); ok {
			return short
		}
	}
	count := s.Registry.Len()
	if count == 0 {
		return ""
	}
	symbols := s.Registry.Symbols()
	if seqRaw := fyers.FirstRaw(message, "seq", "sequence", "seq_no"); seqRaw != nil {
		idx := int(fyers.ParseInt(seqRaw) % int64(count))
		if idx < 0 {
			idx += count
		}
		return symbols[idx]
	}
	idx := int(time.Now().UnixMilli() % int64(count))
	return symbols[idx]
}

func (s *QuoteStreamService) applyUpdate(short string, vals fyers.TickValues) bool {
	return s.Store.Upsert(short, store.QuoteUpdate{
		Ltp:    vals.Ltp,
		Open:   vals.Open,
		High:   vals.High,
		Low:    vals.Low,
		Close:  vals.Close,
		Volume: vals.Volume,
	})
}

// normalizeIdentifier strips an exchange prefix, or falls back to the
// learned mapping for bare identifiers.
func (s *QuoteStreamService) normalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	if strings.Contains(identifier, ":") {
		return registry.ShortName(identifier)
	}
	if short, ok := s.lookupMapping(identifier); ok {
		return short
	}
	return identifier
}

// seedMapping records full and short forms for every registered
// instrument so identified entries resolve without a lookup miss.
func (s *QuoteStreamService) seedMapping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapping == nil {
		s.mapping = make(map[string]string, 2*s.Registry.Len())
	}
	for _, inst := range s.Registry.All() {
		s.mapping[inst.Symbol] = inst.Short
		s.mapping[inst.Short] = inst.Short
	}
	if s.Logger != nil {
		s.Logger.Debug("seeded symbol mapping", zap.Int("entries", len(s.mapping)))
	}
}

func (s *QuoteStreamService) remember(identifier, short string) {
	if identifier == "" || short == "" {
		return
	}
	s.mu.Lock()
	if s.mapping == nil {
		s.mapping = map[string]string{}
	}
	s.mapping[identifier] = short
	s.mu.Unlock()
}

func (s *QuoteStreamService) lookupMapping(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.mapping[key]
	return val, ok
}

// MappingSize reports how many identifier aliases have been learned.
func (s *QuoteStreamService) MappingSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mapping)
}

func (s *QuoteStreamService) markPush() {
	if s.Liveness != nil {
		s.Liveness.MarkPush(time.Now())
	}
}

func (s *QuoteStreamService) notify() {
	if s.Bus != nil {
		s.Bus.Notify(s.Store.SnapshotAll())
	}
}

// backfillFromLtp fills gaps in a direct tick from its own last price:
// the provider's flat frames often carry only ltp, and a lone price is
// still a usable open/high/low/close seed.
func backfillFromLtp(vals *fyers.TickValues) {
	if vals.Ltp <= 0 {
		return
	}
	if vals.Open == 0 {
		vals.Open = vals.Ltp
	}
	if vals.High == 0 || vals.High < vals.Ltp {
		vals.High = vals.Ltp
	}
	if vals.Low == 0 || vals.Low > vals.Ltp {
		vals.Low = vals.Ltp
	}
	if vals.Close == 0 {
		vals.Close = vals.Ltp
	}
}

func hasField(message map[string]json.RawMessage, key string) bool {
	_, ok := message[key]
	return ok
}

func clip(raw []byte, n int) []byte {
	if len(raw) <= n {
		return raw
	}
	return raw[:n]
}
