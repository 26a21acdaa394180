package registry

import (
	"errors"
	"sort"
	"strings"
)

// Instrument is one tracked listing. Symbol is the exchange-qualified
// identifier used on the wire ("NSE:SBIN-EQ"); Short is the part after the
// exchange prefix and is the key used everywhere inside the engine.
type Instrument struct {
	Symbol  string
	Short   string
	IsIndex bool
}

// nifty50 is the default tracked universe: the 50 NIFTY constituents.
// The index itself is added separately.
var nifty50 = []string{
	"NSE:ADANIENT-EQ", "NSE:ADANIPORTS-EQ", "NSE:APOLLOHOSP-EQ", "NSE:ASIANPAINT-EQ",
	"NSE:AXISBANK-EQ", "NSE:BAJAJ-AUTO-EQ", "NSE:BAJFINANCE-EQ", "NSE:BAJAJFINSV-EQ",
	"NSE:BEL-EQ", "NSE:BHARTIARTL-EQ", "NSE:BRITANNIA-EQ", "NSE:CIPLA-EQ",
	"NSE:COALINDIA-EQ", "NSE:DRREDDY-EQ", "NSE:EICHERMOT-EQ", "NSE:GRASIM-EQ",
	"NSE:HCLTECH-EQ", "NSE:HDFCBANK-EQ", "NSE:HDFCLIFE-EQ", "NSE:HEROMOTOCO-EQ",
	"NSE:HINDALCO-EQ", "NSE:HINDUNILVR-EQ", "NSE:ICICIBANK-EQ", "NSE:INFY-EQ",
	"NSE:INDUSINDBK-EQ", "NSE:ITC-EQ", "NSE:JIOFIN-EQ", "NSE:JSWSTEEL-EQ",
	"NSE:KOTAKBANK-EQ", "NSE:LT-EQ", "NSE:M&M-EQ", "NSE:MARUTI-EQ",
	"NSE:NTPC-EQ", "NSE:NESTLEIND-EQ", "NSE:ONGC-EQ", "NSE:POWERGRID-EQ",
	"NSE:RELIANCE-EQ", "NSE:SBILIFE-EQ", "NSE:SBIN-EQ", "NSE:SHRIRAMFIN-EQ",
	"NSE:SUNPHARMA-EQ", "NSE:TCS-EQ", "NSE:TATACONSUM-EQ", "NSE:TATAMOTORS-EQ",
	"NSE:TATASTEEL-EQ", "NSE:TECHM-EQ", "NSE:TITAN-EQ", "NSE:TRENT-EQ",
	"NSE:ULTRACEMCO-EQ", "NSE:WIPRO-EQ",
}

const niftyIndex = "NSE:NIFTY50-INDEX"

// ErrEmpty is returned when a catalog resolves to zero instruments.
// The engine treats this as fatal at construction time.
var ErrEmpty = errors.New("registry: no instruments")

// Registry is the immutable instrument catalog. All ordering decisions
// (subscribe lists, snapshot output, modulo-based resolution) derive from
// it so every component sees the same instrument order.
type Registry struct {
	bySort  []Instrument // ascending by short name
	ordered []Instrument // index instruments first, then ascending
	byShort map[string]Instrument
}

// New builds the registry over the default NIFTY 50 universe plus the
// NIFTY 50 index.
func New() (*Registry, error) {
	return NewFromSymbols(append([]string{niftyIndex}, nifty50...))
}

// NewFromSymbols builds a registry from an explicit symbol list, typically
// a configuration override. Blank entries are skipped and duplicates
// collapse to the first occurrence. An empty result is an error.
func NewFromSymbols(symbols []string) (*Registry, error) {
	byShort := make(map[string]Instrument, len(symbols))
	list := make([]Instrument, 0, len(symbols))
	for _, raw := range symbols {
		sym := strings.TrimSpace(raw)
		if sym == "" {
			continue
		}
		ins := Instrument{
			Symbol:  sym,
			Short:   ShortName(sym),
			IsIndex: strings.HasSuffix(sym, "-INDEX"),
		}
		if _, dup := byShort[ins.Short]; dup {
			continue
		}
		byShort[ins.Short] = ins
		list = append(list, ins)
	}
	if len(list) == 0 {
		return nil, ErrEmpty
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Short < list[j].Short })

	ordered := make([]Instrument, 0, len(list))
	for _, ins := range list {
		if ins.IsIndex {
			ordered = append(ordered, ins)
		}
	}
	for _, ins := range list {
		if !ins.IsIndex {
			ordered = append(ordered, ins)
		}
	}

	return &Registry{bySort: list, ordered: ordered, byShort: byShort}, nil
}

// ShortName strips the exchange prefix from a qualified symbol.
// "NSE:SBIN-EQ" becomes "SBIN-EQ"; inputs without a prefix pass through.
func ShortName(symbol string) string {
	if i := strings.IndexByte(symbol, ':'); i >= 0 {
		return symbol[i+1:]
	}
	return symbol
}

// All returns every instrument in ascending short-name order.
func (r *Registry) All() []Instrument {
	out := make([]Instrument, len(r.bySort))
	copy(out, r.bySort)
	return out
}

// Ordered returns every instrument with indices first, then the rest in
// ascending short-name order. This is the publication order.
func (r *Registry) Ordered() []Instrument {
	out := make([]Instrument, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Symbols returns the exchange-qualified identifiers in publication order.
// This exact list is used for the bulk quote request, the stream
// subscription, and the modulo fallbacks in identity resolution.
func (r *Registry) Symbols() []string {
	out := make([]string, len(r.ordered))
	for i, ins := range r.ordered {
		out[i] = ins.Symbol
	}
	return out
}

// Index returns the first index instrument, if the catalog has one.
func (r *Registry) Index() (Instrument, bool) {
	for _, ins := range r.ordered {
		if ins.IsIndex {
			return ins, true
		}
	}
	return Instrument{}, false
}

// Lookup resolves a short name to its instrument.
func (r *Registry) Lookup(short string) (Instrument, bool) {
	ins, ok := r.byShort[short]
	return ins, ok
}

func (r *Registry) Len() int { return len(r.bySort) }
