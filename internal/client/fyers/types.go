package fyers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// apiEnvelope is the common response wrapper: s is "ok" or "error", code
// mirrors an HTTP-ish status, message carries the error text.
type apiEnvelope struct {
	S       string `json:"s"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e apiEnvelope) ok() bool {
	return strings.EqualFold(e.S, "ok") && (e.Code == 0 || e.Code == 200)
}

// Profile is the subset of the account profile used to verify credentials.
type Profile struct {
	FyID  string `json:"fy_id"`
	Name  string `json:"name"`
	Email string `json:"email_id"`
}

type profileResponse struct {
	apiEnvelope
	Data Profile `json:"data"`
}

// TickValues is one instrument's decoded value bag. Key names vary between
// provider vintages (quote REST, stream, lite stream), so decoding walks an
// alias chain per field. Zero means the key was absent or unparseable; the
// provider also sends 0 for "not available", and the store treats both the
// same way.
type TickValues struct {
	Ltp    float64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

func (t *TickValues) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*t = DecodeTickValues(m)
	return nil
}

// DecodeTickValues resolves each OHLCV field through its alias chain.
// Stream consumers that already hold the raw key map use this directly.
func DecodeTickValues(m map[string]json.RawMessage) TickValues {
	return TickValues{
		Ltp:    ParseFloat(FirstRaw(m, "lp", "ltp")),
		Open:   ParseFloat(FirstRaw(m, "op", "open", "open_price")),
		High:   ParseFloat(FirstRaw(m, "h", "high", "high_price")),
		Low:    ParseFloat(FirstRaw(m, "l", "low", "low_price")),
		Close:  ParseFloat(FirstRaw(m, "c", "close", "prev_close", "prev_close_price")),
		Volume: ParseInt(FirstRaw(m, "v", "volume", "vol", "vol_traded_today")),
	}
}

// QuoteEntry is one instrument's record in a bulk quote response. V stays
// raw: an absent or empty value bag means the entry must be skipped, which
// a decoded struct could not distinguish from all-zero values.
type QuoteEntry struct {
	N string                     `json:"n"`
	S string                     `json:"s"`
	V map[string]json.RawMessage `json:"v"`
}

type quotesResponse struct {
	apiEnvelope
	D []QuoteEntry `json:"d"`
}

// Candle is one historical bar. The wire format is a positional array
// [epoch, open, high, low, close, volume].
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

func (c *Candle) UnmarshalJSON(data []byte) error {
	var row []json.Number
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	if len(row) < 6 {
		return fmt.Errorf("candle row has %d fields, want 6", len(row))
	}
	c.Timestamp = numInt(row[0])
	c.Open = numFloat(row[1])
	c.High = numFloat(row[2])
	c.Low = numFloat(row[3])
	c.Close = numFloat(row[4])
	c.Volume = numInt(row[5])
	return nil
}

type historyResponse struct {
	apiEnvelope
	Candles []Candle `json:"candles"`
}

// FirstRaw returns the first present, non-null value among keys.
func FirstRaw(m map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := m[k]; ok && len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}

// ParseFloat reads a JSON number or numeric string; anything else is 0.
func ParseFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return 0
}

// ParseInt reads a JSON integer, float, or numeric string; anything else
// is 0. Floats truncate, matching how the provider reports volumes.
func ParseInt(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var i int64
	if err := json.Unmarshal(raw, &i); err == nil {
		return i
	}
	if f := ParseFloat(raw); f != 0 {
		return int64(f)
	}
	return 0
}

// ParseString reads a JSON string, or renders a bare number as its literal
// text (tokens and security ids arrive both quoted and bare).
func ParseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func numFloat(n json.Number) float64 {
	f, _ := n.Float64()
	return f
}

func numInt(n json.Number) int64 {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return int64(f)
}
