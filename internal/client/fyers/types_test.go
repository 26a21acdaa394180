package fyers

import (
	"encoding/json"
	"testing"
)

func TestDecodeTickValues_ShortAliases(t *testing.T) {
	raw := []byte(`{"lp":101.5,"op":100,"h":102,"l":99.5,"c":100.25,"v":12345}`)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("err=%v", err)
	}
	vals := DecodeTickValues(fields)
	if vals.Ltp != 101.5 {
		t.Fatalf("ltp=%v want 101.5", vals.Ltp)
	}
	if vals.Open != 100 || vals.High != 102 || vals.Low != 99.5 {
		t.Fatalf("ohl=%v/%v/%v", vals.Open, vals.High, vals.Low)
	}
	if vals.Close != 100.25 {
		t.Fatalf("close=%v want 100.25", vals.Close)
	}
	if vals.Volume != 12345 {
		t.Fatalf("volume=%v want 12345", vals.Volume)
	}
}

func TestDecodeTickValues_LongAliases(t *testing.T) {
	raw := []byte(`{"ltp":"55.5","open_price":54,"high_price":56,"low_price":53,"prev_close_price":54.5,"vol_traded_today":"900"}`)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("err=%v", err)
	}
	vals := DecodeTickValues(fields)
	if vals.Ltp != 55.5 {
		t.Fatalf("ltp=%v want 55.5", vals.Ltp)
	}
	if vals.Close != 54.5 {
		t.Fatalf("close=%v want 54.5", vals.Close)
	}
	if vals.Volume != 900 {
		t.Fatalf("volume=%v want 900", vals.Volume)
	}
}

func TestDecodeTickValues_MissingFieldsZero(t *testing.T) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(`{"lp":42}`), &fields); err != nil {
		t.Fatalf("err=%v", err)
	}
	vals := DecodeTickValues(fields)
	if vals.Ltp != 42 {
		t.Fatalf("ltp=%v want 42", vals.Ltp)
	}
	if vals.Open != 0 || vals.High != 0 || vals.Low != 0 || vals.Close != 0 || vals.Volume != 0 {
		t.Fatalf("missing fields should stay zero: %+v", vals)
	}
}

func TestTickValuesUnmarshal(t *testing.T) {
	var vals TickValues
	if err := json.Unmarshal([]byte(`{"lp":10,"v":5}`), &vals); err != nil {
		t.Fatalf("err=%v", err)
	}
	if vals.Ltp != 10 || vals.Volume != 5 {
		t.Fatalf("vals=%+v", vals)
	}
}

func TestCandleUnmarshal(t *testing.T) {
	var c Candle
	if err := json.Unmarshal([]byte(`[1717027200,100.5,102,99,101.25,50000]`), &c); err != nil {
		t.Fatalf("err=%v", err)
	}
	if c.Timestamp != 1717027200 {
		t.Fatalf("ts=%d", c.Timestamp)
	}
	if c.Open != 100.5 || c.High != 102 || c.Low != 99 || c.Close != 101.25 {
		t.Fatalf("ohlc=%v/%v/%v/%v", c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume != 50000 {
		t.Fatalf("volume=%d want 50000", c.Volume)
	}
}

func TestCandleUnmarshal_TooShort(t *testing.T) {
	var c Candle
	if err := json.Unmarshal([]byte(`[1717027200,100.5,102]`), &c); err == nil {
		t.Fatalf("expected error for short candle")
	}
}

func TestParseFloat_StringAndNumber(t *testing.T) {
	if got := ParseFloat(json.RawMessage(`12.5`)); got != 12.5 {
		t.Fatalf("got=%v want 12.5", got)
	}
	if got := ParseFloat(json.RawMessage(`"12.5"`)); got != 12.5 {
		t.Fatalf("got=%v want 12.5", got)
	}
	if got := ParseFloat(json.RawMessage(`"abc"`)); got != 0 {
		t.Fatalf("got=%v want 0", got)
	}
	if got := ParseFloat(nil); got != 0 {
		t.Fatalf("got=%v want 0", got)
	}
}

func TestParseInt_FloatTruncates(t *testing.T) {
	if got := ParseInt(json.RawMessage(`42`)); got != 42 {
		t.Fatalf("got=%v want 42", got)
	}
	if got := ParseInt(json.RawMessage(`42.9`)); got != 42 {
		t.Fatalf("got=%v want 42", got)
	}
	if got := ParseInt(json.RawMessage(`"7"`)); got != 7 {
		t.Fatalf("got=%v want 7", got)
	}
}

func TestParseString_BareNumber(t *testing.T) {
	if got := ParseString(json.RawMessage(`"NSE:TCS-EQ"`)); got != "NSE:TCS-EQ" {
		t.Fatalf("got=%q", got)
	}
	if got := ParseString(json.RawMessage(`123`)); got != "123" {
		t.Fatalf("got=%q want 123", got)
	}
}

func TestFirstRaw_SkipsNull(t *testing.T) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(`{"a":null,"b":5}`), &fields); err != nil {
		t.Fatalf("err=%v", err)
	}
	raw := FirstRaw(fields, "a", "b")
	if raw == nil {
		t.Fatalf("expected a hit")
	}
	if string(raw) != "5" {
		t.Fatalf("raw=%s want 5", raw)
	}
	if FirstRaw(fields, "a", "missing") != nil {
		t.Fatalf("expected miss")
	}
}
