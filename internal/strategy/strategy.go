package strategy

import (
	"niftyfeed/internal/store"
)

// Func maps a candle series to a trading signal. The engine only depends
// on this shape so alternative rules can be swapped in.
type Func func(series store.Series) string

// Evaluator produces the full indicator readout; the history worker
// persists it alongside the signal.
type Evaluator interface {
	Evaluate(series store.Series) Evaluation
}

// FuncEvaluator adapts a bare Func for callers that need an Evaluator
// but only have a signal rule.
type FuncEvaluator struct {
	Fn Func
}

func (f FuncEvaluator) Evaluate(series store.Series) Evaluation {
	ev := Evaluation{Signal: store.SignalHold, Bars: series.Len()}
	if f.Fn != nil {
		ev.Signal = f.Fn(series)
	}
	return ev
}

// Evaluation carries the signal together with the indicator readings it
// was derived from.
type Evaluation struct {
	Signal        string  `json:"signal"`
	Bars          int     `json:"bars"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	Histogram     float64 `json:"histogram"`
	PriceTrend    float64 `json:"price_trend"`
	Volatility    float64 `json:"volatility"`
	VolumeTrend   float64 `json:"volume_trend"`
	Momentum      float64 `json:"momentum"`
	PricePosition float64 `json:"price_position"`
}

// Composite scores a series on RSI, MACD and price action together. A
// strong reading needs oversold/overbought RSI confirmed by histogram,
// trend, volume and range position; a moderate reading settles for RSI
// leaning the same way as momentum and trend.
type Composite struct {
	RSIPeriod      int
	FastPeriod     int
	SlowPeriod     int
	SignalPeriod   int
	TrendBars      int
	MomentumSpan   int
	PositionWindow int
	MinBars        int
}

func NewComposite() *Composite {
	return &Composite{
		RSIPeriod:      14,
		FastPeriod:     12,
		SlowPeriod:     26,
		SignalPeriod:   9,
		TrendBars:      5,
		MomentumSpan:   5,
		PositionWindow: 20,
		MinBars:        30,
	}
}

func (c *Composite) Evaluate(series store.Series) Evaluation {
	ev := Evaluation{Signal: store.SignalHold, Bars: len(series.Close), PricePosition: 0.5}
	if c == nil || len(series.Close) < c.MinBars {
		return ev
	}

	volume := make([]float64, len(series.Volume))
	for i, v := range series.Volume {
		volume[i] = float64(v)
	}

	ev.RSI = RSI(series.Close, c.RSIPeriod)
	ev.MACD, ev.MACDSignal, ev.Histogram = MACD(series.Close, c.FastPeriod, c.SlowPeriod, c.SignalPeriod)
	ev.PriceTrend = meanRecentChange(series.Close, c.TrendBars)
	ev.Volatility = pctVolatility(series.Close)
	ev.VolumeTrend = meanRecentPctChange(volume, c.TrendBars)
	ev.Momentum = momentum(series.Close, c.MomentumSpan)
	ev.PricePosition = rangePosition(series.Close, series.High, series.Low, c.PositionWindow)
	ev.Signal = decide(ev)
	return ev
}

func decide(ev Evaluation) string {
	switch {
	case ev.RSI < 30 && ev.Histogram > 0 && ev.MACD > ev.MACDSignal &&
		ev.PriceTrend > 0 && ev.VolumeTrend > 0 && ev.PricePosition < 0.3:
		return store.SignalBuy
	case ev.RSI < 40 && ev.Histogram > 0 && ev.Momentum > 0 && ev.PriceTrend > 0:
		return store.SignalBuy
	case ev.RSI > 70 && ev.Histogram < 0 && ev.MACD < ev.MACDSignal &&
		ev.PriceTrend < 0 && ev.VolumeTrend < 0 && ev.PricePosition > 0.7:
		return store.SignalSell
	case ev.RSI > 60 && ev.Histogram < 0 && ev.Momentum < 0 && ev.PriceTrend < 0:
		return store.SignalSell
	default:
		return store.SignalHold
	}
}

// Signal is the Func form of Evaluate.
func (c *Composite) Signal(series store.Series) string {
	return c.Evaluate(series).Signal
}

// Intraday rates a single quote on its move against the previous close:
// more than one percent either way is a buy or sell, anything else holds.
// Quotes with any unfilled field hold.
func Intraday(q store.Quote) string {
	if q.Ltp == 0 || q.Open == 0 || q.High == 0 || q.Low == 0 || q.Close == 0 {
		return store.SignalHold
	}
	pct := (q.Ltp - q.Close) / q.Close * 100
	switch {
	case pct > 1.0:
		return store.SignalBuy
	case pct < -1.0:
		return store.SignalSell
	default:
		return store.SignalHold
	}
}
