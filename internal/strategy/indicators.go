package strategy

import "math"

// RSI computes the relative strength index over the trailing window using
// simple averages of gains and losses. Returns the neutral 50 when the
// series is too short to fill one window, and 100 when the window holds
// no losses at all.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the last values of the MACD line, its signal line, and the
// histogram. EMAs are seeded from the first sample and smoothed with
// alpha = 2/(span+1) over the full series.
func MACD(closes []float64, fast, slow, signalSpan int) (line, signal, histogram float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	emaFast := emaSeries(closes, fast)
	emaSlow := emaSeries(closes, slow)
	diff := make([]float64, len(closes))
	for i := range closes {
		diff[i] = emaFast[i] - emaSlow[i]
	}
	sig := emaSeries(diff, signalSpan)
	last := len(closes) - 1
	return diff[last], sig[last], diff[last] - sig[last]
}

func emaSeries(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// meanRecentChange averages the last n first differences of the series.
func meanRecentChange(values []float64, n int) float64 {
	if len(values) < 2 || n <= 0 {
		return 0
	}
	if n > len(values)-1 {
		n = len(values) - 1
	}
	var sum float64
	for i := len(values) - n; i < len(values); i++ {
		sum += values[i] - values[i-1]
	}
	return sum / float64(n)
}

// meanRecentPctChange averages the last n relative changes, skipping
// pairs whose base is zero.
func meanRecentPctChange(values []float64, n int) float64 {
	if len(values) < 2 || n <= 0 {
		return 0
	}
	if n > len(values)-1 {
		n = len(values) - 1
	}
	var sum float64
	var count int
	for i := len(values) - n; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		sum += values[i]/values[i-1] - 1
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// pctVolatility is the sample standard deviation of the full relative
// change series, scaled to percent.
func pctVolatility(values []float64) float64 {
	changes := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		changes = append(changes, values[i]/values[i-1]-1)
	}
	if len(changes) < 2 {
		return 0
	}
	var sum float64
	for _, c := range changes {
		sum += c
	}
	mean := sum / float64(len(changes))
	var sq float64
	for _, c := range changes {
		sq += (c - mean) * (c - mean)
	}
	return math.Sqrt(sq/float64(len(changes)-1)) * 100
}

// momentum is the percent move of the last sample over the sample span-1
// bars back, mirroring a lookback of span positions.
func momentum(values []float64, span int) float64 {
	if len(values) < span || span <= 0 {
		return 0
	}
	base := values[len(values)-span]
	if base == 0 {
		return 0
	}
	return (values[len(values)-1]/base - 1) * 100
}

// rangePosition places the last close inside the trailing high/low band
// as a 0..1 fraction, 0.5 when the band is flat.
func rangePosition(closes, highs, lows []float64, window int) float64 {
	if len(closes) == 0 || len(highs) == 0 || len(lows) == 0 {
		return 0.5
	}
	hi := tailMax(highs, window)
	lo := tailMin(lows, window)
	if hi-lo <= 0 {
		return 0.5
	}
	return (closes[len(closes)-1] - lo) / (hi - lo)
}

func tailMax(values []float64, n int) float64 {
	start := len(values) - n
	if start < 0 {
		start = 0
	}
	out := values[start]
	for _, v := range values[start+1:] {
		if v > out {
			out = v
		}
	}
	return out
}

func tailMin(values []float64, n int) float64 {
	start := len(values) - n
	if start < 0 {
		start = 0
	}
	out := values[start]
	for _, v := range values[start+1:] {
		if v < out {
			out = v
		}
	}
	return out
}
