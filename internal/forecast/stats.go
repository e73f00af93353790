package forecast

import (
	"math"
	"time"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev uses the n-1 denominator. ok is false when fewer than two points exist.
func sampleStdDev(values []float64) (std float64, ok bool) {
	if len(values) < 2 {
		return 0, false
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1)), true
}

// linearSlope returns the least-squares slope of ys against xs. ok is false
// when xs has no spread.
func linearSlope(xs, ys []float64) (slope float64, ok bool) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0, false
	}
	mx, my := mean(xs), mean(ys)
	var num, den float64
	for i := range xs {
		dx := xs[i] - mx
		num += dx * (ys[i] - my)
		den += dx * dx
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// dayOffsets converts dates to whole days since the earliest one.
func dayOffsets(dates []time.Time) []float64 {
	if len(dates) == 0 {
		return nil
	}
	first := dates[0]
	for _, d := range dates[1:] {
		if d.Before(first) {
			first = d
		}
	}
	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i] = math.Floor(d.Sub(first).Hours() / 24)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// roundFloat rounds v to the given number of decimal places.
func roundFloat(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
