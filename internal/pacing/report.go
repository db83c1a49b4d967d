package pacing

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Report summarizes a quota schedule.
type Report struct {
	Config         LineConfig `json:"config"`
	BitsPerChar    int        `json:"bits_per_char"`
	TicksPerSecond int        `json:"ticks_per_second"`
	Num            uint64     `json:"num"`
	Den            uint64     `json:"den"`
	CharsPerSecond float64    `json:"chars_per_second"`
	Quotas         []int      `json:"quotas"`
	Total          int        `json:"total"`
	Mean           float64    `json:"mean"`
	StdDev         float64    `json:"stddev"`
	Min            int        `json:"min"`
	Max            int        `json:"max"`
}

// Summarize computes the first n quotas for cfg and their statistics. The
// standard deviation is over the population of the n quotas shown.
func Summarize(cfg LineConfig, ticksPerSecond, n int) Report {
	r := NewRate(ticksPerSecond)
	quotas := make([]int, n)
	samples := make([]float64, n)
	total := 0
	for i := range quotas {
		q := r.Quota(cfg)
		quotas[i] = q
		samples[i] = float64(q)
		total += q
	}

	num, den := r.Fraction()
	rep := Report{
		Config:         Normalize(cfg),
		BitsPerChar:    BitsPerChar(cfg),
		TicksPerSecond: int(r.ticksPerSecond),
		Num:            num,
		Den:            den,
		CharsPerSecond: r.CharsPerSecond(),
		Quotas:         quotas,
		Total:          total,
	}
	if n > 0 {
		rep.Mean, rep.StdDev = stat.PopMeanStdDev(samples, nil)
		rep.Min = slices.Min(quotas)
		rep.Max = slices.Max(quotas)
	}
	return rep
}
