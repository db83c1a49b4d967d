package pacing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitsPerChar(t *testing.T) {
	tests := []struct {
		name     string
		cfg      LineConfig
		expected int
	}{
		{"8N1", LineConfig{Speed: 9600, CharSize: 8}, 10},
		{"7E1", LineConfig{Speed: 9600, CharSize: 7, Parity: true}, 10},
		{"8N2", LineConfig{Speed: 9600, CharSize: 8, TwoStopBits: true}, 11},
		{"8P2", LineConfig{Speed: 9600, CharSize: 8, Parity: true, TwoStopBits: true}, 12},
		{"5N1", LineConfig{Speed: 50, CharSize: 5}, 7},
		{"zero size falls back to 8", LineConfig{Speed: 9600}, 10},
		{"oversized falls back to 8", LineConfig{Speed: 9600, CharSize: 12}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BitsPerChar(tt.cfg))
		})
	}
}

func TestNormalize(t *testing.T) {
	cfg := Normalize(LineConfig{Speed: 12345, CharSize: 3, Parity: true})
	assert.Equal(t, DefaultSpeed, cfg.Speed)
	assert.Equal(t, DefaultCharSize, cfg.CharSize)
	assert.True(t, cfg.Parity)

	kept := LineConfig{Speed: 2400, CharSize: 7, TwoStopBits: true}
	assert.Equal(t, kept, Normalize(kept))
}

func TestLineConfigString(t *testing.T) {
	assert.Equal(t, "9600 8N1", LineConfig{Speed: 9600, CharSize: 8}.String())
	assert.Equal(t, "300 7P2", LineConfig{Speed: 300, CharSize: 7, Parity: true, TwoStopBits: true}.String())
}

func TestQuota9600At25Hz(t *testing.T) {
	cfg := LineConfig{Speed: 9600, CharSize: 8}
	rate := NewRate(25)

	quotas := make([]int, 0, 50)
	for i := 0; i < 50; i++ {
		quotas = append(quotas, rate.Quota(cfg))
	}

	num, den := rate.Fraction()
	assert.Equal(t, uint64(192), num)
	assert.Equal(t, uint64(5), den)
	assert.InDelta(t, 960.0, rate.CharsPerSecond(), 1e-9)

	assert.Equal(t, []int{38, 39, 38, 39, 38}, quotas[:5])
	for i := 5; i < len(quotas); i++ {
		assert.Equal(t, quotas[i-5], quotas[i], "schedule repeats every den ticks")
	}

	total := 0
	for _, q := range quotas {
		assert.Contains(t, []int{38, 39}, q)
		total += q
	}
	assert.Equal(t, 1920, total)
	assert.InDelta(t, 38.4, float64(total)/float64(len(quotas)), 1e-9)
}

func TestQuotaSlowLine(t *testing.T) {
	// 50 bps 8N1 at 25 Hz is one character every five ticks.
	quotas := Schedule(LineConfig{Speed: 50, CharSize: 8}, 25, 20)

	total := 0
	for _, q := range quotas {
		assert.LessOrEqual(t, q, 1)
		total += q
	}
	assert.Equal(t, 4, total)
}

func TestQuotaUnsupportedSpeedUsesDefault(t *testing.T) {
	bogus := Schedule(LineConfig{Speed: 9601, CharSize: 8}, 25, 25)
	fallback := Schedule(LineConfig{Speed: DefaultSpeed, CharSize: 8}, 25, 25)
	assert.Equal(t, fallback, bogus)
}

func TestQuotaRecomputesOnChange(t *testing.T) {
	rate := NewRate(25)
	fast := LineConfig{Speed: 9600, CharSize: 8}
	slow := LineConfig{Speed: 1200, CharSize: 7, Parity: true}

	for i := 0; i < 7; i++ {
		rate.Quota(fast)
	}
	assert.Equal(t, fast, rate.Config())

	got := make([]int, 30)
	for i := range got {
		got[i] = rate.Quota(slow)
	}

	assert.Equal(t, slow, rate.Config())
	assert.Equal(t, Schedule(slow, 25, 30), got, "a change restarts the accumulator at den/2")
}

func TestQuotaAccumulatorStartsAtHalf(t *testing.T) {
	rate := NewRate(25)
	cfg := LineConfig{Speed: 300, CharSize: 8}

	rate.Quota(cfg)
	num, den := rate.Fraction()
	require.Equal(t, uint64(6), num)
	require.Equal(t, uint64(5), den)
	assert.Equal(t, (den/2+num%den)%den, rate.Acc())
}

func TestFractionBeforeFirstQuota(t *testing.T) {
	rate := NewRate(0)
	num, den := rate.Fraction()
	assert.Zero(t, num)
	assert.Zero(t, den)
	assert.Zero(t, rate.CharsPerSecond())
}

func TestGCD(t *testing.T) {
	assert.Equal(t, uint64(50), gcd(9600, 250))
	assert.Equal(t, uint64(1), gcd(7, 13))
	assert.Equal(t, uint64(1), gcd(0, 0))
	assert.Equal(t, uint64(4), gcd(0, 4))
}

func TestSummarize(t *testing.T) {
	rep := Summarize(LineConfig{Speed: 9600, CharSize: 8}, 25, 25)

	assert.Equal(t, 10, rep.BitsPerChar)
	assert.Equal(t, uint64(192), rep.Num)
	assert.Equal(t, uint64(5), rep.Den)
	assert.Equal(t, 960, rep.Total)
	assert.InDelta(t, 38.4, rep.Mean, 1e-9)
	// 15 ticks of 38 and 10 of 39: variance 0.4*0.6.
	assert.InDelta(t, math.Sqrt(0.24), rep.StdDev, 1e-9)
	assert.Equal(t, 38, rep.Min)
	assert.Equal(t, 39, rep.Max)
	assert.Len(t, rep.Quotas, 25)
}

func TestSummarizeSingleTick(t *testing.T) {
	rep := Summarize(LineConfig{Speed: 9600, CharSize: 8}, 25, 1)

	assert.Equal(t, []int{38}, rep.Quotas)
	assert.Equal(t, 38.0, rep.Mean)
	assert.Zero(t, rep.StdDev)
	assert.False(t, math.IsNaN(rep.StdDev))
}

func TestSummarizeEmpty(t *testing.T) {
	rep := Summarize(LineConfig{Speed: 9600, CharSize: 8}, 25, 0)
	assert.Zero(t, rep.Total)
	assert.Empty(t, rep.Quotas)
	assert.Zero(t, rep.Mean)
}
