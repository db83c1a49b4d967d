package pacing

// Rate releases characters at the speed of a LineConfig, one tick at a
// time. It is not safe for concurrent use; each direction owns its own.
type Rate struct {
	ticksPerSecond uint64

	last   LineConfig
	primed bool

	num uint64 // characters per den ticks
	den uint64
	acc uint64 // 0 <= acc < den
}

// NewRate creates a rate model evaluated ticksPerSecond times per second.
// Non-positive values are treated as one tick per second.
func NewRate(ticksPerSecond int) *Rate {
	if ticksPerSecond <= 0 {
		ticksPerSecond = 1
	}
	return &Rate{ticksPerSecond: uint64(ticksPerSecond)}
}

// Quota returns the number of whole characters allowed to cross in the
// tick just elapsed for the given line configuration.
func (r *Rate) Quota(cfg LineConfig) int {
	if !r.primed || cfg != r.last {
		r.recompute(cfg)
	}

	quota := r.num / r.den
	r.acc += r.num % r.den
	if r.acc >= r.den {
		quota++
		r.acc -= r.den
	}
	return int(quota)
}

func (r *Rate) recompute(cfg LineConfig) {
	norm := Normalize(cfg)
	num := uint64(norm.Speed)
	den := uint64(BitsPerChar(norm)) * r.ticksPerSecond

	g := gcd(num, den)
	r.num = num / g
	r.den = den / g
	r.acc = r.den / 2

	r.last = cfg
	r.primed = true
}

// Fraction returns the reduced characters-per-tick fraction. Both values
// are zero before the first call to Quota.
func (r *Rate) Fraction() (num, den uint64) {
	return r.num, r.den
}

// Acc returns the current remainder accumulator.
func (r *Rate) Acc() uint64 {
	return r.acc
}

// Config returns the last line configuration seen by Quota.
func (r *Rate) Config() LineConfig {
	return r.last
}

// CharsPerSecond returns the character rate of the last configuration.
func (r *Rate) CharsPerSecond() float64 {
	if r.den == 0 {
		return 0
	}
	return float64(r.num) * float64(r.ticksPerSecond) / float64(r.den)
}

// Schedule returns the first n quotas a fresh Rate issues for cfg.
func Schedule(cfg LineConfig, ticksPerSecond, n int) []int {
	r := NewRate(ticksPerSecond)
	out := make([]int, n)
	for i := range out {
		out[i] = r.Quota(cfg)
	}
	return out
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
