package markov

import (
	"testing"
)

// newTestModel creates a model with the given order and trains it on the
// provided texts.
func newTestModel(t *testing.T, config ModelConfig, texts ...string) *Model {
	t.Helper()
	m, err := NewModel(config)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	m.Train(texts...)
	return m
}

// scriptRand is a deterministic Rand that replays scripted draws, so tests
// can walk generation through an exact token sequence. Exhausted scripts
// repeat their final value.
type scriptRand struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (r *scriptRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0
	}
	if r.fi >= len(r.floats) {
		return r.floats[len(r.floats)-1]
	}
	v := r.floats[r.fi]
	r.fi++
	return v
}

func (r *scriptRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	i := r.ii
	if i >= len(r.ints) {
		i = len(r.ints) - 1
	} else {
		r.ii++
	}
	return r.ints[i] % n
}

// fixedRand always returns the same uniform draw.
type fixedRand struct {
	f float64
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(n int) int   { return int(r.f * float64(n)) }
