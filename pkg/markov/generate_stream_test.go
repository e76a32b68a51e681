package markov

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGenerateStreamMatchesWalk(t *testing.T) {
	m := newTestModel(t, ModelConfig{Order: 1}, "a b a b a b.")

	rng := &scriptRand{floats: []float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.1, 0.5, 0.5}}
	out, err := m.GenerateStream(context.Background(),
		WithSeed("a"),
		WithTemperature(1),
		WithStopProbability(1),
		WithRand(rng),
	)
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}

	var fragments []string
	for fragment := range out {
		fragments = append(fragments, fragment)
	}

	wantFragments := []string{"a", " b", " a", " b", " a", " b", "."}
	if len(fragments) != len(wantFragments) {
		t.Fatalf("got %d fragments %q, want %d", len(fragments), fragments, len(wantFragments))
	}
	for i, fragment := range fragments {
		if fragment != wantFragments[i] {
			t.Errorf("fragment[%d] = %q, want %q", i, fragment, wantFragments[i])
		}
	}

	if joined := strings.Join(fragments, ""); joined != "a b a b a b." {
		t.Errorf("joined stream = %q, want %q", joined, "a b a b a b.")
	}
}

func TestGenerateStreamCancellation(t *testing.T) {
	// No stop tokens, so the walk only ends at the length budget.
	m := newTestModel(t, ModelConfig{Order: 1, StopTokens: []string{"%"}}, "a b a b")

	ctx, cancel := context.WithCancel(context.Background())
	out, err := m.GenerateStream(ctx,
		WithSeed("a"),
		WithMaxLength(100000),
		WithRand(&scriptRand{floats: []float64{0.0}}),
	)
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}

	for range 5 {
		if _, ok := <-out; !ok {
			t.Fatal("stream closed before cancellation")
		}
	}
	cancel()

	// Drain; the channel must close promptly after cancellation.
	for range out {
	}
}

func TestGenerateStreamRandomStartTruncatedToBudget(t *testing.T) {
	// A budget below the model order must bound even the start context.
	m := newTestModel(t, ModelConfig{Order: 2}, "a b c d.")

	out, err := m.GenerateStream(context.Background(),
		WithMaxLength(1),
		WithRand(fixedRand{0.5}),
	)
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}

	var fragments int
	for range out {
		fragments++
	}
	if fragments > 1 {
		t.Errorf("stream emitted %d fragments, budget is 1", fragments)
	}
}

func TestGenerateStreamErrors(t *testing.T) {
	empty, err := NewModel(DefaultConfig())
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	if _, err := empty.GenerateStream(context.Background()); !errors.Is(err, ErrEmptyModel) {
		t.Errorf("GenerateStream() on empty model error = %v, want ErrEmptyModel", err)
	}

	m := newTestModel(t, ModelConfig{Order: 1}, "a b.")
	if _, err := m.GenerateStream(context.Background(), WithTemperature(-1)); err == nil {
		t.Error("GenerateStream() with negative temperature did not fail")
	}
	var verr *ValidationError
	if _, err := m.GenerateStream(context.Background(), WithSeed("a"), WithStopProbability(2)); !errors.As(err, &verr) {
		t.Errorf("GenerateStream() with out-of-range stop probability error = %v, want *ValidationError", err)
	}
}
