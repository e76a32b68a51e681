package markov

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestExportLoadRoundTrip(t *testing.T) {
	m := newTestModel(t, ModelConfig{Order: 2, StopTokens: []string{".", "!"}},
		"one fish two fish. red fish blue fish!")

	var buf bytes.Buffer
	if err := m.Export(&buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	loaded, err := LoadSnapshot(&buf)
	if err != nil {
		t.Fatalf("LoadSnapshot() failed: %v", err)
	}

	if !reflect.DeepEqual(loaded.Config(), m.Config()) {
		t.Errorf("loaded config = %+v, want %+v", loaded.Config(), m.Config())
	}
	if !reflect.DeepEqual(loaded.Table(), m.Table()) {
		t.Errorf("loaded table = %v, want %v", loaded.Table(), m.Table())
	}

	// The reloaded model must generate identically under identical draws.
	rng := func() *scriptRand { return &scriptRand{ints: []int{3}, floats: []float64{0.4, 0.4, 0.4}} }
	want, err := m.Generate(WithTemperature(1), WithRand(rng()))
	if err != nil {
		t.Fatalf("Generate() from original failed: %v", err)
	}
	got, err := loaded.Generate(WithTemperature(1), WithRand(rng()))
	if err != nil {
		t.Fatalf("Generate() from loaded model failed: %v", err)
	}
	if got != want {
		t.Errorf("loaded model generated %q, original %q", got, want)
	}
}

func TestExportIsDeterministic(t *testing.T) {
	m := newTestModel(t, ModelConfig{Order: 1}, "a b a c a d.")

	var first, second bytes.Buffer
	if err := m.Export(&first); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if err := m.Export(&second); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if first.String() != second.String() {
		t.Error("two exports of the same model differ")
	}
}

func TestLoadSnapshotRejectsMalformed(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{`},
		{name: "missing order", data: `{"token_type":"word","stop_tokens":["."],"model":[]}`},
		{name: "missing token type", data: `{"order":1,"stop_tokens":["."],"model":[]}`},
		{name: "missing stop tokens", data: `{"order":1,"token_type":"word","model":[]}`},
		{name: "missing model", data: `{"order":1,"token_type":"word","stop_tokens":["."]}`},
		{name: "negative order", data: `{"order":-2,"token_type":"word","stop_tokens":["."],"model":[]}`},
		{name: "unknown token type", data: `{"order":1,"token_type":"bigram","stop_tokens":["."],"model":[]}`},
		{name: "model not a pair list", data: `{"order":1,"token_type":"word","stop_tokens":["."],"model":{"a":{"b":1}}}`},
		{name: "zero count", data: `{"order":1,"token_type":"word","stop_tokens":["."],"model":[["a",[["b",0]]]]}`},
		{name: "context length does not match order", data: `{"order":2,"token_type":"word","stop_tokens":["."],"model":[["a",[["b",1]]]]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := LoadSnapshot(strings.NewReader(tc.data))
			if !errors.Is(err, ErrMalformedSnapshot) {
				t.Errorf("LoadSnapshot() error = %v, want ErrMalformedSnapshot", err)
			}
			if m != nil {
				t.Error("LoadSnapshot() returned a model alongside an error")
			}
		})
	}
}

func TestSaveLoadFile(t *testing.T) {
	m := newTestModel(t, ModelConfig{Order: 1, TokenType: TokenChar}, "banana bandana.")

	path := filepath.Join(t.TempDir(), "model.json")
	if err := m.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() failed: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Table(), m.Table()) {
		t.Errorf("loaded table = %v, want %v", loaded.Table(), m.Table())
	}
	if loaded.Config().TokenType != TokenChar {
		t.Errorf("loaded token type = %q, want %q", loaded.Config().TokenType, TokenChar)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("LoadFile() on a missing file succeeded")
	}
}
