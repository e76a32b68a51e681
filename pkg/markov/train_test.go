package markov

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestTrain(t *testing.T) {
	m := newTestModel(t, ModelConfig{Order: 1}, "a b a b a b.")

	want := ChainTable{
		"a": {"b": 3},
		"b": {"a": 2, ".": 1},
	}
	if !reflect.DeepEqual(m.Table(), want) {
		t.Errorf("Table() = %v, want %v", m.Table(), want)
	}
}

func TestTrainAccumulates(t *testing.T) {
	m := newTestModel(t, ModelConfig{Order: 1}, "a b.")
	m.Train("a b.")

	if got := m.Table()["a"]["b"]; got != 2 {
		t.Errorf("count for a->b after two passes = %d, want 2", got)
	}
	if got := m.Table()["b"]["."]; got != 2 {
		t.Errorf("count for b->. after two passes = %d, want 2", got)
	}
}

func TestTrainSkipsUnusableLines(t *testing.T) {
	m := newTestModel(t, ModelConfig{Order: 2},
		"\n   \n\t\n", // blank and whitespace-only lines
		"short",       // fewer than order+1 tokens
		"a b",         // exactly order tokens, still no window
	)

	if len(m.Table()) != 0 {
		t.Errorf("expected no contexts from unusable lines, got %v", m.Table())
	}
}

func TestTrainLinesAreIndependent(t *testing.T) {
	// Windows never cross line boundaries.
	m := newTestModel(t, ModelConfig{Order: 1}, "a b\nc d")

	if _, ok := m.Table()["b"]; ok {
		t.Error("context \"b\" should not exist; windows must not span lines")
	}
	if got := m.Table()["a"]["b"]; got != 1 {
		t.Errorf("count for a->b = %d, want 1", got)
	}
	if got := m.Table()["c"]["d"]; got != 1 {
		t.Errorf("count for c->d = %d, want 1", got)
	}
}

func TestTrainReader(t *testing.T) {
	m, err := NewModel(ModelConfig{Order: 1})
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	if err := m.TrainReader(strings.NewReader("a b a b a b.")); err != nil {
		t.Fatalf("TrainReader() error = %v", err)
	}

	want := ChainTable{
		"a": {"b": 3},
		"b": {"a": 2, ".": 1},
	}
	if !reflect.DeepEqual(m.Table(), want) {
		t.Errorf("Table() = %v, want %v", m.Table(), want)
	}
}

func TestTableInvariants(t *testing.T) {
	corpus := "one fish two fish. red fish blue fish.\nthe cat sat, the cat spat!"

	for _, order := range []int{1, 2, 3} {
		m := newTestModel(t, ModelConfig{Order: order}, corpus)
		for key, successors := range m.Table() {
			if got := len(m.contextTokens(key)); got != order {
				t.Errorf("order %d: context %q has %d tokens", order, key, got)
			}
			if len(successors) == 0 {
				t.Errorf("order %d: context %q has no successors", order, key)
			}
			for next, count := range successors {
				if count < 1 {
					t.Errorf("order %d: count for (%q -> %q) = %d, want >= 1", order, key, next, count)
				}
			}
		}
	}
}

func TestTableInvariantsCharMode(t *testing.T) {
	m := newTestModel(t, ModelConfig{Order: 3, TokenType: TokenChar}, "hello there. general kenobi!")
	if len(m.Table()) == 0 {
		t.Fatal("expected char-mode training to produce contexts")
	}
	for key := range m.Table() {
		if got := len(m.contextTokens(key)); got != 3 {
			t.Errorf("context %q has %d tokens, want 3", key, got)
		}
	}
}

func TestTrainChunkMergeEqualsSequential(t *testing.T) {
	lines := []string{
		"one fish two fish.",
		"red fish blue fish.",
		"one fish red fish.",
		"two fish blue fish.",
	}
	config := ModelConfig{Order: 2}

	sequential := newTestModel(t, config, strings.Join(lines, "\n"))

	chunkA, err := TrainChunk(config, lines[0], lines[1])
	if err != nil {
		t.Fatalf("TrainChunk() error = %v", err)
	}
	chunkB, err := TrainChunk(config, lines[2], lines[3])
	if err != nil {
		t.Fatalf("TrainChunk() error = %v", err)
	}

	// Merge in both orders; both must match the sequential pass.
	ab := make(ChainTable)
	ab.Merge(chunkA)
	ab.Merge(chunkB)

	ba := make(ChainTable)
	ba.Merge(chunkB)
	ba.Merge(chunkA)

	if !reflect.DeepEqual(ab, sequential.Table()) {
		t.Errorf("merged A+B differs from sequential training:\ngot  %v\nwant %v", ab, sequential.Table())
	}
	if !reflect.DeepEqual(ba, ab) {
		t.Errorf("merge is not commutative:\nA+B %v\nB+A %v", ab, ba)
	}
}

func TestMergeAssociative(t *testing.T) {
	config := ModelConfig{Order: 1}
	chunks := make([]ChainTable, 3)
	for i, text := range []string{"a b a.", "b a b.", "a a b."} {
		chunk, err := TrainChunk(config, text)
		if err != nil {
			t.Fatalf("TrainChunk() error = %v", err)
		}
		chunks[i] = chunk
	}

	// (A+B)+C
	left := make(ChainTable)
	left.Merge(chunks[0])
	left.Merge(chunks[1])
	left.Merge(chunks[2])

	// A+(B+C)
	bc := make(ChainTable)
	bc.Merge(chunks[1])
	bc.Merge(chunks[2])
	right := make(ChainTable)
	right.Merge(chunks[0])
	right.Merge(bc)

	if !reflect.DeepEqual(left, right) {
		t.Errorf("merge is not associative:\n(A+B)+C %v\nA+(B+C) %v", left, right)
	}
}

func BenchmarkTrain(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("the quick brown fox jumps over the lazy dog. pack my box with five dozen liquor jugs.\n")
	}
	corpus := sb.String()

	for _, order := range []int{1, 2, 3} {
		b.Run(fmt.Sprintf("Order%d", order), func(b *testing.B) {
			b.SetBytes(int64(len(corpus)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				m, err := NewModel(ModelConfig{Order: order})
				if err != nil {
					b.Fatal(err)
				}
				m.Train(corpus)
			}
		})
	}
}
