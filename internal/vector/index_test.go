package vector

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
)

func entry(id int, vec ...float32) models.IndexEntry {
	return models.IndexEntry{Chunk: models.Chunk{ID: id, Text: "chunk", SourceRef: "README.md"}, Vector: vec}
}

func newIndexes(t *testing.T, dims int) map[string]Index {
	t.Helper()
	out := map[string]Index{}
	for _, typ := range []string{"flat", "vptree"} {
		idx, err := NewIndex(typ, dims)
		if err != nil {
			t.Fatalf("NewIndex(%s): %v", typ, err)
		}
		out[typ] = idx
	}
	return out
}

func ids(hits []Hit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk.ID
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearch_orderingAndTies(t *testing.T) {
	entries := []models.IndexEntry{
		entry(3, 1, 0, 0),
		entry(1, 1, 0, 0), // same vector as 3: tie broken by ID
		entry(2, 0, 1, 0),
		entry(0, 0.7, 0.7, 0),
		entry(4, -1, 0, 0),
	}
	for typ, idx := range newIndexes(t, 3) {
		t.Run(typ, func(t *testing.T) {
			if err := idx.Build(entries); err != nil {
				t.Fatal(err)
			}
			hits, err := idx.Search(context.Background(), []float32{2, 0, 0}, 3)
			if err != nil {
				t.Fatal(err)
			}
			if got, want := ids(hits), []int{1, 3, 0}; !equalInts(got, want) {
				t.Errorf("ids = %v, want %v", got, want)
			}
			if hits[0].Score < 0.9999 || hits[0].Score > 1.0001 {
				t.Errorf("top score = %v, want ~1", hits[0].Score)
			}
			for i := 1; i < len(hits); i++ {
				if hits[i].Score > hits[i-1].Score {
					t.Errorf("scores not descending: %v", hits)
				}
			}
		})
	}
}

func TestSearch_boundaries(t *testing.T) {
	for typ, idx := range newIndexes(t, 2) {
		t.Run(typ, func(t *testing.T) {
			ctx := context.Background()
			hits, err := idx.Search(ctx, []float32{1, 0}, 4)
			if err != nil || len(hits) != 0 {
				t.Fatalf("unbuilt search = %v, %v; want empty, nil", hits, err)
			}
			if err := idx.Build([]models.IndexEntry{entry(0, 1, 0), entry(1, 0, 1)}); err != nil {
				t.Fatal(err)
			}
			if hits, _ := idx.Search(ctx, []float32{1, 0}, 10); len(hits) != 2 {
				t.Errorf("k > size: got %d hits, want 2", len(hits))
			}
			for _, k := range []int{0, -1} {
				hits, err := idx.Search(ctx, []float32{1, 0}, k)
				if err != nil || len(hits) != 0 {
					t.Errorf("k=%d: got %v, %v; want empty", k, hits, err)
				}
			}
			if _, err := idx.Search(ctx, []float32{1, 0, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("query mismatch err = %v", err)
			}
			if err := idx.Build(nil); !errors.Is(err, ErrAlreadyBuilt) {
				t.Errorf("second Build err = %v, want ErrAlreadyBuilt", err)
			}
			if idx.Size() != 2 || idx.Dimensions() != 2 || idx.Type() != typ {
				t.Errorf("metadata = %d/%d/%s", idx.Size(), idx.Dimensions(), idx.Type())
			}
		})
	}
}

func TestBuild_emptyIndex(t *testing.T) {
	for typ, idx := range newIndexes(t, 3) {
		t.Run(typ, func(t *testing.T) {
			if err := idx.Build(nil); err != nil {
				t.Fatal(err)
			}
			hits, err := idx.Search(context.Background(), []float32{1, 2, 3}, 4)
			if err != nil {
				t.Fatal(err)
			}
			if hits == nil || len(hits) != 0 {
				t.Errorf("hits = %#v, want empty non-nil slice", hits)
			}
		})
	}
}

func TestBuild_dimensionMismatch(t *testing.T) {
	for typ, idx := range newIndexes(t, 3) {
		t.Run(typ, func(t *testing.T) {
			err := idx.Build([]models.IndexEntry{entry(0, 1, 0, 0), entry(1, 1, 0)})
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Fatalf("err = %v, want ErrDimensionMismatch", err)
			}
			// A failed build leaves the index buildable.
			if err := idx.Build([]models.IndexEntry{entry(0, 1, 0, 0)}); err != nil {
				t.Errorf("rebuild after failure: %v", err)
			}
		})
	}
}

func TestBuild_copiesVectors(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	vec := []float32{1, 0}
	if err := idx.Build([]models.IndexEntry{{Chunk: models.Chunk{ID: 0}, Vector: vec}}); err != nil {
		t.Fatal(err)
	}
	vec[0], vec[1] = 0, 1
	hits, _ := idx.Search(context.Background(), []float32{1, 0}, 1)
	if hits[0].Score < 0.99 {
		t.Errorf("index should not alias caller vectors, score = %v", hits[0].Score)
	}
}

func TestSearch_zeroVectors(t *testing.T) {
	entries := []models.IndexEntry{entry(2, 0, 0), entry(0, 1, 0), entry(1, 0, 0)}
	for typ, idx := range newIndexes(t, 2) {
		t.Run(typ, func(t *testing.T) {
			if err := idx.Build(entries); err != nil {
				t.Fatal(err)
			}
			hits, err := idx.Search(context.Background(), []float32{1, 0}, 3)
			if err != nil {
				t.Fatal(err)
			}
			if got, want := ids(hits), []int{0, 1, 2}; !equalInts(got, want) {
				t.Errorf("ids = %v, want %v", got, want)
			}
			zeroQuery, err := idx.Search(context.Background(), []float32{0, 0}, 2)
			if err != nil {
				t.Fatal(err)
			}
			if got, want := ids(zeroQuery), []int{0, 1}; !equalInts(got, want) {
				t.Errorf("zero query ids = %v, want %v", got, want)
			}
		})
	}
}

func randomEntries(r *rand.Rand, n, dims int) []models.IndexEntry {
	entries := make([]models.IndexEntry, n)
	for i := range entries {
		v := make([]float32, dims)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		entries[i] = models.IndexEntry{Chunk: models.Chunk{ID: i}, Vector: v}
	}
	return entries
}

func TestVPTree_matchesFlat(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	const dims = 16
	entries := randomEntries(r, 500, dims)
	// duplicates exercise tie-breaking
	entries = append(entries, models.IndexEntry{Chunk: models.Chunk{ID: 500}, Vector: entries[7].Vector})

	flat, _ := NewFlatIndex(dims)
	tree, _ := NewVPTreeIndex(dims)
	if err := flat.Build(entries); err != nil {
		t.Fatal(err)
	}
	if err := tree.Build(entries); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	queries := randomEntries(r, 50, dims)
	queries = append(queries, entries[7])
	for qi, q := range queries {
		for _, k := range []int{1, 4, 10} {
			want, _ := flat.Search(ctx, q.Vector, k)
			got, _ := tree.Search(ctx, q.Vector, k)
			if !equalInts(ids(got), ids(want)) {
				t.Fatalf("query %d k=%d: vptree %v, flat %v", qi, k, ids(got), ids(want))
			}
		}
	}
}

func buildBoth(t *testing.T, dims int, entries []models.IndexEntry) (*FlatIndex, *VPTreeIndex) {
	t.Helper()
	flat, _ := NewFlatIndex(dims)
	tree, _ := NewVPTreeIndex(dims)
	if err := flat.Build(entries); err != nil {
		t.Fatal(err)
	}
	if err := tree.Build(entries); err != nil {
		t.Fatal(err)
	}
	return flat, tree
}

func assertSameHits(t *testing.T, label string, want, got []Hit) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: vptree returned %d hits, flat %d", label, len(got), len(want))
	}
	for i := range want {
		if got[i].Chunk.ID != want[i].Chunk.ID || got[i].Score != want[i].Score {
			t.Fatalf("%s pos %d: flat %d(%v), vptree %d(%v)", label, i,
				want[i].Chunk.ID, want[i].Score, got[i].Chunk.ID, got[i].Score)
		}
	}
}

// Hashed bag-of-words vectors are sparse, so most entries score exactly 0
// against a query and large tie groups must resolve by chunk ID.
func TestVPTree_matchesFlatSparseTies(t *testing.T) {
	const dims = 384
	emb := embedding.NewHashEmbedder(dims)
	ctx := context.Background()
	words := []string{"install", "config", "network", "storage", "proxy", "token", "cache", "shard", "replica", "backup"}
	entries := make([]models.IndexEntry, 60)
	for i := range entries {
		text := fmt.Sprintf("%s %s section %d", words[i%len(words)], words[(i*7)%len(words)], i)
		vec, err := emb.Embed(ctx, text)
		if err != nil {
			t.Fatal(err)
		}
		// IDs run against insertion order so tree layout and ID order disagree.
		entries[i] = models.IndexEntry{Chunk: models.Chunk{ID: len(entries) - 1 - i}, Vector: vec}
	}
	flat, tree := buildBoth(t, dims, entries)

	for _, question := range []string{"capital of france", "how do I configure the proxy", "backup replica"} {
		q, err := emb.Embed(ctx, question)
		if err != nil {
			t.Fatal(err)
		}
		for _, k := range []int{1, 4, 12, 30, 60} {
			want, _ := flat.Search(ctx, q, k)
			got, _ := tree.Search(ctx, q, k)
			assertSameHits(t, fmt.Sprintf("%q k=%d", question, k), want, got)
		}
	}
}

func TestVPTree_matchesFlatDuplicates(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	const dims = 8
	base := randomEntries(r, 40, dims)
	for trial := 0; trial < 10; trial++ {
		// Many copies of few vectors, some scaled, produce large exact-score ties.
		entries := make([]models.IndexEntry, 300)
		perm := r.Perm(len(entries))
		for i := range entries {
			src := base[r.Intn(len(base))].Vector
			vec := append([]float32(nil), src...)
			if r.Intn(3) == 0 {
				for j := range vec {
					vec[j] *= 2
				}
			}
			if r.Intn(20) == 0 {
				vec = make([]float32, dims)
			}
			entries[i] = models.IndexEntry{Chunk: models.Chunk{ID: perm[i]}, Vector: vec}
		}
		flat, tree := buildBoth(t, dims, entries)
		ctx := context.Background()
		for qi := 0; qi < 10; qi++ {
			q := base[r.Intn(len(base))].Vector
			k := 1 + r.Intn(len(entries))
			want, _ := flat.Search(ctx, q, k)
			got, _ := tree.Search(ctx, q, k)
			assertSameHits(t, fmt.Sprintf("trial %d query %d k=%d", trial, qi, k), want, got)
		}
	}
}

func TestSearch_deterministic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	entries := randomEntries(r, 100, 8)
	q := randomEntries(r, 1, 8)[0].Vector
	for typ, idx := range newIndexes(t, 8) {
		t.Run(typ, func(t *testing.T) {
			if err := idx.Build(entries); err != nil {
				t.Fatal(err)
			}
			first, _ := idx.Search(context.Background(), q, 5)
			for i := 0; i < 10; i++ {
				again, _ := idx.Search(context.Background(), q, 5)
				if !equalInts(ids(first), ids(again)) {
					t.Fatalf("run %d: %v != %v", i, ids(again), ids(first))
				}
			}
		})
	}
}

func TestSearch_concurrent(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	entries := randomEntries(r, 200, 8)
	queries := randomEntries(r, 20, 8)
	for typ, idx := range newIndexes(t, 8) {
		t.Run(typ, func(t *testing.T) {
			if err := idx.Build(entries); err != nil {
				t.Fatal(err)
			}
			var wg sync.WaitGroup
			for _, q := range queries {
				wg.Add(1)
				go func(vec []float32) {
					defer wg.Done()
					hits, err := idx.Search(context.Background(), vec, 4)
					if err != nil || len(hits) != 4 {
						t.Errorf("concurrent search: %d hits, err %v", len(hits), err)
					}
				}(q.Vector)
			}
			wg.Wait()
		})
	}
}

func TestSearch_canceledContext(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_ = idx.Build([]models.IndexEntry{entry(0, 1, 0)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewIndex(t *testing.T) {
	tests := []struct {
		typ     string
		want    string
		wantErr bool
	}{
		{"", "flat", false},
		{"flat", "flat", false},
		{"vptree", "vptree", false},
		{"faiss", "", true},
	}
	for _, tt := range tests {
		idx, err := NewIndex(tt.typ, 4)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewIndex(%q) err = %v", tt.typ, err)
			continue
		}
		if err == nil && idx.Type() != tt.want {
			t.Errorf("NewIndex(%q).Type() = %q, want %q", tt.typ, idx.Type(), tt.want)
		}
	}
	if _, err := NewIndex("flat", 0); err == nil {
		t.Error("expected error for zero dimensions")
	}
}

func BenchmarkSearch(b *testing.B) {
	r := rand.New(rand.NewSource(3))
	entries := randomEntries(r, 5000, 384)
	q := randomEntries(r, 1, 384)[0].Vector
	for _, typ := range []string{"flat", "vptree"} {
		idx, _ := NewIndex(typ, 384)
		if err := idx.Build(entries); err != nil {
			b.Fatal(err)
		}
		b.Run(typ, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := idx.Search(context.Background(), q, 4); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
