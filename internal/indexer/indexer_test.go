package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/loader"
	"github.com/hyperjump/kotae/internal/models"
)

var chunks = []models.Chunk{
	{ID: 0, Text: "The capital of France is Paris.", SourceRef: "geo.md"},
	{ID: 1, Text: "Configure the server port in config.yaml.", SourceRef: "README.md", Heading: "Configuration"},
	{ID: 2, Text: "Bananas are yellow fruit.", SourceRef: "misc.md"},
}

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, &embedding.EmbeddingError{Model: "fail", Err: embedding.ErrUnavailable}
}

func TestIndexer_Build(t *testing.T) {
	for _, typ := range []string{"flat", "vptree"} {
		t.Run(typ, func(t *testing.T) {
			e := embedding.NewHashEmbedder(128)
			kb, err := NewIndexer(e, typ).Build(context.Background(), chunks)
			if err != nil {
				t.Fatal(err)
			}
			defer kb.Close()
			if kb.Vectors.Size() != 3 || kb.Vectors.Type() != typ || kb.Vectors.Dimensions() != 128 {
				t.Errorf("index = %d entries, %s, %d dims", kb.Vectors.Size(), kb.Vectors.Type(), kb.Vectors.Dimensions())
			}
			if kb.Keywords != nil {
				t.Error("keyword index built without WithKeywordIndex")
			}

			q, err := e.Embed(context.Background(), "capital of France")
			if err != nil {
				t.Fatal(err)
			}
			hits, err := kb.Vectors.Search(context.Background(), q, 1)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) != 1 || hits[0].Chunk.ID != 0 {
				t.Errorf("hits = %+v", hits)
			}
		})
	}
}

func TestIndexer_BuildWithKeywords(t *testing.T) {
	kb, err := NewIndexer(embedding.NewHashEmbedder(64), "flat", WithKeywordIndex(keyword.Options{})).
		Build(context.Background(), chunks)
	if err != nil {
		t.Fatal(err)
	}
	defer kb.Close()
	if kb.Keywords == nil {
		t.Fatal("keyword index missing")
	}
	n, err := kb.Keywords.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("DocCount = %d, want 3", n)
	}
}

func TestIndexer_BuildEmpty(t *testing.T) {
	kb, err := NewIndexer(embedding.NewHashEmbedder(32), "flat").Build(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if kb.Vectors.Size() != 0 {
		t.Errorf("Size = %d", kb.Vectors.Size())
	}
}

func TestIndexer_BuildErrors(t *testing.T) {
	_, err := NewIndexer(failingEmbedder{embedding.NewHashEmbedder(8)}, "flat").Build(context.Background(), chunks)
	if !errors.Is(err, embedding.ErrUnavailable) {
		t.Errorf("embed failure: err = %v", err)
	}
	if _, err := NewIndexer(embedding.NewHashEmbedder(8), "hnsw").Build(context.Background(), chunks); err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestIndexer_BuildFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	doc := "# Geography\n\nThe capital of France is Paris.\n\n# Fruit\n\nBananas are yellow.\n"
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}
	l := loader.New(loader.Options{Strategy: loader.StrategyHeading, ChunkSize: 50}, extract.NewExtractor())
	kb, err := NewIndexer(embedding.NewHashEmbedder(64), "flat").BuildFrom(context.Background(), l, path)
	if err != nil {
		t.Fatal(err)
	}
	if len(kb.Chunks) != 2 || kb.Vectors.Size() != 2 {
		t.Errorf("chunks = %d, index = %d", len(kb.Chunks), kb.Vectors.Size())
	}

	_, err = NewIndexer(embedding.NewHashEmbedder(64), "flat").BuildFrom(context.Background(), l, filepath.Join(t.TempDir(), "missing.md"))
	var le *loader.LoadError
	if !errors.As(err, &le) {
		t.Errorf("missing corpus: err = %v, want *loader.LoadError", err)
	}
}
