package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/loader"
	"github.com/hyperjump/kotae/internal/memory"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/retrieval"
)

const (
	e2eK          = 4
	e2eDimensions = 512
)

type harness struct {
	kb       *indexer.KnowledgeBase
	pipeline *pipeline.Pipeline
}

func newHarness(t *testing.T, corpusPath, mode string) *harness {
	t.Helper()
	cfg := config.Default()
	ctx := context.Background()

	embedder := embedding.NewHashEmbedder(e2eDimensions)
	ld := loader.New(loader.Options{
		Strategy:     loader.StrategyHeading,
		ChunkSize:    cfg.Corpus.ChunkSize,
		ChunkOverlap: cfg.Corpus.ChunkOverlap,
	}, extract.NewExtractor())

	var idxOpts []indexer.IndexerOption
	if mode == retrieval.ModeHybrid {
		idxOpts = append(idxOpts, indexer.WithKeywordIndex(keyword.Options{
			HeadingBoost: cfg.Retrieval.HeadingBoost,
			Fuzziness:    cfg.Retrieval.KeywordFuzziness,
		}))
	}
	kb, err := indexer.NewIndexer(embedder, "flat", idxOpts...).BuildFrom(ctx, ld, corpusPath)
	if err != nil {
		t.Fatalf("build knowledge base: %v", err)
	}
	t.Cleanup(func() { _ = kb.Close() })

	var retOpts []retrieval.Option
	if mode == retrieval.ModeHybrid {
		retOpts = append(retOpts, retrieval.WithHybrid(kb.Keywords, kb.Chunks, retrieval.HybridConfig{
			Candidates:     cfg.Retrieval.Candidates,
			KeywordWeight:  cfg.Retrieval.KeywordWeight,
			SemanticWeight: cfg.Retrieval.SemanticWeight,
		}))
	}
	r := retrieval.New(embedder, kb.Vectors, e2eK, retOpts...)
	synth := generation.NewSynthesizer(generation.NewExtractiveGenerator(0), cfg.Generation)
	p := pipeline.New(r, synth, memory.New(cfg.Memory.MaxTurns, cfg.Memory.MaxSessions))
	return &harness{kb: kb, pipeline: p}
}

func retrievedFrom(res *models.QueryResult, file, heading string) bool {
	for _, c := range res.RetrievedChunks {
		if c.SourceRef == file && (heading == "" || c.Heading == heading) {
			return true
		}
	}
	return false
}

func describe(res *models.QueryResult) []string {
	out := make([]string, len(res.RetrievedChunks))
	for i, c := range res.RetrievedChunks {
		out[i] = c.SourceRef + "#" + c.Heading
	}
	return out
}

func TestE2E_AnswersFromMarkdownCorpus(t *testing.T) {
	for _, mode := range []string{retrieval.ModeSemantic, retrieval.ModeHybrid} {
		t.Run(mode, func(t *testing.T) {
			corpus := BuildCorpus()
			dir := filepath.Join(t.TempDir(), "docs")
			if err := corpus.WriteMarkdown(dir); err != nil {
				t.Fatal(err)
			}
			h := newHarness(t, dir, mode)
			if got := len(h.kb.Chunks); got != len(corpus.Sections) {
				t.Fatalf("chunks = %d, want one per section (%d)", got, len(corpus.Sections))
			}
			t.Logf("indexed %d chunks; running %d questions", len(h.kb.Chunks), len(corpus.Cases))

			ctx := context.Background()
			for i, tc := range corpus.Cases {
				t.Run(fmt.Sprintf("%02d %s", i, tc.Heading), func(t *testing.T) {
					res, err := h.pipeline.Answer(ctx, models.AskRequest{Question: tc.Question, SessionID: fmt.Sprintf("s%d", i)})
					if err != nil {
						t.Fatalf("answer failed: %v", err)
					}
					if len(res.RetrievedChunks) > e2eK {
						t.Errorf("retrieved %d chunks, want at most %d", len(res.RetrievedChunks), e2eK)
					}
					if !retrievedFrom(res, tc.File, tc.Heading) {
						t.Errorf("question %q: expected %s#%s among %v", tc.Question, tc.File, tc.Heading, describe(res))
					}
					if !strings.Contains(res.Answer, tc.AnswerContains) {
						t.Errorf("question %q: answer %q does not contain %q", tc.Question, res.Answer, tc.AnswerContains)
					}
				})
			}
		})
	}
}

// TestE2E_FileFormats writes one section per file across every generated format
// and checks each question retrieves the file holding its answer.
func TestE2E_FileFormats(t *testing.T) {
	corpus := BuildCorpus()
	dir := filepath.Join(t.TempDir(), "docs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	exts := SupportedFileExtensions
	fileFor := make(map[int]string)
	for i, s := range corpus.Sections {
		name := fmt.Sprintf("section-%02d%s", i, exts[i%len(exts)])
		data, err := WriteMinimalFile(filepath.Ext(name), s.Body)
		if err != nil {
			t.Fatalf("write minimal file %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
		fileFor[i] = name
	}

	h := newHarness(t, dir, retrieval.ModeHybrid)
	if got := len(h.kb.Chunks); got != len(corpus.Sections) {
		t.Fatalf("chunks = %d, want %d", got, len(corpus.Sections))
	}

	ctx := context.Background()
	for i, tc := range corpus.Cases {
		t.Run(fileFor[i], func(t *testing.T) {
			res, err := h.pipeline.Answer(ctx, models.AskRequest{Question: tc.Question})
			if err != nil {
				t.Fatalf("answer failed: %v", err)
			}
			if !retrievedFrom(res, fileFor[i], "") {
				t.Errorf("question %q: expected %s among %v", tc.Question, fileFor[i], describe(res))
			}
		})
	}
}

func TestE2E_ConversationKeepsSessionsApart(t *testing.T) {
	corpus := BuildCorpus()
	dir := filepath.Join(t.TempDir(), "docs")
	if err := corpus.WriteMarkdown(dir); err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, dir, retrieval.ModeSemantic)
	ctx := context.Background()

	for _, q := range []string{corpus.Cases[0].Question, corpus.Cases[1].Question} {
		if _, err := h.pipeline.Answer(ctx, models.AskRequest{Question: q, SessionID: "alice"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.pipeline.Answer(ctx, models.AskRequest{Question: corpus.Cases[2].Question, SessionID: "bob"}); err != nil {
		t.Fatal(err)
	}

	alice := h.pipeline.History("alice")
	if len(alice) != 2 || alice[0].Question != corpus.Cases[0].Question {
		t.Errorf("alice history = %+v", alice)
	}
	if bob := h.pipeline.History("bob"); len(bob) != 1 {
		t.Errorf("bob history has %d turns, want 1", len(bob))
	}
	if !h.pipeline.Reset("alice") {
		t.Error("reset alice should report an existing session")
	}
	if got := h.pipeline.History("alice"); len(got) != 0 {
		t.Errorf("alice history after reset = %+v", got)
	}
}
