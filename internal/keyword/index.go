// Package keyword provides an in-memory BM25 index over chunk text for hybrid retrieval.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// ErrAlreadyBuilt is returned by a second Build call.
var ErrAlreadyBuilt = errors.New("keyword index already built")

// Hit is a keyword match for one chunk.
type Hit struct {
	ChunkID int
	Score   float64
}

// Options tunes keyword scoring. Zero values use defaults.
type Options struct {
	// HeadingBoost multiplies matches in the section heading (default 2).
	HeadingBoost float64
	// Fuzziness is the edit distance allowed per term; 0 disables fuzzy matching.
	Fuzziness int
}

// Index is a memory-only Bleve index of chunks, built once at startup.
type Index struct {
	index bleve.Index
	opts  Options
	mu    sync.Mutex
	built bool
}

// chunkDoc is the document shape stored in Bleve.
type chunkDoc struct {
	Text    string `json:"text"`
	Heading string `json:"heading"`
	Source  string `json:"source"`
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()
	// Standard analyzer lowercases and drops English stop words without stemming,
	// so identifiers like "config.yaml" survive intact.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("heading", text)
	source := bleve.NewKeywordFieldMapping()
	doc.AddFieldMappingsAt("source", source)
	im.DefaultMapping = doc
	return im
}

// New creates an empty memory-only index.
func New(opts Options) (*Index, error) {
	if opts.HeadingBoost <= 0 {
		opts.HeadingBoost = 2
	}
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: idx, opts: opts}, nil
}

// Build indexes chunks in one batch. A second call fails with ErrAlreadyBuilt.
func (x *Index) Build(ctx context.Context, chunks []models.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.built {
		return ErrAlreadyBuilt
	}
	batch := x.index.NewBatch()
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := chunkDoc{Text: ch.Text, Heading: ch.Heading, Source: ch.SourceRef}
		if err := batch.Index(strconv.Itoa(ch.ID), doc); err != nil {
			return fmt.Errorf("failed to index chunk %d: %w", ch.ID, err)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to apply Bleve batch: %w", err)
	}
	x.built = true
	return nil
}

// Search returns up to limit chunks matching query, ordered by descending
// score with ties broken by ascending chunk ID.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		return []Hit{}, nil
	}
	req := bleve.NewSearchRequest(x.buildQuery(query))
	req.Size = limit
	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.Atoi(h.ID)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{ChunkID: id, Score: h.Score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	return hits, nil
}

// buildQuery matches the text and the boosted heading. With fuzziness set,
// each content token becomes a fuzzy term query.
func (x *Index) buildQuery(query string) blevequery.Query {
	if x.opts.Fuzziness > 0 {
		if terms := utils.ContentTokens(query); len(terms) > 0 {
			qs := make([]blevequery.Query, 0, 2*len(terms))
			for _, term := range terms {
				fq := bleve.NewFuzzyQuery(term)
				fq.SetFuzziness(x.opts.Fuzziness)
				fq.SetField("text")
				hq := bleve.NewFuzzyQuery(term)
				hq.SetFuzziness(x.opts.Fuzziness)
				hq.SetField("heading")
				hq.SetBoost(x.opts.HeadingBoost)
				qs = append(qs, fq, hq)
			}
			return bleve.NewDisjunctionQuery(qs...)
		}
	}
	text := bleve.NewMatchQuery(query)
	text.SetField("text")
	heading := bleve.NewMatchQuery(query)
	heading.SetField("heading")
	heading.SetBoost(x.opts.HeadingBoost)
	return bleve.NewDisjunctionQuery(text, heading)
}

// DocCount returns the number of indexed chunks.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}
