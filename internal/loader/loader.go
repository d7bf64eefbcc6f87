// Package loader reads a documentation corpus and splits it into chunks.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// Chunking strategies.
const (
	StrategyHeading = "heading"
	StrategyWindow  = "window"
)

// ErrNoDocuments is returned when a corpus directory holds no loadable file.
var ErrNoDocuments = errors.New("no documents found")

// LoadError reports a corpus that is missing, unreadable, or unparseable.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Options controls how documents are split.
type Options struct {
	Strategy     string
	ChunkSize    int
	ChunkOverlap int
	// Extensions limits directory walks; empty means every extension the extractor supports.
	Extensions []string
}

// Loader turns a corpus path into chunks.
type Loader struct {
	opts      Options
	chunker   *Chunker
	extractor *extract.Extractor
	logger    *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets a logger for per-file debug output.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// New returns a Loader. extractor may be nil, in which case a default one is used.
func New(opts Options, extractor *extract.Extractor, options ...Option) *Loader {
	if opts.Strategy == "" {
		opts.Strategy = StrategyHeading
	}
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	ld := &Loader{
		opts:      opts,
		chunker:   NewChunker(opts.ChunkSize, opts.ChunkOverlap),
		extractor: extractor,
		logger:    zap.NewNop(),
	}
	for _, o := range options {
		o(ld)
	}
	return ld
}

// Load reads sourcePath, a single file or a directory walked in lexical order,
// and returns its chunks with IDs 0..n-1 in load order. An existing but empty
// file yields zero chunks and no error.
func (l *Loader) Load(ctx context.Context, sourcePath string) ([]models.Chunk, error) {
	switch l.opts.Strategy {
	case StrategyHeading, StrategyWindow:
	default:
		return nil, &LoadError{Path: sourcePath, Err: fmt.Errorf("unknown chunking strategy %q", l.opts.Strategy)}
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, &LoadError{Path: sourcePath, Err: err}
	}

	var files []string
	root := filepath.Dir(sourcePath)
	if info.IsDir() {
		root = sourcePath
		files, err = l.listFiles(sourcePath)
		if err != nil {
			return nil, &LoadError{Path: sourcePath, Err: err}
		}
		if len(files) == 0 {
			return nil, &LoadError{Path: sourcePath, Err: ErrNoDocuments}
		}
	} else {
		files = []string{sourcePath}
	}

	var chunks []models.Chunk
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := l.extractor.Extract(path)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		ref, err := filepath.Rel(root, path)
		if err != nil {
			ref = filepath.Base(path)
		}
		fileChunks := l.split(filepath.ToSlash(ref), text)
		l.logger.Debug("loaded document",
			zap.String("path", path),
			zap.Int("chunks", len(fileChunks)))
		chunks = append(chunks, fileChunks...)
	}
	for i := range chunks {
		chunks[i].ID = i
	}
	return chunks, nil
}

// split chunks one document's text. IDs are assigned by the caller.
func (l *Loader) split(ref, text string) []models.Chunk {
	var chunks []models.Chunk
	add := func(heading, body string) {
		for _, w := range l.chunker.Split(body) {
			chunks = append(chunks, models.Chunk{
				Text:      w,
				SourceRef: ref,
				Heading:   heading,
				Position:  len(chunks),
			})
		}
	}
	if l.opts.Strategy == StrategyWindow {
		add("", text)
		return chunks
	}
	for _, s := range splitSections(text) {
		add(s.heading, s.body)
	}
	return chunks
}

func (l *Loader) listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if !l.extractor.Supports(ext) || ext == "" {
			return nil
		}
		if len(l.opts.Extensions) > 0 && !extensionAllowed(ext, l.opts.Extensions) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
