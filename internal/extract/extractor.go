// Package extract turns corpus files into plain text the loader can split.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions with no registered reader.
var ErrUnsupportedFormat = errors.New("unsupported document format")

type extractFunc func(content []byte) (string, error)

var readers = map[string]extractFunc{
	".md":       extractPlain,
	".markdown": extractPlain,
	".txt":      extractPlain,
	".rst":      extractPlain,
	"":          extractPlain,
	".pdf":      extractPDF,
	".docx":     extractDOCX,
	".xlsx":     extractExcel,
}

// Extractor extracts plain text from documentation files. Structured formats
// (DOCX headings, spreadsheet sheets) are rendered as markdown headings so the
// heading chunker can split them.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !e.Supports(ext) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on ext, which includes the leading dot.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := readers[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return fn(content)
}

// Supports reports whether ext has a reader.
func (e *Extractor) Supports(ext string) bool {
	_, ok := readers[strings.ToLower(ext)]
	return ok
}

// Extensions lists the supported extensions in sorted order.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(readers))
	for ext := range readers {
		if ext != "" {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}
