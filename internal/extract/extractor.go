// Package extract turns exported note files into text the normalizer can read.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/mindline/internal/models"
)

// ErrUnsupported is returned for file extensions no extractor handles.
var ErrUnsupported = errors.New("unsupported file type")

// Text is the extracted body of a file and how it is encoded.
type Text struct {
	Body   string
	Format models.ContentFormat
}

// Extractor extracts text from note exports.
type Extractor struct {
	maxBytes int64
}

// DefaultMaxBytes caps the size of a file the extractor will read.
const DefaultMaxBytes = 32 << 20

// NewExtractor returns an Extractor that refuses files larger than maxBytes.
// maxBytes <= 0 uses DefaultMaxBytes.
func NewExtractor(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{maxBytes: maxBytes}
}

var formats = map[string]models.ContentFormat{
	".txt":      models.FormatPlain,
	".text":     models.FormatPlain,
	".rst":      models.FormatPlain,
	".md":       models.FormatMarkdown,
	".markdown": models.FormatMarkdown,
	".html":     models.FormatHTML,
	".htm":      models.FormatHTML,
	".pdf":      models.FormatPlain,
	".docx":     models.FormatPlain,
	".odt":      models.FormatPlain,
	".rtf":      models.FormatPlain,
}

// Supported reports whether path has an extension the extractor reads.
func (e *Extractor) Supported(path string) bool {
	_, ok := formats[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract reads the file at path and returns its text.
func (e *Extractor) Extract(path string) (Text, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Text{}, fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > e.maxBytes {
		return Text{}, fmt.Errorf("%s is %d bytes, limit is %d", filepath.Base(path), info.Size(), e.maxBytes)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Text{}, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from content based on ext, which includes the
// leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (Text, error) {
	format, ok := formats[ext]
	if !ok {
		return Text{}, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	var (
		body string
		err  error
	)
	switch ext {
	case ".pdf":
		body, err = extractPDF(content)
	case ".docx":
		body, err = extractDOCX(content)
	case ".odt", ".rtf":
		body, err = extractWithCat(content, ext)
	default:
		body, err = extractPlain(content)
	}
	if err != nil {
		return Text{}, err
	}
	return Text{Body: body, Format: format}, nil
}
