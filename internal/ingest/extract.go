package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// PlainTextExtractor handles the text-native formats directly. PDF and DOCX
// are recognized uploads but their extraction is delegated to an external
// converter in production deployments; this default extractor rejects them
// so the document lands in the error state instead of embedding garbage.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(path string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md", ".markdown", ".csv", ".json":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s is not valid UTF-8: %w", ext, ErrEmptyContent)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			return "", ErrEmptyContent
		}
		return content, nil
	case ".pdf", ".docx":
		return "", fmt.Errorf("%s extraction not available without external converter: %w", ext, ErrUnsupportedFormat)
	default:
		return "", fmt.Errorf("%s: %w", ext, ErrUnsupportedFormat)
	}
}
