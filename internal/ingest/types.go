package ingest

import (
	"context"
	"errors"
)

// Document lifecycle. A document's chunks exist iff it is completed; there is
// no transition out of completed or error (re-ingestion is a new document).
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyContent      = errors.New("document contains no extractable text")
	ErrNoChunks          = errors.New("document text produced no chunks")
)

// Chunk is the unit of embedding and retrieval: one bounded segment of a
// document's text plus its vector. Index is the chunk's 0-based position
// within the document.
type Chunk struct {
	DocumentID string
	OwnerID    string
	Index      int
	Content    string
	Vector     []float32
}

// Task identifies one document to drive through the pipeline.
type Task struct {
	DocumentID string
	OwnerID    string
	Path       string
}

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id, status string) error
}

type Downloader interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStore interface {
	UpsertChunks(ctx context.Context, documentID string, chunks []Chunk) error
}

type Extractor interface {
	Extract(path string, data []byte) (string, error)
}
