package document

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"askdoc/internal/ingest"
	"askdoc/internal/middleware"
)

// Document is one uploaded file owned by exactly one user. Its status is
// mutated only by the ingestion pipeline; chunks exist iff it is completed.
type Document struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"-"`
	Name        string    `json:"name"`
	StoragePath string    `json:"-"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, ownerID, id string) (*Document, error)
	List(ctx context.Context, ownerID string) ([]Document, error)
	UpdateStatus(ctx context.Context, id, status string) error
	SoftDelete(ctx context.Context, ownerID, id string) error
	CompletedDocumentIDs(ctx context.Context, ownerID string) ([]string, error)
}

type ChunkStore interface {
	ChunksByDocument(ctx context.Context, documentID string) ([]ingest.Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo       Repository
	pub        EventPublisher
	chunkStore ChunkStore
}

func NewService(repo Repository, pub EventPublisher, chunkStore ChunkStore) *Service {
	return &Service{repo: repo, pub: pub, chunkStore: chunkStore}
}

// Create registers an uploaded file as a pending document and queues it for
// ingestion. The worker owns every status transition from here on.
func (s *Service) Create(ctx context.Context, ownerID, name, storagePath string) (*Document, error) {
	doc := &Document{
		OwnerID:     ownerID,
		Name:        name,
		StoragePath: storagePath,
		Status:      ingest.StatusPending,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"document_id":    doc.ID,
		"owner_id":       ownerID,
		"path":           storagePath,
		"correlation_id": middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish("ingest.task", payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest.task event", "error", err, "document_id", doc.ID)
		return nil, err
	}
	slog.InfoContext(ctx, "published ingest.task event", "document_id", doc.ID, "name", name)

	return doc, nil
}

type Detail struct {
	Document
	Chunks      []ingest.Chunk `json:"chunks"`
	TotalChunks int            `json:"total_chunks"`
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (*Detail, error) {
	doc, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunkStore.ChunksByDocument(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch chunks", "error", err, "document_id", id)
		chunks = []ingest.Chunk{}
	}

	return &Detail{
		Document:    *doc,
		Chunks:      chunks,
		TotalChunks: len(chunks),
	}, nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]Document, error) {
	return s.repo.List(ctx, ownerID)
}

// Delete cascades: vectors first, then the document row.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.repo.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.chunkStore.DeleteChunksByDocument(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, ownerID, id)
}
