package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"askdoc/internal/text"
)

// Orchestrator drives a single document through extraction, chunking,
// embedding and storage, owning every status transition along the way.
type Orchestrator struct {
	statuses   StatusUpdater
	storage    Downloader
	extractor  Extractor
	embedder   Embedder
	store      VectorStore
	targetSize int
	overlap    int
}

func NewOrchestrator(st StatusUpdater, dl Downloader, ex Extractor, em Embedder, vs VectorStore, targetSize, overlap int) *Orchestrator {
	if targetSize <= 0 {
		targetSize = text.DefaultTargetSize
	}
	if overlap < 0 {
		overlap = text.DefaultOverlap
	}
	return &Orchestrator{
		statuses:   st,
		storage:    dl,
		extractor:  ex,
		embedder:   em,
		store:      vs,
		targetSize: targetSize,
		overlap:    overlap,
	}
}

// Run processes one document end to end. On any failure the document is
// marked error and the original cause is returned; a failed status write is
// logged but never masks that cause.
func (o *Orchestrator) Run(ctx context.Context, task Task) error {
	if err := o.statuses.UpdateStatus(ctx, task.DocumentID, StatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := o.process(ctx, task); err != nil {
		if statusErr := o.statuses.UpdateStatus(ctx, task.DocumentID, StatusError); statusErr != nil {
			slog.ErrorContext(ctx, "failed to mark document as errored", "error", statusErr, "document_id", task.DocumentID)
		}
		return err
	}

	if err := o.statuses.UpdateStatus(ctx, task.DocumentID, StatusCompleted); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	slog.InfoContext(ctx, "document ingested", "document_id", task.DocumentID)
	return nil
}

func (o *Orchestrator) process(ctx context.Context, task Task) error {
	raw, err := o.storage.Download(ctx, task.Path)
	if err != nil {
		return fmt.Errorf("download %s: %w", task.Path, err)
	}

	content, err := o.extractor.Extract(task.Path, raw)
	if err != nil {
		return err
	}

	pieces := text.Chunk(content, o.targetSize, o.overlap)
	if len(pieces) == 0 {
		return ErrNoChunks
	}

	// One batched call across the whole chunk list; the client slices it
	// into service-sized requests internally.
	vectors, err := o.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(pieces), err)
	}
	if len(vectors) != len(pieces) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(pieces), len(vectors))
	}

	chunks := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = Chunk{
			DocumentID: task.DocumentID,
			OwnerID:    task.OwnerID,
			Index:      i,
			Content:    piece,
			Vector:     vectors[i],
		}
	}

	if err := o.store.UpsertChunks(ctx, task.DocumentID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	return nil
}
