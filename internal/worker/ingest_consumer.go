package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"askdoc/internal/ingest"
	"askdoc/internal/middleware"
)

type Ingestor interface {
	Run(ctx context.Context, task ingest.Task) error
}

// IngestConsumer consumes ingest.task messages and drives each document
// through the orchestrator. Returning an error requeues the message;
// undecodable messages are poison pills and are dropped.
type IngestConsumer struct {
	ingestor Ingestor
	timeout  time.Duration
}

func NewIngestConsumer(ingestor Ingestor) *IngestConsumer {
	return &IngestConsumer{
		ingestor: ingestor,
		timeout:  10 * time.Minute,
	}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestTaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.DocumentID == "" || payload.OwnerID == "" {
		slog.Error("poison pill: missing document or owner id")
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	runCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	task := ingest.Task{
		DocumentID: payload.DocumentID,
		OwnerID:    payload.OwnerID,
		Path:       payload.Path,
	}

	if err := h.ingestor.Run(runCtx, task); err != nil {
		slog.ErrorContext(ctx, "ingestion failed", "error", err, "document_id", payload.DocumentID)
		// The orchestrator already marked the document as errored; the
		// pipeline is terminal for this document, so don't requeue.
		return nil
	}

	slog.InfoContext(ctx, "ingestion finished", "document_id", payload.DocumentID)
	return nil
}
