package weaviate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"askdoc/internal/ingest"
	"askdoc/internal/retrieval"
)

const chunkClass = "DocumentChunk"

// Every outbound weaviate call gets its own timeout budget; abandoning
// callers don't cancel in-flight work beyond this.
const callTimeout = 10 * time.Second

// fallbackScore is a sentinel, not a measured similarity: chunks served by
// the availability fallback carry it so callers can still rank real matches
// above them.
const fallbackScore = 0.5

var ErrDimensionMismatch = errors.New("vector dimension does not match store dimension")

// DocumentLister scopes retrieval: only chunks of the owner's completed
// documents are ever candidates.
type DocumentLister interface {
	CompletedDocumentIDs(ctx context.Context, ownerID string) ([]string, error)
}

type Store struct {
	client    *weaviate.Client
	docs      DocumentLister
	dimension int
}

func NewStore(client *weaviate.Client, docs DocumentLister, dimension int) *Store {
	return &Store{client: client, docs: docs, dimension: dimension}
}

// UpsertChunks writes a document's chunks with their vectors in one batch.
// Chunk ids are freshly generated per run, so concurrent ingestions never
// contend on the same rows.
func (s *Store) UpsertChunks(ctx context.Context, documentID string, chunks []ingest.Chunk) error {
	objects := make([]*models.Object, len(chunks))
	for i, chunk := range chunks {
		if len(chunk.Vector) != s.dimension {
			return fmt.Errorf("chunk %d has dimension %d, store expects %d: %w",
				chunk.Index, len(chunk.Vector), s.dimension, ErrDimensionMismatch)
		}
		objects[i] = &models.Object{
			Class: chunkClass,
			Properties: map[string]interface{}{
				"content":    chunk.Content,
				"documentId": documentID,
				"ownerId":    chunk.OwnerID,
				"chunkIndex": chunk.Index,
			},
			Vector: models.C11yVector(chunk.Vector),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(callCtx)
	if err != nil {
		return err
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert failed: %s", obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// SimilaritySearch returns the owner's nearest chunks in descending
// similarity. When the similarity query errors or matches nothing, it falls
// back to serving up to topK of the owner's chunks in stored order so the
// synthesizer always receives some context when a completed document exists.
// An owner with zero completed documents gets an empty result, which is a
// normal outcome.
func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, ownerID string, threshold float64, topK int) ([]retrieval.RetrievalResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, store expects %d: %w",
			len(vector), s.dimension, ErrDimensionMismatch)
	}

	completedIDs, err := s.docs.CompletedDocumentIDs(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(completedIDs) == 0 {
		return nil, nil
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector).
		WithCertainty(float32(threshold))

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "documentId"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res, err := s.client.GraphQL().Get().
		WithClassName(chunkClass).
		WithNearVector(nearVector).
		WithWhere(ownerScope(ownerID, completedIDs)).
		WithLimit(topK).
		WithFields(fields...).
		Do(callCtx)
	if err != nil {
		slog.WarnContext(ctx, "similarity search failed, using fallback", "error", err, "owner_id", ownerID)
		return s.fallback(ctx, ownerID, completedIDs, topK)
	}
	if len(res.Errors) > 0 {
		slog.WarnContext(ctx, "similarity search returned errors, using fallback", "errors", fmt.Sprintf("%v", res.Errors), "owner_id", ownerID)
		return s.fallback(ctx, ownerID, completedIDs, topK)
	}

	results := parseResults(res.Data, true)
	if len(results) == 0 {
		return s.fallback(ctx, ownerID, completedIDs, topK)
	}
	return results, nil
}

// fallback serves the owner's completed chunks in arbitrary stored order,
// trading precision for availability. A failure here is terminal.
func (s *Store) fallback(ctx context.Context, ownerID string, completedIDs []string, topK int) ([]retrieval.RetrievalResult, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "documentId"},
		{Name: "chunkIndex"},
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res, err := s.client.GraphQL().Get().
		WithClassName(chunkClass).
		WithWhere(ownerScope(ownerID, completedIDs)).
		WithLimit(topK).
		WithFields(fields...).
		Do(callCtx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	return parseResults(res.Data, false), nil
}

// ChunksByDocument lists a document's stored chunks, used by the document
// detail endpoint.
func (s *Store) ChunksByDocument(ctx context.Context, documentID string) ([]ingest.Chunk, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "documentId"},
		{Name: "ownerId"},
		{Name: "chunkIndex"},
	}

	where := filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.Equal).
		WithValueString(documentID)

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res, err := s.client.GraphQL().Get().
		WithClassName(chunkClass).
		WithWhere(where).
		WithLimit(1000).
		WithFields(fields...).
		Do(callCtx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var chunks []ingest.Chunk
	for _, props := range rawChunks(res.Data) {
		chunk := ingest.Chunk{}
		if content, ok := props["content"].(string); ok {
			chunk.Content = content
		}
		if docID, ok := props["documentId"].(string); ok {
			chunk.DocumentID = docID
		}
		if owner, ok := props["ownerId"].(string); ok {
			chunk.OwnerID = owner
		}
		if idx, ok := props["chunkIndex"].(float64); ok {
			chunk.Index = int(idx)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// DeleteChunksByDocument removes a document's chunks; document deletion
// cascades here before the row is soft-deleted.
func (s *Store) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(chunkClass).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(callCtx)
	return err
}

func ownerScope(ownerID string, completedIDs []string) *filters.WhereBuilder {
	return filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{"ownerId"}).
				WithOperator(filters.Equal).
				WithValueString(ownerID),
			filters.Where().
				WithPath([]string{"documentId"}).
				WithOperator(filters.ContainsAny).
				WithValueString(completedIDs...),
		})
}

func rawChunks(data map[string]models.JSONObject) []map[string]interface{} {
	var out []map[string]interface{}
	if get, ok := data["Get"].(map[string]interface{}); ok {
		if items, ok := get[chunkClass].([]interface{}); ok {
			for _, item := range items {
				if props, ok := item.(map[string]interface{}); ok {
					out = append(out, props)
				}
			}
		}
	}
	return out
}

func parseResults(data map[string]models.JSONObject, scored bool) []retrieval.RetrievalResult {
	var results []retrieval.RetrievalResult
	for _, props := range rawChunks(data) {
		result := retrieval.RetrievalResult{Score: fallbackScore}

		if content, ok := props["content"].(string); ok {
			result.Content = content
		}
		if docID, ok := props["documentId"].(string); ok {
			result.DocumentID = docID
		}
		if idx, ok := props["chunkIndex"].(float64); ok {
			result.ChunkIndex = int(idx)
		}
		if scored {
			if additional, ok := props["_additional"].(map[string]interface{}); ok {
				if certainty, ok := additional["certainty"].(float64); ok {
					result.Score = float32(certainty)
				}
			}
		}

		results = append(results, result)
	}
	return results
}
