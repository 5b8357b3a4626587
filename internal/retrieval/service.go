package retrieval

import (
	"context"
	"log/slog"
	"time"
)

// NoContextAnswer is returned when the caller has no retrievable content.
// It is a normal outcome, not an error, and the synthesizer is never invoked
// for it.
const NoContextAnswer = "I couldn't find any relevant information in your documents to answer that question."

// RetrievalResult is a transient match from the vector store. It is never
// persisted; it only carries a chunk from retrieval into synthesis.
type RetrievalResult struct {
	DocumentID string
	ChunkIndex int
	Content    string
	Score      float32
}

type Citation struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	SimilaritySearch(ctx context.Context, vector []float32, ownerID string, threshold float64, topK int) ([]RetrievalResult, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, query string, contexts []string) (string, error)
}

type Service struct {
	embedder  Embedder
	store     VectorStore
	synth     Synthesizer
	logger    *QueryLogger
	threshold float64
	topK      int
}

func NewService(e Embedder, s VectorStore, syn Synthesizer, l *QueryLogger, threshold float64, topK int) *Service {
	if threshold == 0 {
		threshold = 0.1
	}
	if topK <= 0 {
		topK = 5
	}
	return &Service{embedder: e, store: s, synth: syn, logger: l, threshold: threshold, topK: topK}
}

// Ask answers a natural-language question from the owner's completed
// documents: embed the question, retrieve candidate chunks scoped to the
// owner, then synthesize a grounded answer with citations.
func (s *Service) Ask(ctx context.Context, ownerID, question string) (*Answer, error) {
	start := time.Now()
	var answer *Answer
	var err error

	defer func() {
		if s.logger != nil && err == nil {
			entry := QueryLogEntry{
				Query:    question,
				Duration: time.Since(start),
			}
			if answer != nil {
				entry.NumResults = len(answer.Citations)
			}
			s.logger.Log(entry)
		}
	}()

	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	results, err := s.store.SimilaritySearch(ctx, vec, ownerID, s.threshold, s.topK)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		slog.InfoContext(ctx, "no retrievable context for query", "owner_id", ownerID)
		answer = &Answer{Text: NoContextAnswer, Citations: []Citation{}}
		return answer, nil
	}

	contexts := make([]string, len(results))
	citations := make([]Citation, len(results))
	for i, r := range results {
		contexts[i] = r.Content
		citations[i] = Citation{DocumentID: r.DocumentID, ChunkIndex: r.ChunkIndex, Score: r.Score}
	}

	var answerText string
	answerText, err = s.synth.Synthesize(ctx, question, contexts)
	if err != nil {
		return nil, err
	}

	answer = &Answer{Text: answerText, Citations: citations}
	return answer, nil
}
