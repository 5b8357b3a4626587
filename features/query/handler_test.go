package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"askdoc/internal/middleware"
	"askdoc/internal/retrieval"
	"askdoc/internal/synthesis"
)

type MockAskService struct {
	mock.Mock
}

func (m *MockAskService) Ask(ctx context.Context, ownerID, question string) (*retrieval.Answer, error) {
	args := m.Called(ctx, ownerID, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retrieval.Answer), args.Error(1)
}

func askRequest(body string, ownerID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	if ownerID != "" {
		req = req.WithContext(middleware.WithOwner(req.Context(), ownerID))
	}
	return req
}

func TestAsk_Success(t *testing.T) {
	service := new(MockAskService)
	service.On("Ask", mock.Anything, "owner-1", "what is a cat?").Return(&retrieval.Answer{
		Text: "A cat is a mammal.",
		Citations: []retrieval.Citation{
			{DocumentID: "doc-1", ChunkIndex: 0, Score: 0.9},
		},
	}, nil)

	rec := httptest.NewRecorder()
	NewHandler(service).Ask(rec, askRequest(`{"question":"what is a cat?"}`, "owner-1"))

	assert.Equal(t, http.StatusOK, rec.Code)

	var answer retrieval.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "A cat is a mammal.", answer.Text)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "doc-1", answer.Citations[0].DocumentID)
	service.AssertExpectations(t)
}

func TestAsk_Unauthenticated(t *testing.T) {
	service := new(MockAskService)

	rec := httptest.NewRecorder()
	NewHandler(service).Ask(rec, askRequest(`{"question":"q"}`, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	service.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything)
}

func TestAsk_MissingQuestion(t *testing.T) {
	service := new(MockAskService)

	rec := httptest.NewRecorder()
	NewHandler(service).Ask(rec, askRequest(`{"question":"  "}`, "owner-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	service.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything)
}

func TestAsk_InvalidJSON(t *testing.T) {
	service := new(MockAskService)

	rec := httptest.NewRecorder()
	NewHandler(service).Ask(rec, askRequest(`{broken`, "owner-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAsk_ApologyWhenSynthesisExhausted(t *testing.T) {
	service := new(MockAskService)
	service.On("Ask", mock.Anything, "owner-1", "q").
		Return(nil, fmt.Errorf("%w after 3 attempts", synthesis.ErrExhausted))

	rec := httptest.NewRecorder()
	NewHandler(service).Ask(rec, askRequest(`{"question":"q"}`, "owner-1"))

	// Retry exhaustion degrades to an apology, not a 5xx.
	assert.Equal(t, http.StatusOK, rec.Code)

	var answer retrieval.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, ApologyAnswer, answer.Text)
	assert.Empty(t, answer.Citations)
}

func TestAsk_OtherErrorsAre500(t *testing.T) {
	service := new(MockAskService)
	service.On("Ask", mock.Anything, "owner-1", "q").Return(nil, errors.New("store down"))

	rec := httptest.NewRecorder()
	NewHandler(service).Ask(rec, askRequest(`{"question":"q"}`, "owner-1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
