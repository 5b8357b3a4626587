package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

type MockSchemaClient struct {
	mock.Mock
}

func (m *MockSchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	args := m.Called(ctx, className)
	return args.Bool(0), args.Error(1)
}

func (m *MockSchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	return m.Called(ctx, class).Error(0)
}

func (m *MockSchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	args := m.Called(ctx, className)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Class), args.Error(1)
}

func (m *MockSchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return m.Called(ctx, className, property).Error(0)
}

func TestEnsureSchema_CreatesClassWhenAbsent(t *testing.T) {
	client := new(MockSchemaClient)
	client.On("ClassExists", mock.Anything, "DocumentChunk").Return(false, nil)

	var created *models.Class
	client.On("CreateClass", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*models.Class)
	}).Return(nil)

	err := EnsureSchema(context.Background(), client)
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "DocumentChunk", created.Class)
	assert.Equal(t, "none", created.Vectorizer)

	names := make([]string, len(created.Properties))
	for i, p := range created.Properties {
		names[i] = p.Name
	}
	assert.ElementsMatch(t, []string{"content", "documentId", "ownerId", "chunkIndex"}, names)
}

func TestEnsureSchema_BackfillsMissingProperties(t *testing.T) {
	client := new(MockSchemaClient)
	client.On("ClassExists", mock.Anything, "DocumentChunk").Return(true, nil)
	client.On("GetClass", mock.Anything, "DocumentChunk").Return(&models.Class{
		Class: "DocumentChunk",
		Properties: []*models.Property{
			{Name: "content"},
			{Name: "documentId"},
			{Name: "chunkIndex"},
		},
	}, nil)

	var added []string
	client.On("AddProperty", mock.Anything, "DocumentChunk", mock.Anything).
		Run(func(args mock.Arguments) {
			added = append(added, args.Get(2).(*models.Property).Name)
		}).Return(nil)

	err := EnsureSchema(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, []string{"ownerId"}, added)
}

func TestEnsureSchema_NoopWhenComplete(t *testing.T) {
	client := new(MockSchemaClient)
	client.On("ClassExists", mock.Anything, "DocumentChunk").Return(true, nil)
	client.On("GetClass", mock.Anything, "DocumentChunk").Return(&models.Class{
		Class: "DocumentChunk",
		Properties: []*models.Property{
			{Name: "content"}, {Name: "documentId"}, {Name: "ownerId"}, {Name: "chunkIndex"},
		},
	}, nil)

	err := EnsureSchema(context.Background(), client)
	require.NoError(t, err)
	client.AssertNotCalled(t, "AddProperty", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureSchema_ExistsCheckErrorPropagates(t *testing.T) {
	client := new(MockSchemaClient)
	boom := errors.New("weaviate unreachable")
	client.On("ClassExists", mock.Anything, "DocumentChunk").Return(false, boom)

	err := EnsureSchema(context.Background(), client)
	assert.ErrorIs(t, err, boom)
}
