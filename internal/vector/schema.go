package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// SchemaClient is the subset of weaviate schema operations EnsureSchema needs.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema creates the DocumentChunk class if absent and backfills any
// missing properties on an existing class. Vectorization is "none": vectors
// are produced by the embedding client, never by weaviate modules.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	className := "DocumentChunk"
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "documentId",
			DataType: []string{"string"}, // UUID, exact match only
		},
		{
			Name:     "ownerId",
			DataType: []string{"string"}, // partition key, exact match only
		},
		{
			Name:     "chunkIndex",
			DataType: []string{"int"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "An embedded chunk of a user document",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existing := make(map[string]bool)
	for _, p := range class.Properties {
		existing[p.Name] = true
	}

	for _, p := range properties {
		if !existing[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}

	return nil
}
