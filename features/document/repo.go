package document

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (owner_id, name, storage_path, status) VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, doc.OwnerID, doc.Name, doc.StoragePath, doc.Status).
		Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, ownerID, id string) (*Document, error) {
	doc := &Document{}
	query := `SELECT id, owner_id, name, storage_path, status, created_at, updated_at FROM documents WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, id, ownerID).
		Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.StoragePath, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *PostgresRepo) List(ctx context.Context, ownerID string) ([]Document, error) {
	query := `SELECT id, owner_id, name, storage_path, status, created_at, updated_at FROM documents WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Name, &d.StoragePath, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateStatus is idempotent and last-write-wins; the ingestion pipeline is
// the only caller.
func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, ownerID, id string) error {
	query := `UPDATE documents SET deleted_at = NOW() WHERE id = $1 AND owner_id = $2`
	_, err := r.db.ExecContext(ctx, query, id, ownerID)
	return err
}

// CompletedDocumentIDs scopes retrieval: only these documents' chunks are
// candidates for a query.
func (r *PostgresRepo) CompletedDocumentIDs(ctx context.Context, ownerID string) ([]string, error) {
	query := `SELECT id FROM documents WHERE owner_id = $1 AND status = 'completed' AND deleted_at IS NULL`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
