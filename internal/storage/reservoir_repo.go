package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// ReservoirStore defines the interface for reservoir document storage
// operations.
type ReservoirStore interface {
	// List returns all reservoir documents, newest first.
	List(ctx context.Context) ([]*ReservoirDocumentRecord, error)
	// GetByID gets a document by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ReservoirDocumentRecord, error)
	// GetByHash gets a document by its content hash. Returns ErrNotFound if
	// not found. Used for content deduplication before insert.
	GetByHash(ctx context.Context, contentHash string) (*ReservoirDocumentRecord, error)
	// Insert inserts a new document. Generates a UUID if the ID is empty.
	Insert(ctx context.Context, doc *ReservoirDocumentRecord) error
	// Delete deletes a document. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

// ReservoirRepo provides methods for reservoir document operations.
// It implements the ReservoirStore interface.
type ReservoirRepo struct {
	db *sql.DB
}

// NewReservoirRepo creates a new ReservoirRepo.
func NewReservoirRepo(db *sql.DB) *ReservoirRepo {
	return &ReservoirRepo{db: db}
}

const reservoirColumns = "id, filename, file_type, file_size, file_size_bytes, content_hash, content, created_at"

func scanReservoirDocument(scan func(dest ...any) error) (*ReservoirDocumentRecord, error) {
	var doc ReservoirDocumentRecord
	var createdAtStr string

	err := scan(&doc.ID, &doc.Filename, &doc.FileType, &doc.FileSize,
		&doc.FileSizeBytes, &doc.ContentHash, &doc.Content, &createdAtStr)
	if err != nil {
		return nil, err
	}

	if doc.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return nil, err
	}

	return &doc, nil
}

// List returns all reservoir documents, newest first.
func (r *ReservoirRepo) List(ctx context.Context) ([]*ReservoirDocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+reservoirColumns+" FROM reservoir_documents ORDER BY created_at DESC, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservoir documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := []*ReservoirDocumentRecord{}
	for rows.Next() {
		doc, err := scanReservoirDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservoir document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservoir documents: %w", err)
	}

	return docs, nil
}

// GetByID gets a document by its ID. Returns ErrNotFound if not found.
func (r *ReservoirRepo) GetByID(ctx context.Context, id string) (*ReservoirDocumentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+reservoirColumns+" FROM reservoir_documents WHERE id = ?", id,
	)
	doc, err := scanReservoirDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reservoir document: %w", err)
	}
	return doc, nil
}

// GetByHash gets a document by its content hash. Returns ErrNotFound if
// not found.
func (r *ReservoirRepo) GetByHash(ctx context.Context, contentHash string) (*ReservoirDocumentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+reservoirColumns+" FROM reservoir_documents WHERE content_hash = ?", contentHash,
	)
	doc, err := scanReservoirDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reservoir document by hash: %w", err)
	}
	return doc, nil
}

// Insert inserts a new document. Generates a UUID if the ID is empty.
func (r *ReservoirRepo) Insert(ctx context.Context, doc *ReservoirDocumentRecord) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reservoir_documents (id, filename, file_type, file_size, file_size_bytes, content_hash, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.FileType, doc.FileSize, doc.FileSizeBytes, doc.ContentHash, doc.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservoir document: %w", err)
	}

	return nil
}

// Delete deletes a document. Returns ErrNotFound if it does not exist.
func (r *ReservoirRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM reservoir_documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete reservoir document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
