package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
	// ErrSystemTemplate is returned when attempting to modify or delete a
	// system template.
	ErrSystemTemplate = errors.New("system templates cannot be modified")
)

// TemplateStore defines the interface for template storage operations.
type TemplateStore interface {
	// List returns all templates, system templates first, oldest first within
	// each group.
	List(ctx context.Context) ([]*TemplateRecord, error)
	// GetByID gets a template by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*TemplateRecord, error)
	// Create inserts a new template. Generates a UUID if the ID is empty.
	Create(ctx context.Context, template *TemplateRecord) error
	// Fork clones an existing template. Returns ErrNotFound if the source
	// does not exist.
	Fork(ctx context.Context, id, newName string) (*TemplateRecord, error)
	// Update updates a template's name, subtitle, description, and metrics.
	// Returns ErrSystemTemplate for system templates.
	Update(ctx context.Context, template *TemplateRecord) error
	// Delete deletes a template. Returns ErrSystemTemplate for system
	// templates and ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

// TemplateRepo provides methods for template operations.
// It implements the TemplateStore interface.
type TemplateRepo struct {
	db *sql.DB
}

// NewTemplateRepo creates a new TemplateRepo.
func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

// parseTimestamp parses a SQLite DATETIME value.
func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", value)
	if err == nil {
		return t, nil
	}
	// SQLite might use a different format
	t, err = time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return t, nil
}

func scanTemplate(scan func(dest ...any) error) (*TemplateRecord, error) {
	var template TemplateRecord
	var metricsJSON string
	var forkedFromID sql.NullString
	var createdAtStr, updatedAtStr string

	err := scan(&template.ID, &template.Name, &template.Subtitle, &template.Description,
		&metricsJSON, &template.IsSystem, &forkedFromID, &createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metricsJSON), &template.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode template metrics: %w", err)
	}
	if template.Metrics == nil {
		template.Metrics = []TemplateMetric{}
	}
	template.ForkedFromID = forkedFromID.String

	if template.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return nil, err
	}
	if template.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return nil, err
	}

	return &template, nil
}

const templateColumns = "id, name, subtitle, description, metrics, is_system, forked_from_id, created_at, updated_at"

// List returns all templates, system templates first, oldest first within
// each group.
func (r *TemplateRepo) List(ctx context.Context) ([]*TemplateRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+templateColumns+" FROM templates ORDER BY is_system DESC, created_at ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	templates := []*TemplateRecord{}
	for rows.Next() {
		template, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, template)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate templates: %w", err)
	}

	return templates, nil
}

// GetByID gets a template by its ID. Returns ErrNotFound if not found.
func (r *TemplateRepo) GetByID(ctx context.Context, id string) (*TemplateRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+templateColumns+" FROM templates WHERE id = ?", id,
	)
	template, err := scanTemplate(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query template: %w", err)
	}
	return template, nil
}

// Create inserts a new template. Generates a UUID if the ID is empty.
func (r *TemplateRepo) Create(ctx context.Context, template *TemplateRecord) error {
	if template.ID == "" {
		template.ID = uuid.New().String()
	}
	if template.Metrics == nil {
		template.Metrics = []TemplateMetric{}
	}
	metricsJSON, err := json.Marshal(template.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode template metrics: %w", err)
	}

	var forkedFromID any
	if template.ForkedFromID != "" {
		forkedFromID = template.ForkedFromID
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO templates (id, name, subtitle, description, metrics, is_system, forked_from_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		template.ID, template.Name, template.Subtitle, template.Description,
		string(metricsJSON), template.IsSystem, forkedFromID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}

	return nil
}

// Fork clones an existing template. The clone is never a system template
// and records the source template's ID. If newName is empty the clone is
// named "<source name> (Copy)".
func (r *TemplateRepo) Fork(ctx context.Context, id, newName string) (*TemplateRecord, error) {
	source, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if newName == "" {
		newName = source.Name + " (Copy)"
	}
	forked := &TemplateRecord{
		Name:         newName,
		Subtitle:     source.Subtitle,
		Description:  source.Description,
		Metrics:      append([]TemplateMetric(nil), source.Metrics...),
		IsSystem:     false,
		ForkedFromID: source.ID,
	}
	if err := r.Create(ctx, forked); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, forked.ID)
}

// Update updates a template's name, subtitle, description, and metrics.
// Returns ErrSystemTemplate for system templates.
func (r *TemplateRepo) Update(ctx context.Context, template *TemplateRecord) error {
	existing, err := r.GetByID(ctx, template.ID)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemTemplate
	}

	if template.Metrics == nil {
		template.Metrics = []TemplateMetric{}
	}
	metricsJSON, err := json.Marshal(template.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode template metrics: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE templates SET name = ?, subtitle = ?, description = ?, metrics = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		template.Name, template.Subtitle, template.Description, string(metricsJSON), template.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}

	return nil
}

// Delete deletes a template. Returns ErrSystemTemplate for system
// templates and ErrNotFound if it does not exist.
func (r *TemplateRepo) Delete(ctx context.Context, id string) error {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemTemplate
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	return nil
}
