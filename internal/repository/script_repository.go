package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lewtec/roteiro/internal/domain"
)

// ScriptRepository implements domain.ScriptRepository on sqlite
type ScriptRepository struct {
	db DBTX
}

// NewScriptRepository creates a new ScriptRepository
func NewScriptRepository(db *sql.DB) *ScriptRepository {
	return &ScriptRepository{db: db}
}

// NewScriptRepositoryWithTx creates a new ScriptRepository bound to a transaction
func NewScriptRepositoryWithTx(tx *sql.Tx) *ScriptRepository {
	return &ScriptRepository{db: tx}
}

// Create stores a new script
func (r *ScriptRepository) Create(ctx context.Context, title, content string) (*domain.Script, error) {
	return r.CreateAt(ctx, title, content, time.Now())
}

// CreateAt stores a new script with an explicit creation time
func (r *ScriptRepository) CreateAt(ctx context.Context, title, content string, createdAt time.Time) (*domain.Script, error) {
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.UTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO scripts (title, content, created_at) VALUES (?, ?, ?)",
		title, content, formatTime(createdAt))
	if err != nil {
		return nil, fmt.Errorf("while saving script %q: %w", title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Script{ID: id, Title: title, Content: content, CreatedAt: createdAt}, nil
}

// Get retrieves a script by ID, nil when it does not exist
func (r *ScriptRepository) Get(ctx context.Context, id int64) (*domain.Script, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, title, content, created_at FROM scripts WHERE id = ?", id)
	s, err := scanScript(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List retrieves all scripts, newest first
func (r *ScriptRepository) List(ctx context.Context) ([]*domain.Script, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, title, content, created_at FROM scripts ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*domain.Script{}
	for rows.Next() {
		s, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// Count returns the total number of scripts
func (r *ScriptRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scripts").Scan(&count)
	return count, err
}

// Delete removes a script by ID. Deleting a missing script is not an error.
func (r *ScriptRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM scripts WHERE id = ?", id)
	return err
}

func scanScript(s scanner) (*domain.Script, error) {
	var script domain.Script
	var createdAt string
	if err := s.Scan(&script.ID, &script.Title, &script.Content, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("while parsing created_at of script %d: %w", script.ID, err)
	}
	script.CreatedAt = t
	return &script, nil
}

// Verify that ScriptRepository implements domain.ScriptRepository
var _ domain.ScriptRepository = (*ScriptRepository)(nil)
