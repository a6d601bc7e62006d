package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lewtec/roteiro/internal/domain"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// FingerprintRepository implements domain.FingerprintRepository on sqlite
type FingerprintRepository struct {
	db DBTX
}

// NewFingerprintRepository creates a new FingerprintRepository
func NewFingerprintRepository(db *sql.DB) *FingerprintRepository {
	return &FingerprintRepository{db: db}
}

// NewFingerprintRepositoryWithTx creates a new FingerprintRepository bound to a transaction
func NewFingerprintRepositoryWithTx(tx *sql.Tx) *FingerprintRepository {
	return &FingerprintRepository{db: tx}
}

// Contains reports whether the hash was committed. Unseen hashes are not an error.
func (r *FingerprintRepository) Contains(ctx context.Context, hash string) (bool, error) {
	var found int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM fingerprints WHERE hash = ? LIMIT 1", hash).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("while checking fingerprint %s: %w", hash, err)
	}
	return true, nil
}

// Record inserts the fingerprint or overwrites term and timestamp of an existing one
func (r *FingerprintRepository) Record(ctx context.Context, fp domain.Fingerprint) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO fingerprints (hash, term, acquired_at) VALUES (?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET term = excluded.term, acquired_at = excluded.acquired_at`,
		fp.Hash, fp.Term, formatTime(fp.AcquiredAt))
	if err != nil {
		return fmt.Errorf("while recording fingerprint %s: %w", fp.Hash, err)
	}
	return nil
}

// RecordIfAbsent inserts the fingerprint when the hash is unseen.
// It reports false when another writer committed the hash first.
func (r *FingerprintRepository) RecordIfAbsent(ctx context.Context, fp domain.Fingerprint) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO fingerprints (hash, term, acquired_at) VALUES (?, ?, ?) ON CONFLICT(hash) DO NOTHING",
		fp.Hash, fp.Term, formatTime(fp.AcquiredAt))
	if err != nil {
		return false, fmt.Errorf("while recording fingerprint %s: %w", fp.Hash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get retrieves a fingerprint by hash, nil when it does not exist
func (r *FingerprintRepository) Get(ctx context.Context, hash string) (*domain.Fingerprint, error) {
	row := r.db.QueryRowContext(ctx, "SELECT hash, term, acquired_at FROM fingerprints WHERE hash = ?", hash)
	fp, err := scanFingerprint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fp, nil
}

// List retrieves all fingerprints, newest first
func (r *FingerprintRepository) List(ctx context.Context) ([]*domain.Fingerprint, error) {
	return r.query(ctx, "SELECT hash, term, acquired_at FROM fingerprints ORDER BY acquired_at DESC, hash")
}

// ListByTerm retrieves the fingerprints acquired for a term, newest first
func (r *FingerprintRepository) ListByTerm(ctx context.Context, term string) ([]*domain.Fingerprint, error) {
	return r.query(ctx, "SELECT hash, term, acquired_at FROM fingerprints WHERE term = ? ORDER BY acquired_at DESC, hash", term)
}

// Count returns the total number of fingerprints
func (r *FingerprintRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fingerprints").Scan(&count)
	return count, err
}

func (r *FingerprintRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Fingerprint, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*domain.Fingerprint{}
	for rows.Next() {
		fp, err := scanFingerprint(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, fp)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFingerprint(s scanner) (*domain.Fingerprint, error) {
	var fp domain.Fingerprint
	var acquiredAt string
	if err := s.Scan(&fp.Hash, &fp.Term, &acquiredAt); err != nil {
		return nil, err
	}
	t, err := parseTime(acquiredAt)
	if err != nil {
		return nil, fmt.Errorf("while parsing acquired_at of %s: %w", fp.Hash, err)
	}
	fp.AcquiredAt = t
	return &fp, nil
}

// timeLayout is fixed width so that text ordering matches chronological ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Verify that FingerprintRepository implements domain.FingerprintRepository
var _ domain.FingerprintRepository = (*FingerprintRepository)(nil)
