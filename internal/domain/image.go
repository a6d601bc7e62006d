package domain

import (
	"context"
	"time"
)

// Fingerprint is the content hash of an image accepted into a destination folder
type Fingerprint struct {
	Hash       string
	Term       string
	AcquiredAt time.Time
}

// Candidate is a raw image buffer fetched from a source, not yet accepted or rejected
type Candidate struct {
	Filename string
	Data     []byte
}

// FingerprintRepository defines the interface for the deduplication ledger
type FingerprintRepository interface {
	// Contains reports whether a fingerprint with the given hash was committed
	Contains(ctx context.Context, hash string) (bool, error)

	// Record inserts or overwrites the fingerprint (last writer wins)
	Record(ctx context.Context, fp Fingerprint) error

	// RecordIfAbsent inserts the fingerprint only when the hash is unseen and
	// reports whether this call inserted it
	RecordIfAbsent(ctx context.Context, fp Fingerprint) (bool, error)

	// Get retrieves a fingerprint by hash
	Get(ctx context.Context, hash string) (*Fingerprint, error)

	// List retrieves all fingerprints, newest first
	List(ctx context.Context) ([]*Fingerprint, error)

	// ListByTerm retrieves the fingerprints acquired for a search term
	ListByTerm(ctx context.Context, term string) ([]*Fingerprint, error)

	// Count returns the total number of fingerprints
	Count(ctx context.Context) (int64, error)
}
