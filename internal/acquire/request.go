package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lewtec/roteiro/internal/domain"
)

// ErrInvalidRequest is returned for requests without a term or with a non-positive target
var ErrInvalidRequest = errors.New("invalid acquisition request")

// Tier is a named minimum-pixel-dimension policy
type Tier string

const (
	TierNormal Tier = "normal"
	TierHigh   Tier = "high"
)

// ParseTier accepts "normal" and "high" (case insensitive); empty means normal
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(TierNormal):
		return TierNormal, nil
	case string(TierHigh):
		return TierHigh, nil
	default:
		return "", fmt.Errorf("unknown quality tier %q (use normal or high)", s)
	}
}

// Request describes one acquisition run
type Request struct {
	Term        string
	Target      int
	Tier        Tier
	Destination string
}

// Validate checks the request and fills the default tier
func (r *Request) Validate() error {
	r.Term = strings.TrimSpace(r.Term)
	if r.Term == "" {
		return fmt.Errorf("%w: search term is empty", ErrInvalidRequest)
	}
	if r.Target <= 0 {
		return fmt.Errorf("%w: target count must be positive, got %d", ErrInvalidRequest, r.Target)
	}
	tier, err := ParseTier(string(r.Tier))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	r.Tier = tier
	return nil
}

// Query is what a Source is asked for
type Query struct {
	Term  string
	Count int
	Tier  Tier
}

// Source fetches raw candidates for a term. It may return fewer than asked.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]domain.Candidate, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, q Query) ([]domain.Candidate, error)

// Fetch calls f
func (f SourceFunc) Fetch(ctx context.Context, q Query) ([]domain.Candidate, error) {
	return f(ctx, q)
}

// FingerprintStore is the part of the deduplication ledger the loop needs
type FingerprintStore interface {
	Contains(ctx context.Context, hash string) (bool, error)
	RecordIfAbsent(ctx context.Context, fp domain.Fingerprint) (bool, error)
}

// Outcome is the terminal state of a run
type Outcome int

const (
	OutcomeFailure Outcome = iota
	OutcomePartial
	OutcomeSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	default:
		return "failure"
	}
}

// Result summarises a finished run
type Result struct {
	Outcome    Outcome
	Term       string
	Target     int
	Accepted   int
	Candidates int
	Duplicates int
	Rejected   int
	Failed     int
	// Files are the accepted file names, relative to Dir, in acceptance order
	Files  []string
	Hashes []string
	Dir    string
	// Cancelled is set when the context ended the run early
	Cancelled bool
	// Err holds the request, destination or fetch error when there was one
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func outcomeFor(accepted, target int) Outcome {
	switch {
	case accepted <= 0:
		return OutcomeFailure
	case accepted >= target:
		return OutcomeSuccess
	default:
		return OutcomePartial
	}
}
