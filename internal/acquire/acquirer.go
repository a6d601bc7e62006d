// Package acquire fetches image candidates for a search term and keeps the
// ones that are new and large enough, recording every kept image in the
// fingerprint ledger so it is never downloaded twice.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/go-git/go-billy/v6"

	"github.com/lewtec/roteiro/internal/domain"
	"github.com/lewtec/roteiro/internal/i18n"
	"github.com/lewtec/roteiro/internal/metrics"
	"github.com/lewtec/roteiro/internal/storage"
)

const (
	DefaultMultiplier = 10
	DefaultHardCap    = 1000
)

// Progress checkpoints of a run
const (
	progressStart     = 10
	progressSearching = 20
	progressFetching  = 30
	progressFetched   = 50
	progressLoop      = 55
	progressLoopSpan  = 40
	progressLoopMax   = 95
)

// OverfetchCount is how many candidates to ask the source for
func OverfetchCount(target, multiplier, hardCap int) int {
	return min(target*multiplier, hardCap)
}

// OpenFunc opens the destination folder, falling back when it is unusable
type OpenFunc func(preferred string) (fs billy.Filesystem, dir string, fellBack bool, err error)

// Config holds the collaborators of an Acquirer
type Config struct {
	Source Source
	Store  FingerprintStore
	Filter *Filter
	// Messages localises event messages; nil leaves message IDs as they are
	Messages *i18n.Localizer
	// FallbackDir is used when the requested destination is unusable
	FallbackDir string
	// Open replaces the default osfs destination, mostly for tests
	Open       OpenFunc
	Multiplier int
	HardCap    int
	Now        func() time.Time
}

// Acquirer runs acquisitions against one source and one fingerprint ledger
type Acquirer struct {
	source      Source
	store       FingerprintStore
	filter      *Filter
	messages    *i18n.Localizer
	fallbackDir string
	open        OpenFunc
	multiplier  int
	hardCap     int
	now         func() time.Time
}

// New creates an Acquirer, filling defaults for unset options
func New(cfg Config) *Acquirer {
	a := &Acquirer{
		source:      cfg.Source,
		store:       cfg.Store,
		filter:      cfg.Filter,
		messages:    cfg.Messages,
		fallbackDir: cfg.FallbackDir,
		open:        cfg.Open,
		multiplier:  cfg.Multiplier,
		hardCap:     cfg.HardCap,
		now:         cfg.Now,
	}
	if a.filter == nil {
		a.filter = NewFilter()
	}
	if a.multiplier <= 0 {
		a.multiplier = DefaultMultiplier
	}
	if a.hardCap <= 0 {
		a.hardCap = DefaultHardCap
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.open == nil {
		fallback := a.fallbackDir
		a.open = func(preferred string) (billy.Filesystem, string, bool, error) {
			return storage.OpenDir(preferred, fallback)
		}
	}
	return a
}

// run carries the state of one Acquire call
type run struct {
	*Acquirer
	req      Request
	progress *progressReporter
	onLog    LogFunc
	result   *Result
}

func (r *run) log(level Level, kind Kind, data map[string]any) {
	emit(r.onLog, Event{
		Time:    r.now(),
		Level:   level,
		Kind:    kind,
		Message: r.messages.Localize("acquire."+string(kind), data),
		Fields:  data,
	})
}

// Acquire runs one acquisition. Progress is reported through onProgress and
// never regresses; human readable events go to onLog. Either sink may be nil.
// Acquire never panics and always reports 100 last.
func (a *Acquirer) Acquire(ctx context.Context, req Request, onProgress ProgressFunc, onLog LogFunc) (result Result) {
	r := &run{
		Acquirer: a,
		req:      req,
		progress: newProgressReporter(onProgress),
		onLog:    onLog,
		result:   &result,
	}
	result.Term = req.Term
	result.Target = req.Target
	result.StartedAt = a.now()

	defer func() {
		if p := recover(); p != nil {
			result.Err = fmt.Errorf("acquisition aborted: %v", p)
			result.Outcome = outcomeFor(result.Accepted, result.Target)
			r.log(LevelError, KindFailure, map[string]any{"Error": result.Err})
		}
		result.FinishedAt = a.now()
		metrics.AcquisitionsTotal.WithLabelValues(result.Outcome.String()).Inc()
		r.progress.finish()
	}()

	if err := r.req.Validate(); err != nil {
		result.Err = err
		result.Outcome = OutcomeFailure
		r.log(LevelError, KindInvalidRequest, map[string]any{"Error": err})
		return result
	}
	result.Term = r.req.Term

	if a.source == nil || a.store == nil {
		result.Err = errors.New("acquirer has no source or fingerprint store")
		result.Outcome = OutcomeFailure
		r.log(LevelError, KindFailure, map[string]any{"Error": result.Err})
		return result
	}

	fs, dir, fellBack, err := a.open(r.req.Destination)
	if err != nil {
		result.Err = fmt.Errorf("while opening destination: %w", err)
		result.Outcome = OutcomeFailure
		r.log(LevelError, KindDestinationFailed, map[string]any{"Error": err})
		return result
	}
	result.Dir = dir
	if fellBack {
		r.log(LevelWarning, KindDestinationFallback, map[string]any{"Preferred": r.req.Destination, "Dir": dir})
	}

	r.log(LevelInfo, KindStart, map[string]any{"Term": r.req.Term, "Target": r.req.Target})
	r.progress.report(progressStart)

	r.log(LevelInfo, KindSearch, map[string]any{"Term": r.req.Term})
	r.progress.report(progressSearching)

	count := OverfetchCount(r.req.Target, a.multiplier, a.hardCap)
	r.log(LevelInfo, KindOverfetch, map[string]any{"Count": count})
	r.log(LevelInfo, KindDownload, nil)
	r.progress.report(progressFetching)

	candidates, err := r.fetch(ctx, Query{Term: r.req.Term, Count: count, Tier: r.req.Tier})
	if err != nil {
		result.Err = err
		r.log(LevelWarning, KindFetchFailed, map[string]any{"Error": err})
		candidates = nil
	}
	r.progress.report(progressFetched)

	result.Candidates = len(candidates)
	r.log(LevelInfo, KindFound, map[string]any{"Count": len(candidates)})
	r.progress.report(progressLoop)

	for i, c := range candidates {
		if result.Accepted >= r.req.Target {
			break
		}
		if ctx.Err() != nil {
			result.Cancelled = true
			r.log(LevelWarning, KindCancelled, map[string]any{"Accepted": result.Accepted})
			break
		}
		r.log(LevelDebug, KindProcessing, map[string]any{
			"Index":    i + 1,
			"Total":    len(candidates),
			"Filename": c.Filename,
			"Size":     units.HumanSize(float64(len(c.Data))),
		})
		r.processSafely(ctx, fs, c)
		r.progress.report(progressLoop + min(result.Accepted*progressLoopSpan/r.req.Target, progressLoopSpan))
	}
	if result.Accepted >= r.req.Target {
		r.log(LevelInfo, KindTargetReached, map[string]any{"Target": r.req.Target})
	}
	r.progress.report(progressLoopMax)

	result.Outcome = outcomeFor(result.Accepted, r.req.Target)
	summary := map[string]any{"Accepted": result.Accepted, "Target": r.req.Target, "Dir": dir}
	switch result.Outcome {
	case OutcomeSuccess:
		r.log(LevelInfo, KindSuccess, summary)
	case OutcomePartial:
		r.log(LevelWarning, KindPartial, summary)
	default:
		r.log(LevelError, KindFailure, summary)
	}
	return result
}

// fetch calls the source, turning a panic into an error
func (r *run) fetch(ctx context.Context, q Query) (candidates []domain.Candidate, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			candidates, err = nil, fmt.Errorf("source panicked: %v", p)
		}
		metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()
	return r.source.Fetch(ctx, q)
}

// processSafely runs process, turning a panic from the store or the
// filesystem into a failed candidate so the loop moves on
func (r *run) processSafely(ctx context.Context, fs billy.Filesystem, c domain.Candidate) {
	defer func() {
		if p := recover(); p != nil {
			r.result.Failed++
			metrics.CandidatesTotal.WithLabelValues("error").Inc()
			r.log(LevelError, KindCandidateFailed, map[string]any{"Filename": c.Filename, "Error": fmt.Errorf("panic: %v", p)})
		}
	}()
	r.process(ctx, fs, c)
}

// process evaluates one candidate and keeps it when it is new and large enough
func (r *run) process(ctx context.Context, fs billy.Filesystem, c domain.Candidate) {
	hash := Fingerprint(c.Data)

	seen, err := r.store.Contains(ctx, hash)
	if err != nil {
		r.result.Failed++
		metrics.CandidatesTotal.WithLabelValues("error").Inc()
		r.log(LevelError, KindStoreFailed, map[string]any{"Hash": hash, "Error": err})
		return
	}
	if seen {
		r.skipDuplicate()
		return
	}

	v := r.filter.Evaluate(c.Data, r.req.Tier)
	if !v.Accepted {
		r.result.Rejected++
		metrics.CandidatesTotal.WithLabelValues(string(v.Reason)).Inc()
		switch v.Reason {
		case ReasonTooSmall:
			r.log(LevelInfo, KindTooSmall, map[string]any{"Size": len(c.Data)})
		case ReasonUndecodable:
			r.log(LevelInfo, KindUndecodable, map[string]any{"Error": v.Err})
		case ReasonTooLarge:
			r.log(LevelInfo, KindTooLarge, map[string]any{"Width": v.Width, "Height": v.Height, "Max": v.Max})
		default:
			r.log(LevelInfo, KindLowResolution, map[string]any{"Width": v.Width, "Height": v.Height, "Min": v.Min})
		}
		return
	}

	acquiredAt := r.now()
	name := FileName(r.req.Term, hash, acquiredAt, v.Ext())
	if storage.Exists(fs, name) {
		name = fmt.Sprintf("%s_%s_%d.%s", SanitizeTerm(r.req.Term), hash, acquiredAt.Unix(), v.Ext())
	}
	if err := storage.WriteAtomic(fs, name, c.Data); err != nil {
		r.result.Failed++
		metrics.CandidatesTotal.WithLabelValues("error").Inc()
		r.log(LevelError, KindWriteFailed, map[string]any{"Filename": name, "Error": err})
		return
	}

	inserted, err := r.store.RecordIfAbsent(ctx, domain.Fingerprint{Hash: hash, Term: r.req.Term, AcquiredAt: acquiredAt})
	if err != nil {
		fs.Remove(name)
		r.result.Failed++
		metrics.CandidatesTotal.WithLabelValues("error").Inc()
		r.log(LevelError, KindStoreFailed, map[string]any{"Hash": hash, "Error": err})
		return
	}
	if !inserted {
		// another run committed the same image in the meantime
		fs.Remove(name)
		r.skipDuplicate()
		return
	}

	r.result.Accepted++
	r.result.Files = append(r.result.Files, name)
	r.result.Hashes = append(r.result.Hashes, hash)
	metrics.CandidatesTotal.WithLabelValues("accepted").Inc()
	metrics.ImagesAcceptedBytes.Add(float64(len(c.Data)))
	r.log(LevelInfo, KindSaved, map[string]any{
		"Accepted": r.result.Accepted,
		"Target":   r.req.Target,
		"Width":    v.Width,
		"Height":   v.Height,
		"Filename": name,
	})
}

func (r *run) skipDuplicate() {
	r.result.Duplicates++
	metrics.CandidatesTotal.WithLabelValues("duplicate").Inc()
	r.log(LevelInfo, KindDuplicate, nil)
}
