package acquire

import "time"

// Level of a log event
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	default:
		return "error"
	}
}

// Kind identifies what a log event is about
type Kind string

const (
	KindStart               Kind = "start"
	KindSearch              Kind = "search"
	KindOverfetch           Kind = "overfetch"
	KindDownload            Kind = "download"
	KindFetchFailed         Kind = "fetch_failed"
	KindFound               Kind = "found"
	KindProcessing          Kind = "processing"
	KindDuplicate           Kind = "duplicate"
	KindTooSmall            Kind = "too_small"
	KindUndecodable         Kind = "undecodable"
	KindLowResolution       Kind = "low_resolution"
	KindTooLarge            Kind = "too_large"
	KindSaved               Kind = "saved"
	KindWriteFailed         Kind = "write_failed"
	KindStoreFailed         Kind = "store_failed"
	KindCandidateFailed     Kind = "candidate_failed"
	KindTargetReached       Kind = "target_reached"
	KindCancelled           Kind = "cancelled"
	KindSuccess             Kind = "success"
	KindPartial             Kind = "partial"
	KindFailure             Kind = "failure"
	KindInvalidRequest      Kind = "invalid_request"
	KindDestinationFailed   Kind = "destination_failed"
	KindDestinationFallback Kind = "destination_fallback"
)

// Event is one line of the human readable trail of a run
type Event struct {
	Time    time.Time
	Level   Level
	Kind    Kind
	Message string
	Fields  map[string]any
}

// ProgressFunc receives progress percentages
type ProgressFunc func(percent int)

// LogFunc receives log events
type LogFunc func(Event)

// progressReporter forwards only non-decreasing values and never lets a
// panicking sink escape.
type progressReporter struct {
	fn   ProgressFunc
	last int
}

func newProgressReporter(fn ProgressFunc) *progressReporter {
	return &progressReporter{fn: fn, last: -1}
}

func (p *progressReporter) report(v int) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	if v <= p.last {
		return
	}
	p.last = v
	if p.fn == nil {
		return
	}
	defer func() { recover() }()
	p.fn(v)
}

func (p *progressReporter) finish() {
	p.report(100)
}

func emit(fn LogFunc, e Event) {
	if fn == nil {
		return
	}
	defer func() { recover() }()
	fn(e)
}
