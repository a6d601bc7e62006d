package acquire

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMinBytes is the smallest candidate worth decoding
const DefaultMinBytes = 1000

// DefaultMaxPixels bounds width*height of a candidate before it is decoded.
// Headers are read first, so a forged header cannot make the decoder
// allocate gigabytes.
const DefaultMaxPixels = 100_000_000

// DefaultThresholds are the minimum longest-side pixel sizes per tier
var DefaultThresholds = map[Tier]int{
	TierNormal: 480,
	TierHigh:   1080,
}

// Reason a candidate was rejected
type Reason string

const (
	ReasonTooSmall      Reason = "too_small"
	ReasonUndecodable   Reason = "undecodable"
	ReasonLowResolution Reason = "low_resolution"
	ReasonTooLarge      Reason = "too_large"
)

// Verdict is the outcome of evaluating one candidate
type Verdict struct {
	Accepted bool
	Reason   Reason
	Width    int
	Height   int
	// Format is the decoder name, e.g. "jpeg" or "png"
	Format string
	// Min is the threshold that applied, set on low_resolution rejections
	Min int
	// Max is the pixel budget that applied, set on too_large rejections
	Max int64
	Err error
}

// Ext is the file extension for the decoded format, without the dot
func (v Verdict) Ext() string {
	return extensionFor(v.Format)
}

// Filter decides whether candidate bytes are worth keeping
type Filter struct {
	MinBytes   int
	Thresholds map[Tier]int
	// MaxPixels is the largest width*height decoded; 0 means DefaultMaxPixels
	MaxPixels int64
}

// NewFilter returns a filter with the default limits
func NewFilter() *Filter {
	thresholds := make(map[Tier]int, len(DefaultThresholds))
	for k, v := range DefaultThresholds {
		thresholds[k] = v
	}
	return &Filter{MinBytes: DefaultMinBytes, Thresholds: thresholds, MaxPixels: DefaultMaxPixels}
}

// Threshold returns the minimum longest side for tier
func (f *Filter) Threshold(tier Tier) int {
	if threshold, ok := f.Thresholds[tier]; ok {
		return threshold
	}
	return DefaultThresholds[TierNormal]
}

func (f *Filter) maxPixels() int64 {
	if f.MaxPixels > 0 {
		return f.MaxPixels
	}
	return DefaultMaxPixels
}

// Evaluate applies the size, decode and resolution rules in order and
// reports the first one that fails. Only the header is read before the
// pixel budget is checked. It never panics.
func (f *Filter) Evaluate(data []byte, tier Tier) (v Verdict) {
	if len(data) < f.MinBytes {
		return Verdict{Reason: ReasonTooSmall}
	}

	defer func() {
		if r := recover(); r != nil {
			v = Verdict{Reason: ReasonUndecodable, Err: fmt.Errorf("decoder panic: %v", r)}
		}
	}()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Verdict{Reason: ReasonUndecodable, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Verdict{Reason: ReasonUndecodable, Format: format, Err: fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)}
	}
	if budget := f.maxPixels(); int64(cfg.Width)*int64(cfg.Height) > budget {
		return Verdict{Reason: ReasonTooLarge, Width: cfg.Width, Height: cfg.Height, Format: format, Max: budget}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Verdict{Reason: ReasonUndecodable, Err: err}
	}

	bounds := img.Bounds()
	v = Verdict{Width: bounds.Dx(), Height: bounds.Dy(), Format: format}
	threshold := f.Threshold(tier)
	if max(v.Width, v.Height) < threshold {
		v.Reason = ReasonLowResolution
		v.Min = threshold
		return v
	}
	v.Accepted = true
	return v
}

func extensionFor(format string) string {
	switch format {
	case "jpeg", "jpg", "":
		return "jpg"
	case "png", "gif", "webp", "bmp":
		return format
	default:
		return "jpg"
	}
}
