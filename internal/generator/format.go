package generator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mode selects how a raw script is presented
type Mode string

const (
	// ModeRaw keeps the script as generated
	ModeRaw Mode = "raw"
	// ModeClean keeps only the paragraphs
	ModeClean Mode = "clean"
	// ModeTimed keeps paragraphs and highlights the scene durations
	ModeTimed Mode = "timed"
)

// DefaultDurationLabel is the label the default system instruction asks for
const DefaultDurationLabel = "Duração"

// headings are short all-caps lines without a final period
const maxHeadingLength = 80

// ParseMode accepts raw, clean and timed; empty means raw
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRaw:
		return ModeRaw, nil
	case ModeClean:
		return ModeClean, nil
	case ModeTimed:
		return ModeTimed, nil
	default:
		return "", fmt.Errorf("unknown format %q (use raw, clean or timed)", s)
	}
}

// Formatter renders scripts whose scenes carry "[<label>: ...]" markers
type Formatter struct {
	duration *regexp.Regexp
}

// NewFormatter creates a formatter for the given duration label
func NewFormatter(label string) *Formatter {
	if label == "" {
		label = DefaultDurationLabel
	}
	return &Formatter{duration: regexp.MustCompile(`\[` + regexp.QuoteMeta(label) + `:.*?\]`)}
}

// Format renders raw according to mode; unknown modes return raw unchanged
func (f *Formatter) Format(raw string, mode Mode) string {
	switch mode {
	case ModeClean:
		return f.clean(raw)
	case ModeTimed:
		return f.timed(raw)
	default:
		return raw
	}
}

func (f *Formatter) clean(raw string) string {
	var paragraphs []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(f.duration.ReplaceAllString(line, ""))
		if line == "" || isHeading(line) {
			continue
		}
		paragraphs = append(paragraphs, line)
	}
	return strings.Join(paragraphs, "\n\n")
}

func (f *Formatter) timed(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if duration := f.duration.FindString(line); duration != "" {
			heading := strings.TrimSpace(strings.Replace(line, duration, "", -1))
			lines = append(lines, fmt.Sprintf("--- %s --- %s\n", heading, duration))
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func isHeading(line string) bool {
	if utf8.RuneCountInString(line) >= maxHeadingLength || strings.HasSuffix(line, ".") {
		return false
	}
	return isUpper(line)
}

// isUpper reports whether line has cased letters and all of them are upper case
func isUpper(line string) bool {
	cased := false
	for _, r := range line {
		switch {
		case unicode.IsLower(r):
			return false
		case unicode.IsUpper(r), unicode.IsTitle(r):
			cased = true
		}
	}
	return cased
}
