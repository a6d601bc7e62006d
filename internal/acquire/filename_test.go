package acquire

import (
	"testing"
	"time"
)

func TestSanitizeTerm(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ancient rome", "ancient_rome"},
		{"  Sumérios  ", "Sumérios"},
		{"cats/dogs", "cats_dogs"},
		{"..", "image"},
		{"", "image"},
	}
	for _, tt := range tests {
		if got := SanitizeTerm(tt.in); got != tt.want {
			t.Errorf("SanitizeTerm(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	got := FileName("ancient rome", "0123456789abcdef0123456789abcdef", time.Unix(1700000000, 0), "png")
	want := "ancient_rome_01234567_1700000000.png"
	if got != want {
		t.Errorf("FileName() = %q, want %q", got, want)
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{"", TierNormal, false},
		{"normal", TierNormal, false},
		{"HIGH", TierHigh, false},
		{"ultra", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTier(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProgressReporter(t *testing.T) {
	var got []int
	p := newProgressReporter(func(v int) { got = append(got, v) })
	for _, v := range []int{10, 20, 20, 15, 55, 120} {
		p.report(v)
	}
	p.finish()
	want := []int{10, 20, 55, 100}
	if len(got) != len(want) {
		t.Fatalf("reported %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reported %v, want %v", got, want)
			break
		}
	}
}
