package acquire

import (
	"fmt"
	"time"

	"github.com/lewtec/roteiro/internal/storage"
)

// SanitizeTerm makes a search term safe to use as a file name prefix
func SanitizeTerm(term string) string {
	return storage.SafeName(term, "image")
}

// FileName builds "<term>_<hash[:8]>_<unix seconds>.<ext>"
func FileName(term, hash string, at time.Time, ext string) string {
	prefix := hash
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("%s_%s_%d.%s", SanitizeTerm(term), prefix, at.Unix(), ext)
}
