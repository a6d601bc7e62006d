package acquire

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
)

// Fingerprint returns the lower-case hex MD5 of data. MD5 keeps the ledger
// compatible with databases written by earlier versions.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%x", md5.Sum(data))
}

// FingerprintFile hashes a file on disk
func FingerprintFile(filepath string) (string, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := md5.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
