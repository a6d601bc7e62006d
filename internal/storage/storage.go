// Package storage resolves output folders and writes files into them atomically.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/google/uuid"
)

// ErrNoDirectory is returned when neither the preferred nor the fallback folder is usable
var ErrNoDirectory = errors.New("no usable directory")

// ResolveDir creates preferred and returns it; when that fails it creates and
// returns fallback instead. fellBack reports whether the fallback was used.
func ResolveDir(preferred, fallback string) (dir string, fellBack bool, err error) {
	var preferredErr error
	if preferred != "" {
		if preferredErr = ensureDir(preferred); preferredErr == nil {
			return preferred, false, nil
		}
	}
	if fallback == "" || fallback == preferred {
		if preferredErr == nil {
			preferredErr = errors.New("no directory configured")
		}
		return "", false, fmt.Errorf("%w: %v", ErrNoDirectory, preferredErr)
	}
	if err := ensureDir(fallback); err != nil {
		return "", true, fmt.Errorf("%w: preferred %q: %v; fallback %q: %v", ErrNoDirectory, preferred, preferredErr, fallback, err)
	}
	return fallback, preferred != "", nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	// MkdirAll succeeds on read-only folders that already exist
	probe := filepath.Join(dir, ".roteiro-"+uuid.NewString())
	f, err := os.Create(probe)
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(probe)
}

// OpenDir resolves a folder like ResolveDir and returns a filesystem rooted at it
func OpenDir(preferred, fallback string) (billy.Filesystem, string, bool, error) {
	dir, fellBack, err := ResolveDir(preferred, fallback)
	if err != nil {
		return nil, "", fellBack, err
	}
	return osfs.New(dir), dir, fellBack, nil
}

// WriteAtomic writes data to name inside fs through a temporary file and a
// rename, so a reader never observes a partially written file.
func WriteAtomic(fs billy.Filesystem, name string, data []byte) error {
	if dir := filepath.Dir(name); dir != "." && dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tempFile := fs.Join(filepath.Dir(name), fmt.Sprintf(".%s.tmp", uuid.New()))
	f, err := fs.Create(tempFile)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fs.Remove(tempFile)
		return err
	}
	if err := fs.Rename(tempFile, name); err != nil {
		fs.Remove(tempFile)
		return err
	}
	return nil
}

// Exists reports whether name exists inside fs
func Exists(fs billy.Filesystem, name string) bool {
	_, err := fs.Stat(name)
	return err == nil
}
