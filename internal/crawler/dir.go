package crawler

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"github.com/lewtec/roteiro/internal/acquire"
	"github.com/lewtec/roteiro/internal/domain"
)

var _ acquire.Source = (*DirSource)(nil)

// DirSource offers the image files found under local folders as candidates
type DirSource struct {
	Roots     []string
	Recursive bool
	Logger    *zap.Logger

	MaxBytes int64
	// MaxTotalBytes stops reading once the kept files reach it
	MaxTotalBytes int64
}

// Fetch walks the roots in lexical order and returns up to q.Count image
// files. Files that are not images by their magic bytes are skipped.
func (d *DirSource) Fetch(ctx context.Context, q acquire.Query) ([]domain.Candidate, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := d.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	budget := d.MaxTotalBytes
	if budget <= 0 {
		budget = DefaultMaxTotalBytes
	}

	var paths []string
	for _, root := range d.Roots {
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				if path != root && !d.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if entry.Type().IsRegular() {
				paths = append(paths, path)
			}
			return ctx.Err()
		})
		if err != nil {
			return nil, fmt.Errorf("while scanning %s: %w", root, err)
		}
	}
	sort.Strings(paths)

	var candidates []domain.Candidate
	var kept int64
	for _, path := range paths {
		if q.Count > 0 && len(candidates) >= q.Count {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() > limit {
			logger.Debug("skipping file", zap.String("path", path), zap.Error(err))
			continue
		}
		if kept+info.Size() > budget {
			logger.Warn("read budget reached, remaining files skipped",
				zap.Int64("budget", budget), zap.String("path", path))
			break
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("failed to read file", zap.String("path", path), zap.Error(err))
			continue
		}
		if !filetype.IsImage(data) {
			continue
		}
		kept += int64(len(data))
		candidates = append(candidates, domain.Candidate{Filename: path, Data: data})
	}
	return candidates, nil
}
