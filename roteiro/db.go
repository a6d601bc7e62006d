package roteiro

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/lewtec/roteiro/internal/repository"
	"github.com/lewtec/roteiro/internal/storage"
)

// OpenDatabase opens a sqlite file and brings its schema up to date
func OpenDatabase(filename string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+filename+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("while opening database %s: %w", filename, err)
	}
	// one writer at a time; concurrent runs queue on the connection
	db.SetMaxOpenConns(1)
	if err := repository.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// GetDatabase resolves the database folder, falling back when the preferred
// one is unusable, and opens the database inside it.
func GetDatabase(cfg DatabaseConfig, logger *zap.Logger) (*sql.DB, string, error) {
	dir, fellBack, err := storage.ResolveDir(cfg.Dir, cfg.FallbackDir)
	if err != nil {
		return nil, "", fmt.Errorf("while preparing database folder: %w", err)
	}
	if fellBack {
		logger.Warn("database folder unavailable, using fallback",
			zap.String("preferred", cfg.Dir), zap.String("fallback", dir))
	}
	filename := filepath.Join(dir, cfg.File)
	logger.Debug("GetDatabase: opening", zap.String("path", filename))
	db, err := OpenDatabase(filename)
	if err != nil {
		return nil, "", err
	}
	return db, filename, nil
}
