package roteiro

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lewtec/roteiro/internal/domain"
	"github.com/lewtec/roteiro/internal/repository"
)

// LegacyStats counts what an import brought over
type LegacyStats struct {
	Scripts      int
	Fingerprints int
	// Known are fingerprints that were already in the ledger
	Known int
}

type legacyScript struct {
	Title     string
	Content   string
	CreatedAt string
}

// layouts found in databases written by earlier versions
var legacyTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseLegacyTime(s string) time.Time {
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ImportLegacy copies the roteiros and image_hashes tables of an older
// database into db in a single transaction. Fingerprints already present
// are left untouched.
func ImportLegacy(ctx context.Context, db *sql.DB, legacyPath string, logger *zap.Logger) (*LegacyStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(legacyPath); err != nil {
		return nil, fmt.Errorf("legacy database not found: %w", err)
	}
	oldDB, err := sql.Open("sqlite", legacyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy database: %w", err)
	}
	defer oldDB.Close()

	hasScripts, err := tableExists(ctx, oldDB, "roteiros")
	if err != nil {
		return nil, err
	}
	hasHashes, err := tableExists(ctx, oldDB, "image_hashes")
	if err != nil {
		return nil, err
	}
	if !hasScripts && !hasHashes {
		return nil, fmt.Errorf("%s has neither a roteiros nor an image_hashes table (not a legacy database?)", legacyPath)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	stats := &LegacyStats{}
	if hasScripts {
		logger.Info("importing scripts")
		if stats.Scripts, err = importLegacyScripts(ctx, oldDB, repository.NewScriptRepositoryWithTx(tx)); err != nil {
			return nil, fmt.Errorf("failed to import scripts: %w", err)
		}
	} else {
		logger.Warn("legacy database has no roteiros table, skipping scripts")
	}
	if hasHashes {
		logger.Info("importing image fingerprints")
		if err := importLegacyHashes(ctx, oldDB, repository.NewFingerprintRepositoryWithTx(tx), stats); err != nil {
			return nil, fmt.Errorf("failed to import fingerprints: %w", err)
		}
	} else {
		logger.Warn("legacy database has no image_hashes table, skipping fingerprints")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stats, nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("while inspecting legacy database: %w", err)
	}
	return count > 0, nil
}

func importLegacyScripts(ctx context.Context, oldDB *sql.DB, scripts *repository.ScriptRepository) (int, error) {
	rows, err := oldDB.QueryContext(ctx, "SELECT COALESCE(title, ''), COALESCE(content, ''), COALESCE(created_at, '') FROM roteiros ORDER BY id")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var legacy []legacyScript
	for rows.Next() {
		var s legacyScript
		if err := rows.Scan(&s.Title, &s.Content, &s.CreatedAt); err != nil {
			return 0, err
		}
		legacy = append(legacy, s)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, s := range legacy {
		if _, err := scripts.CreateAt(ctx, s.Title, s.Content, parseLegacyTime(s.CreatedAt)); err != nil {
			return 0, fmt.Errorf("failed to insert script %q: %w", s.Title, err)
		}
	}
	return len(legacy), nil
}

func importLegacyHashes(ctx context.Context, oldDB *sql.DB, fingerprints *repository.FingerprintRepository, stats *LegacyStats) error {
	rows, err := oldDB.QueryContext(ctx, "SELECT hash, COALESCE(term, ''), COALESCE(downloaded_at, '') FROM image_hashes")
	if err != nil {
		return err
	}
	defer rows.Close()

	var legacy []domain.Fingerprint
	for rows.Next() {
		var fp domain.Fingerprint
		var downloadedAt string
		if err := rows.Scan(&fp.Hash, &fp.Term, &downloadedAt); err != nil {
			return err
		}
		fp.AcquiredAt = parseLegacyTime(downloadedAt)
		legacy = append(legacy, fp)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fp := range legacy {
		inserted, err := fingerprints.RecordIfAbsent(ctx, fp)
		if err != nil {
			return fmt.Errorf("failed to insert fingerprint %s: %w", fp.Hash, err)
		}
		if inserted {
			stats.Fingerprints++
		} else {
			stats.Known++
		}
	}
	return nil
}
