// Package roteiro wires configuration, storage, generation and image
// acquisition into the operations exposed by the command line.
package roteiro

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lewtec/roteiro/internal/acquire"
	"github.com/lewtec/roteiro/internal/crawler"
	"github.com/lewtec/roteiro/internal/domain"
	"github.com/lewtec/roteiro/internal/generator"
	"github.com/lewtec/roteiro/internal/i18n"
	"github.com/lewtec/roteiro/internal/repository"
)

// App holds every long lived dependency. It is built once and passed to
// whatever needs it; nothing here is global.
type App struct {
	Config       *Config
	Database     *sql.DB
	DatabasePath string
	Scripts      *repository.ScriptRepository
	Fingerprints *repository.FingerprintRepository
	Messages     *i18n.Localizer
	Logger       *zap.Logger

	// Client overrides the Gemini client, mostly for tests
	Client generator.ContentClient
	// Now overrides the clock
	Now func() time.Time
}

// NewApp opens the database described by cfg
func NewApp(cfg *Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, path, err := GetDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, db, path, logger), nil
}

// NewAppWithDB builds an App around an already migrated database
func NewAppWithDB(cfg *Config, db *sql.DB, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newApp(cfg, db, "", logger)
}

func newApp(cfg *Config, db *sql.DB, path string, logger *zap.Logger) *App {
	return &App{
		Config:       cfg,
		Database:     db,
		DatabasePath: path,
		Scripts:      repository.NewScriptRepository(db),
		Fingerprints: repository.NewFingerprintRepository(db),
		Messages:     i18n.New(cfg.Language),
		Logger:       logger,
		Now:          time.Now,
	}
}

func (a *App) Close() error {
	return a.Database.Close()
}

// BingSource builds the web image source from the crawler settings
func (a *App) BingSource() *crawler.BingSource {
	cfg := a.Config.Crawler
	source := crawler.NewBingSource(crawler.NewHTTPClient(cfg.TimeoutDuration(), a.Logger.Named("http")), a.Logger.Named("crawler"))
	if cfg.BaseURL != "" {
		source.BaseURL = cfg.BaseURL
	}
	source.Workers = cfg.Workers
	source.PageSize = cfg.PageSize
	source.MaxBytes = cfg.MaxDownloadBytes()
	source.MaxTotalBytes = cfg.MaxTotalBytes()
	if cfg.RequestsPerSecond > 0 {
		burst := max(int(cfg.RequestsPerSecond), 1)
		source.Limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	} else {
		source.Limiter = nil
	}
	return source
}

// Acquirer builds an acquisition loop over source that records into the
// app's fingerprint ledger
func (a *App) Acquirer(source acquire.Source) *acquire.Acquirer {
	return acquire.New(acquire.Config{
		Source:      source,
		Store:       a.Fingerprints,
		Filter:      a.Config.Acquire.Filter(),
		Messages:    a.Messages,
		FallbackDir: a.Config.Images.FallbackDir,
		Multiplier:  a.Config.Acquire.Multiplier,
		HardCap:     a.Config.Acquire.HardCap,
		Now:         a.Now,
	})
}

// Generator builds the script generator. Without an API key the generator
// is still returned and fails on use with generator.ErrNoClient.
func (a *App) Generator(ctx context.Context) (*generator.Generator, error) {
	client := a.Client
	if client == nil && a.Config.Generator.APIKey != "" {
		gemini, err := generator.NewGeminiClient(ctx, a.Config.Generator.APIKey)
		if err != nil {
			return nil, err
		}
		client = gemini
	}
	cfg := a.Config.Generator
	return generator.New(client, generator.Config{
		Models:            cfg.Models,
		SystemInstruction: cfg.SystemInstruction,
		PromptTemplate:    cfg.PromptTemplate,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, a.Logger.Named("generator"))
}

// Formatter renders scripts with the configured duration label
func (a *App) Formatter() *generator.Formatter {
	return generator.NewFormatter(a.Config.Generator.DurationLabel)
}

// Generated is a script that was just produced and stored
type Generated struct {
	Script *domain.Script
	Prompt string
	Model  string
	// SaveErr is set when generation worked but storing the script failed
	SaveErr error
}

// GenerateScript produces a script for prompt and saves it. An empty prompt
// is replaced by one of the built-in suggestions.
func (a *App) GenerateScript(ctx context.Context, prompt string, rng *rand.Rand) (*Generated, error) {
	if prompt == "" {
		prompt = generator.RandomPrompt(rng)
	}
	g, err := a.Generator(ctx)
	if err != nil {
		return nil, err
	}
	text, model, err := g.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	title := generator.Title(prompt, a.Config.Generator.TitlePrefix, a.Now())
	out := &Generated{Prompt: prompt, Model: model}
	script, err := a.Scripts.Create(ctx, title, text)
	if err != nil {
		// keep the text so the caller can still show or export it
		out.Script = &domain.Script{Title: title, Content: text, CreatedAt: a.Now()}
		out.SaveErr = fmt.Errorf("while saving script: %w", err)
		return out, nil
	}
	out.Script = script
	return out, nil
}

// ErrScriptNotFound is returned when a script ID does not exist
var ErrScriptNotFound = errors.New("script not found")

// Script loads one script by ID
func (a *App) Script(ctx context.Context, id int64) (*domain.Script, error) {
	s, err := a.Scripts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %d", ErrScriptNotFound, id)
	}
	return s, nil
}
