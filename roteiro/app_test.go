package roteiro

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/roteiro/internal/acquire"
	"github.com/lewtec/roteiro/internal/crawler"
	"github.com/lewtec/roteiro/internal/generator"
	"github.com/lewtec/roteiro/internal/repository"
)

type stubClient struct {
	text    string
	err     error
	prompts []string
}

func (s *stubClient) GenerateContent(ctx context.Context, model, system, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.text, s.err
}

func testApp(t *testing.T) *App {
	t.Helper()
	db := repository.SetupTestDB(t)
	t.Cleanup(func() { db.Close() })

	cfg := DefaultConfig()
	dir := t.TempDir()
	cfg.Images = DirConfig{Dir: filepath.Join(dir, "images"), FallbackDir: filepath.Join(dir, "fallback")}
	cfg.Export = DirConfig{Dir: filepath.Join(dir, "exports"), FallbackDir: filepath.Join(dir, "fallback-exports")}
	cfg.Generator.RequestsPerMinute = 0
	app := NewAppWithDB(cfg, db, nil)
	app.Now = func() time.Time { return time.Date(2024, 5, 1, 20, 30, 0, 0, time.UTC) }
	return app
}

func TestNewApp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Dir = filepath.Join(t.TempDir(), "db")
	app, err := NewApp(cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, filepath.Join(cfg.Database.Dir, DefaultDatabaseFile), app.DatabasePath)
	n, err := app.Scripts.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApp_GenerateScript(t *testing.T) {
	app := testApp(t)
	client := &stubClient{text: "CENA 1 [Duração: 1 minuto]\nTexto."}
	app.Client = client

	out, err := app.GenerateScript(context.Background(), "Enki e Enlil", nil)
	require.NoError(t, err)
	require.NoError(t, out.SaveErr)
	assert.Equal(t, "Enki e Enlil", out.Script.Title)
	assert.Equal(t, generator.DefaultModels[0], out.Model)
	assert.NotZero(t, out.Script.ID)

	stored, err := app.Script(context.Background(), out.Script.ID)
	require.NoError(t, err)
	assert.Equal(t, client.text, stored.Content)
}

func TestApp_GenerateScriptRandomPrompt(t *testing.T) {
	app := testApp(t)
	app.Client = &stubClient{text: "ok"}

	out, err := app.GenerateScript(context.Background(), "", rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Contains(t, generator.Prompts, out.Prompt)
	assert.Equal(t, out.Prompt, out.Script.Title)
}

func TestApp_GenerateScriptFails(t *testing.T) {
	app := testApp(t)
	app.Client = &stubClient{err: errors.New("unavailable")}

	_, err := app.GenerateScript(context.Background(), "x", nil)
	assert.ErrorIs(t, err, generator.ErrAllModelsFailed)
	n, err := app.Scripts.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApp_GenerateScriptWithoutKey(t *testing.T) {
	app := testApp(t)
	app.Config.Generator.APIKey = ""
	_, err := app.GenerateScript(context.Background(), "x", nil)
	assert.ErrorIs(t, err, generator.ErrNoClient)
}

func TestApp_ScriptNotFound(t *testing.T) {
	app := testApp(t)
	_, err := app.Script(context.Background(), 42)
	assert.ErrorIs(t, err, ErrScriptNotFound)
}

func TestApp_AcquireFromFolder(t *testing.T) {
	app := testApp(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.png"), noisePNG(t, 600, 400, 1), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.png"), noisePNG(t, 600, 400, 1), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "c.png"), noisePNG(t, 100, 100, 2), 0o644))

	a := app.Acquirer(&crawler.DirSource{Roots: []string{src}})
	res := a.Acquire(context.Background(), acquire.Request{Term: "ingest", Target: 3, Destination: app.Config.Images.Dir}, nil, nil)

	assert.Equal(t, acquire.OutcomePartial, res.Outcome)
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, app.Config.Images.Dir, res.Dir)
	_, err := os.Stat(filepath.Join(res.Dir, res.Files[0]))
	assert.NoError(t, err)

	n, err := app.Fingerprints.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestApp_AcquireFallsBack(t *testing.T) {
	app := testApp(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.png"), noisePNG(t, 600, 400, 5), 0o644))

	var events []acquire.Event
	a := app.Acquirer(&crawler.DirSource{Roots: []string{src}})
	res := a.Acquire(context.Background(), acquire.Request{Term: "x", Target: 1, Destination: filepath.Join(blocker, "images")},
		nil, func(e acquire.Event) { events = append(events, e) })

	assert.Equal(t, acquire.OutcomeSuccess, res.Outcome)
	assert.Equal(t, app.Config.Images.FallbackDir, res.Dir)
	require.NotEmpty(t, events)
	assert.Equal(t, acquire.KindDestinationFallback, events[0].Kind)
}

func TestApp_BingSource(t *testing.T) {
	app := testApp(t)
	app.Config.Crawler.BaseURL = "http://localhost:1/search"
	app.Config.Crawler.Workers = 2
	source := app.BingSource()
	assert.Equal(t, "http://localhost:1/search", source.BaseURL)
	assert.Equal(t, 2, source.Workers)
	assert.NotNil(t, source.Limiter)
}
