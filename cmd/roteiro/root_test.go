package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/roteiro/internal/generator"
)

// resetFlags puts every flag back to its default, since the command tree is
// shared between executions
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// executeCommand is a helper to run a cobra command and capture its output
func executeCommand(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	log.SetOutput(&errOut)
	defer log.SetOutput(os.Stderr)

	resetFlags(rootCmd)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

// testConfig writes a config that keeps every folder inside a temp dir
func testConfig(t *testing.T) (configPath, dir string) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	dir = t.TempDir()
	configPath = filepath.Join(dir, "roteiro.yaml")
	cfg := fmt.Sprintf(`database:
  dir: %[1]s/db
  fallback_dir: %[1]s/db-fallback
images:
  dir: %[1]s/images
  fallback_dir: %[1]s/images-fallback
export:
  dir: %[1]s/exports
  fallback_dir: %[1]s/exports-fallback
`, filepath.ToSlash(dir))
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return configPath, dir
}

func writeNoisePNG(t *testing.T, path string, seed int64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, 600, 500))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	img.SetGray(0, 0, color.Gray{Y: uint8(seed)})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestInitCmd(t *testing.T) {
	t.Run("creates config and database", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		configPath := filepath.Join(dir, "roteiro.yaml")

		out, errOut, err := executeCommand("init", configPath)
		require.NoError(t, err, errOut)

		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			t.Errorf("expected config file to be created at %s, but it wasn't", configPath)
		}
		dbPath := filepath.Join(dir, "db", "roteiro_data.db")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Errorf("expected database file to be created at %s, but it wasn't", dbPath)
		}
		assert.Contains(t, errOut, "Creating default config")
		assert.Contains(t, out, filepath.Join("db", "roteiro_data.db"))
	})

	t.Run("keeps an existing config", func(t *testing.T) {
		configPath, _ := testConfig(t)
		before, err := os.ReadFile(configPath)
		require.NoError(t, err)

		_, errOut, err := executeCommand("init", "--config", configPath)
		require.NoError(t, err, errOut)

		assert.Contains(t, errOut, "Config file already exists")
		after, err := os.ReadFile(configPath)
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))
	})
}

func TestScriptsCmd_Empty(t *testing.T) {
	configPath, _ := testConfig(t)

	out, errOut, err := executeCommand("scripts", "list", "-c", configPath)
	require.NoError(t, err, errOut)
	assert.Equal(t, "id\tcreated_at\ttitle\n", out)

	out, _, err = executeCommand("scripts", "count", "-c", configPath)
	require.NoError(t, err)
	assert.Equal(t, "0 scripts\n", out)

	_, _, err = executeCommand("scripts", "show", "42", "-c", configPath)
	assert.ErrorContains(t, err, "script not found")

	_, _, err = executeCommand("scripts", "delete", "abc", "-c", configPath)
	assert.ErrorContains(t, err, "invalid script id")
}

func TestGenerateCmd_NoAPIKey(t *testing.T) {
	configPath, _ := testConfig(t)

	_, _, err := executeCommand("generate", "-c", configPath, "os", "deuses", "de", "Nibiru")
	assert.ErrorIs(t, err, generator.ErrNoClient)

	_, _, err = executeCommand("generate", "-c", configPath, "--format", "fancy")
	assert.ErrorContains(t, err, "fancy")
}

func TestAcquireCmd_InvalidCount(t *testing.T) {
	configPath, _ := testConfig(t)

	_, _, err := executeCommand("acquire", "-c", configPath, "-n", "0", "ziggurat")
	assert.ErrorContains(t, err, "--count must be between 1 and 100")

	_, _, err = executeCommand("acquire", "-c", configPath, "-n", "101", "ziggurat")
	assert.ErrorContains(t, err, "--count must be between 1 and 100")

	_, _, err = executeCommand("acquire", "-c", configPath, "-q", "ultra", "ziggurat")
	assert.Error(t, err)
}

func TestIngestAndFingerprints(t *testing.T) {
	configPath, dir := testConfig(t)
	input := filepath.Join(dir, "tablets")
	require.NoError(t, os.MkdirAll(input, 0o755))
	writeNoisePNG(t, filepath.Join(input, "a.png"), 1)
	writeNoisePNG(t, filepath.Join(input, "b.png"), 2)
	data, err := os.ReadFile(filepath.Join(input, "a.png"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(input, "c.png"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(input, "notes.txt"), []byte("not an image"), 0o644))

	out, errOut, err := executeCommand("ingest", "-c", configPath, input)
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "[100%] partial: 2/1000 saved, 1 duplicates")

	saved, err := os.ReadDir(filepath.Join(dir, "images"))
	require.NoError(t, err)
	assert.Len(t, saved, 2)
	for _, entry := range saved {
		assert.True(t, strings.HasPrefix(entry.Name(), "tablets_"), entry.Name())
	}

	// a second pass finds nothing new and is not an error
	out, errOut, err = executeCommand("ingest", "-c", configPath, input)
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "[100%] failure: 0/1000 saved, 3 duplicates")

	out, _, err = executeCommand("fingerprints", "count", "-c", configPath)
	require.NoError(t, err)
	assert.Equal(t, "2 fingerprints\n", out)

	out, _, err = executeCommand("fingerprints", "list", "-c", configPath, "--term", "tablets")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	fresh := filepath.Join(dir, "fresh.png")
	writeNoisePNG(t, fresh, 3)
	out, _, err = executeCommand("fingerprints", "check", "-c", configPath, filepath.Join(input, "a.png"), fresh)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "\tknown\t")
	assert.Contains(t, lines[1], "\tnew\t")
}

func TestIngestCmd_RejectsFiles(t *testing.T) {
	configPath, dir := testConfig(t)
	file := filepath.Join(dir, "a.png")
	writeNoisePNG(t, file, 1)

	_, _, err := executeCommand("ingest", "-c", configPath, file)
	assert.ErrorContains(t, err, "on 1th argument: must be a directory")
}

func TestImportLegacyCmd(t *testing.T) {
	configPath, dir := testConfig(t)
	legacyPath := filepath.Join(dir, "anunnakis_data.db")
	db, err := sql.Open("sqlite", legacyPath)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE roteiros (id INTEGER PRIMARY KEY, title TEXT, content TEXT, created_at TEXT)`,
		`CREATE TABLE image_hashes (hash TEXT PRIMARY KEY, term TEXT, downloaded_at TEXT)`,
		`INSERT INTO roteiros (title, content, created_at) VALUES ('Enki', '[Duração: 1 min] Enki desce.', '2024-03-07T09:05:00')`,
		`INSERT INTO image_hashes VALUES ('aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa', 'enki', '2024-03-07T09:06:00')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())

	out, errOut, err := executeCommand("import-legacy", "-c", configPath, legacyPath)
	require.NoError(t, err, errOut)
	assert.Equal(t, "1 scripts, 1 fingerprints imported (0 already known)\n", out)

	out, _, err = executeCommand("scripts", "show", "1", "-c", configPath, "--format", "clean")
	require.NoError(t, err)
	assert.Equal(t, "# Enki\n\nEnki desce.\n", out)

	exported := filepath.Join(dir, "enki.html")
	_, _, err = executeCommand("scripts", "export", "1", "-c", configPath, "--to", "html", "-o", exported)
	require.NoError(t, err)
	html, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Enki")

	_, _, err = executeCommand("scripts", "delete", "1", "-c", configPath)
	require.NoError(t, err)
	out, _, err = executeCommand("scripts", "count", "-c", configPath)
	require.NoError(t, err)
	assert.Equal(t, "0 scripts\n", out)
}

func TestCommandRunsAgainAfterContextEnds(t *testing.T) {
	configPath, _ := testConfig(t)

	// executeCommand cancels its context when it returns
	for i := 0; i < 3; i++ {
		out, errOut, err := executeCommand("fingerprints", "count", "-c", configPath)
		require.NoError(t, err, "run %d: %s", i+1, errOut)
		assert.Equal(t, "0 fingerprints\n", out)
	}
}

func TestMetricsFile(t *testing.T) {
	configPath, dir := testConfig(t)
	metricsPath := filepath.Join(dir, "roteiro.prom")

	_, errOut, err := executeCommand("fingerprints", "count", "-c", configPath, "--metrics-file", metricsPath)
	require.NoError(t, err, errOut)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "roteiro_images_accepted_bytes_total")
}
