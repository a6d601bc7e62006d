package roteiro

import (
	"bytes"
	"image"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/roteiro/internal/domain"
	"github.com/lewtec/roteiro/internal/generator"
)

func noisePNG(t *testing.T, w, h int, seed int64) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	rand.New(rand.NewSource(seed)).Read(img.Pix)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testScript() *domain.Script {
	return &domain.Script{
		ID:        7,
		Title:     "A queda de Nippur",
		Content:   "CENA 1 [Duração: 2 minutos]\nOs deuses **partiram**.",
		CreatedAt: time.Date(2024, 3, 7, 9, 5, 0, 0, time.UTC),
	}
}

func TestExportScript(t *testing.T) {
	s := testScript()

	tests := []struct {
		format   ExportFormat
		contains []string
	}{
		{ExportText, []string{s.Content}},
		{ExportMarkdown, []string{"# A queda de Nippur\n", "_07/03/2024 09:05_", s.Content}},
		{ExportHTML, []string{"<title>A queda de Nippur</title>", "<strong>partiram</strong>", "07/03/2024 09:05"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, ExportScript(&buf, s, s.Content, tt.format))
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}

	assert.Error(t, ExportScript(&bytes.Buffer{}, s, s.Content, "pdf"))
}

func TestExportScript_EscapesTitle(t *testing.T) {
	s := testScript()
	s.Title = "<script>alert(1)</script>"
	var buf bytes.Buffer
	require.NoError(t, ExportScript(&buf, s, "", ExportHTML))
	assert.NotContains(t, buf.String(), "<script>alert")
}

func TestParseExportFormat(t *testing.T) {
	for in, want := range map[string]ExportFormat{"": ExportText, "txt": ExportText, ".md": ExportMarkdown, "Markdown": ExportMarkdown, "HTML": ExportHTML} {
		got, err := ParseExportFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseExportFormat(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseExportFormat("pdf"); err == nil {
		t.Error("ParseExportFormat(pdf) should fail")
	}
}

func TestExportFileName(t *testing.T) {
	s := testScript()
	assert.Equal(t, "7_A_queda_de_Nippur.md", ExportFileName(s, ExportMarkdown))

	s.Title = strings.Repeat("á", 100)
	name := ExportFileName(s, ExportText)
	assert.Equal(t, "7_"+strings.Repeat("á", 60)+".txt", name)

	s.Title = "///"
	assert.Equal(t, "7____.html", ExportFileName(s, ExportHTML))
	s.Title = ""
	assert.Equal(t, "7_script.txt", ExportFileName(s, ExportText))
}

func TestApp_ExportToDir(t *testing.T) {
	app := testApp(t)
	s := testScript()

	path, err := app.ExportToDir(s, generator.ModeClean, ExportText)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(app.Config.Export.Dir, "7_A_queda_de_Nippur.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Os deuses **partiram**.", string(data))
}
