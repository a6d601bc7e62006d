package roteiro

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/russross/blackfriday/v2"

	"github.com/lewtec/roteiro/internal/domain"
	"github.com/lewtec/roteiro/internal/generator"
	"github.com/lewtec/roteiro/internal/storage"
)

// ExportFormat is the file type a script is exported to
type ExportFormat string

const (
	ExportText     ExportFormat = "txt"
	ExportMarkdown ExportFormat = "md"
	ExportHTML     ExportFormat = "html"
)

// ParseExportFormat accepts txt, md and html; empty means txt
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case "":
		return ExportText, nil
	case ExportText, ExportMarkdown, ExportHTML:
		return f, nil
	case "markdown":
		return ExportMarkdown, nil
	default:
		return "", fmt.Errorf("unknown export format %q (use txt, md or html)", s)
	}
}

var (
	//go:embed templates/*
	templateFS embed.FS

	templateFuncMap = template.FuncMap{
		"markdown": func(text string) template.HTML {
			return template.HTML(blackfriday.Run([]byte(text)))
		},
	}

	scriptTemplate = template.Must(template.New("script.html").Funcs(templateFuncMap).ParseFS(templateFS, "templates/script.html"))
)

// Markdown renders the script as a markdown document
func Markdown(s *domain.Script, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)
	fmt.Fprintf(&b, "_%s_\n\n", s.CreatedAt.Format("02/01/2006 15:04"))
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// ExportScript writes the script to w. body is the content as it should be
// presented, usually the output of a generator.Formatter.
func ExportScript(w io.Writer, s *domain.Script, body string, format ExportFormat) error {
	switch format {
	case ExportText, "":
		_, err := io.WriteString(w, body)
		return err
	case ExportMarkdown:
		_, err := io.WriteString(w, Markdown(s, body))
		return err
	case ExportHTML:
		return scriptTemplate.Execute(w, map[string]any{
			"Title":    s.Title,
			"Created":  s.CreatedAt.Format("02/01/2006 15:04"),
			"Markdown": body,
		})
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// ExportFileName is the file name used when exporting a script to a folder
func ExportFileName(s *domain.Script, format ExportFormat) string {
	title := s.Title
	if r := []rune(title); len(r) > 60 {
		title = string(r[:60])
	}
	return fmt.Sprintf("%d_%s.%s", s.ID, storage.SafeName(title, "script"), format)
}

// ExportToDir writes the script into the export folder, falling back to the
// secondary folder, and returns the full path written
func (a *App) ExportToDir(s *domain.Script, mode generator.Mode, format ExportFormat) (string, error) {
	var buf bytes.Buffer
	if err := ExportScript(&buf, s, a.Formatter().Format(s.Content, mode), format); err != nil {
		return "", fmt.Errorf("while rendering script: %w", err)
	}
	fs, dir, fellBack, err := storage.OpenDir(a.Config.Export.Dir, a.Config.Export.FallbackDir)
	if err != nil {
		return "", fmt.Errorf("while opening export folder: %w", err)
	}
	if fellBack {
		a.Logger.Sugar().Warnf("export folder %s unavailable, using %s", a.Config.Export.Dir, dir)
	}
	name := ExportFileName(s, format)
	if err := storage.WriteAtomic(fs, name, buf.Bytes()); err != nil {
		return "", fmt.Errorf("while writing %s: %w", name, err)
	}
	return fs.Join(dir, name), nil
}
