// Package generator produces narrative scripts with a generative text API,
// trying an ordered list of models until one answers.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lewtec/roteiro/internal/metrics"
)

var (
	// ErrNoClient is returned when no text generation client is configured
	ErrNoClient = errors.New("text generation client not configured")
	// ErrAllModelsFailed wraps the last error when every model failed
	ErrAllModelsFailed = errors.New("script generation failed with every model")
	// ErrEmptyResponse is returned by clients when the model answers with no text
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// DefaultModels is the fallback order used when none is configured
var DefaultModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
}

const DefaultSystemInstruction = "Você é um roteirista especializado em mitologia suméria e na teoria dos Antigos Astronautas, " +
	"com foco nos Anunnakis. Sua tarefa é criar um roteiro de história detalhado e envolvente " +
	"baseado no prompt do usuário. O roteiro deve ser estruturado em cenas e parágrafos. " +
	"Inclua sugestões de tempo de leitura/duração para cada cena (ex: [Duração: 2 minutos]). " +
	"O roteiro deve ser totalmente controlável pelo usuário, então use títulos de cena claros e " +
	"parágrafos bem definidos. O tema principal é sempre relacionado aos Anunnakis."

const DefaultPromptTemplate = "Crie um roteiro de história sobre Anunnakis com o seguinte tema: '{{.Theme}}'"

// ContentClient sends one prompt to one model
type ContentClient interface {
	GenerateContent(ctx context.Context, model, systemInstruction, prompt string) (string, error)
}

// Config controls prompts, models and request pacing
type Config struct {
	Models            []string
	SystemInstruction string
	PromptTemplate    string
	// RequestsPerMinute limits calls to the API; zero disables the limit
	RequestsPerMinute int
}

// Generator turns a theme into a script
type Generator struct {
	client  ContentClient
	models  []string
	system  string
	prompt  *template.Template
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a Generator. A nil client is allowed; Generate then fails with ErrNoClient.
func New(client ContentClient, cfg Config, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	models := uniqueModels(cfg.Models)
	if len(models) == 0 {
		models = DefaultModels
	}
	system := cfg.SystemInstruction
	if system == "" {
		system = DefaultSystemInstruction
	}
	text := cfg.PromptTemplate
	if text == "" {
		text = DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("while parsing prompt template: %w", err)
	}

	g := &Generator{
		client: client,
		models: models,
		system: system,
		prompt: tmpl,
		logger: logger,
	}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return g, nil
}

// Models returns the fallback order in use
func (g *Generator) Models() []string {
	return append([]string(nil), g.models...)
}

// Prompt renders the full prompt for a theme
func (g *Generator) Prompt(theme string) (string, error) {
	var b strings.Builder
	if err := g.prompt.Execute(&b, map[string]string{"Theme": theme}); err != nil {
		return "", fmt.Errorf("while rendering prompt: %w", err)
	}
	return b.String(), nil
}

// Generate tries each model in order and returns the first answer together
// with the model that produced it.
func (g *Generator) Generate(ctx context.Context, theme string) (string, string, error) {
	if g.client == nil {
		return "", "", ErrNoClient
	}
	prompt, err := g.Prompt(theme)
	if err != nil {
		return "", "", err
	}

	var lastErr error
	for _, model := range g.models {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", "", err
			}
		}
		g.logger.Info("generating script", zap.String("model", model))
		text, err := g.client.GenerateContent(ctx, model, g.system, prompt)
		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrEmptyResponse
		}
		if err != nil {
			metrics.GenerationAttemptsTotal.WithLabelValues(model, "error").Inc()
			g.logger.Warn("model failed, trying next", zap.String("model", model), zap.Error(err))
			lastErr = err
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
			continue
		}
		metrics.GenerationAttemptsTotal.WithLabelValues(model, "ok").Inc()
		g.logger.Info("script generated", zap.String("model", model), zap.Int("chars", len(text)))
		return text, model, nil
	}
	return "", "", fmt.Errorf("%w: %w", ErrAllModelsFailed, lastErr)
}

func uniqueModels(models []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range models {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
