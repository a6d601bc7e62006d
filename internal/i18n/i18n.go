// Package i18n localises the messages shown to the person running an acquisition.
package i18n

import (
	"embed"
	"encoding/json"
	"log"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localesFS embed.FS

// DefaultLanguage is used when no language is requested
const DefaultLanguage = "en"

var (
	bundle     *i18n.Bundle
	bundleOnce sync.Once
)

func loadBundle() *i18n.Bundle {
	bundleOnce.Do(func() {
		bundle = i18n.NewBundle(language.English)
		bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

		for _, locale := range []string{"en", "pt-BR"} {
			data, err := localesFS.ReadFile("locales/" + locale + ".json")
			if err != nil {
				log.Printf("Warning: failed to read locale file %s: %v", locale, err)
				continue
			}
			if _, err := bundle.ParseMessageFileBytes(data, locale+".json"); err != nil {
				log.Printf("Warning: failed to parse locale file %s: %v", locale, err)
			}
		}
	})
	return bundle
}

// Localizer translates message IDs for a list of preferred languages
type Localizer struct {
	localizer *i18n.Localizer
}

// New creates a localizer; unknown languages fall back to English
func New(langs ...string) *Localizer {
	if len(langs) == 0 {
		langs = []string{DefaultLanguage}
	}
	return &Localizer{localizer: i18n.NewLocalizer(loadBundle(), langs...)}
}

// Localize translates a message ID with optional template data.
// The message ID itself is returned when no translation exists.
func (l *Localizer) Localize(messageID string, data map[string]any) string {
	if l == nil || l.localizer == nil {
		return messageID
	}
	msg, err := l.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}
