package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Prompts are the built-in theme suggestions
var Prompts = []string{
	"Gere um roteiro detalhado sobre a mitologia Anunnaki e sua presença na história humana",
	"Crie um roteiro educativo explicando quem são os Anunnaki de acordo com textos sumérios",
	"Desenvolva um roteiro explorando a teoria de que os Anunnaki visitaram a Terra",
	"Elabore um roteiro sobre os textos históricos e como descrevem os Anunnaki",
	"Gere um roteiro cobrindo as teorias sobre os Anunnaki e antigas civilizações",
	"Crie um roteiro comparando mitologias Anunnaki com outras civilizações",
	"Desenvolva um roteiro sobre símbolos Anunnaki encontrados em artefatos antigos",
	"Gere um roteiro explicando a genealogia dos Anunnaki",
	"Elabore um roteiro sobre tecnologia antiga e os Anunnaki",
	"Crie um roteiro explorando o papel dos Anunnaki em diferentes religiões",
}

// RandomPrompt picks one of the built-in suggestions
func RandomPrompt(rng *rand.Rand) string {
	if rng == nil {
		return Prompts[rand.Intn(len(Prompts))]
	}
	return Prompts[rng.Intn(len(Prompts))]
}

// DefaultTitlePrefix names scripts generated without a prompt
const DefaultTitlePrefix = "Roteiro"

// Title is the prompt itself, or "<prefix> dd/mm HH:MM" when the prompt is empty
func Title(prompt, prefix string, now time.Time) string {
	if title := strings.TrimSpace(prompt); title != "" {
		return title
	}
	if prefix == "" {
		prefix = DefaultTitlePrefix
	}
	return fmt.Sprintf("%s %s", prefix, now.Format("02/01 15:04"))
}
