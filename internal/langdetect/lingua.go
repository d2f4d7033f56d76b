package langdetect

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// Guard drops feed entries whose detected title language confidently
// contradicts the configured feed language. The upstream language filter is
// advisory only; publishers mislabel their items.
type Guard struct {
	language string

	detectorOnce sync.Once
	detector     lingua.LanguageDetector
}

// NewGuard builds a guard for a primary ISO 639-1 language code.
func NewGuard(language string) (*Guard, error) {
	code := strings.ToLower(strings.TrimSpace(language))
	if len(code) != 2 {
		return nil, fmt.Errorf("language guard requires a two-letter ISO 639-1 code, got %q", language)
	}
	return &Guard{language: code}, nil
}

// Allows reports whether a title is acceptable for the configured language.
// Titles too short for reliable detection always pass, as does any title the
// detector cannot classify.
func (g *Guard) Allows(title string) bool {
	if g == nil {
		return true
	}

	sample := strings.TrimSpace(title)
	if sample == "" {
		return true
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return true
	}

	language, exists := g.getDetector().DetectLanguageOf(sample)
	if !exists {
		return true
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return true
	}
	return code == g.language
}

func (g *Guard) getDetector() lingua.LanguageDetector {
	g.detectorOnce.Do(func() {
		g.detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithPreloadedLanguageModels().
			Build()
	})
	return g.detector
}
