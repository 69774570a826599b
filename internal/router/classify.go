package router

import "strings"

// Category is the local handling bucket for a message.
type Category string

const (
	CategoryStatus  Category = "status"
	CategoryHelp    Category = "help"
	CategoryGeneral Category = "general"
)

var statusPhrases = []string{
	"status",
	"are you up",
	"are you there",
	"are you online",
	"you alive",
	"health check",
	"ping",
}

var helpPhrases = []string{
	"help",
	"what can you do",
	"commands",
	"how do i use",
	"usage",
}

// Classify buckets message content by keyword and phrase matching. It is
// pure string work and never fails; anything unmatched is CategoryGeneral.
func Classify(content string) Category {
	text := strings.ToLower(strings.TrimSpace(content))
	if text == "" {
		return CategoryGeneral
	}
	if matchesAny(text, statusPhrases) {
		return CategoryStatus
	}
	if matchesAny(text, helpPhrases) {
		return CategoryHelp
	}
	return CategoryGeneral
}

func matchesAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if text == p {
			return true
		}
		// Phrases with a space match anywhere; single keywords only as
		// a whole word, so "helpful tips please" stays general.
		if strings.Contains(p, " ") && strings.Contains(text, p) {
			return true
		}
		if !strings.Contains(p, " ") && containsWord(text, p) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '?' || r == '!' || r == '.' || r == ','
	}) {
		if f == word {
			return true
		}
	}
	return false
}
