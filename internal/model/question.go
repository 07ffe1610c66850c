package model

import (
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Language tags used to mirror the answer language. Detection is
// script-based only; the pipeline never parses the language tag.
const (
	LanguageUkrainian = "uk"
	LanguageEnglish   = "en"
)

// Question is a single free-text analytics question. Immutable once created.
type Question struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	AskedAt  time.Time `json:"asked_at"`
}

// NewQuestion builds a Question from raw user text. The text is NFC
// normalized so composed and decomposed Cyrillic forms match the same
// extraction patterns.
func NewQuestion(text string) Question {
	normalized := norm.NFC.String(text)
	return Question{
		Text:     normalized,
		Language: DetectLanguage(normalized),
		AskedAt:  time.Now().UTC(),
	}
}

// DetectLanguage infers the question language from its script: any
// Cyrillic rune marks the question as Ukrainian, otherwise English.
func DetectLanguage(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) {
			return LanguageUkrainian
		}
	}
	return LanguageEnglish
}
