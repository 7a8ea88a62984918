// Package wisatatypes provides shared type definitions for the WisataChat
// conversational session engine. It defines the session and message data
// model, the assistant wire contract, and the interfaces the services in
// internal/services depend on.
package wisatatypes

// Language identifies the conversation language sent to the assistant
// backend and used to pick the speech-recognition locale.
type Language string

// Supported conversation languages. The values are the wire values the
// JemberTrip backend expects in the chat request payload.
const (
	LanguageIndonesian Language = "id"     // Bahasa Indonesia (default)
	LanguageJavanese   Language = "jowo"   // Javanese (Jemberan dialect)
	LanguageMadurese   Language = "madura" // Madurese (Pandalungan dialect)
)

// DefaultLanguage is the language used on first run and whenever a persisted
// value cannot be recognized.
const DefaultLanguage = LanguageIndonesian

// ParseLanguage converts a persisted or user-supplied string into a
// Language. Unknown values fall back to DefaultLanguage rather than failing,
// so a stale or corrupted store entry can never wedge the engine.
func ParseLanguage(s string) Language {
	switch Language(s) {
	case LanguageIndonesian, LanguageJavanese, LanguageMadurese:
		return Language(s)
	default:
		return DefaultLanguage
	}
}

// Valid reports whether l is one of the three supported languages.
func (l Language) Valid() bool {
	return l == LanguageIndonesian || l == LanguageJavanese || l == LanguageMadurese
}

// SpeechLocale returns the BCP 47 locale passed to the speech recognizer for
// this language. There is no Madurese recognition locale, so Madurese falls
// back to Indonesian; the caller gets a best-effort transcript rather than
// no voice input at all.
func (l Language) SpeechLocale() string {
	switch l {
	case LanguageJavanese:
		return "jv-ID"
	case LanguageIndonesian, LanguageMadurese:
		return "id-ID"
	default:
		return "id-ID"
	}
}

// DisplayName returns the human-readable name shown in the language menu.
func (l Language) DisplayName() string {
	switch l {
	case LanguageJavanese:
		return "Jawa"
	case LanguageMadurese:
		return "Madura"
	default:
		return "Indonesia"
	}
}
