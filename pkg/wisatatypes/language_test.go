package wisatatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, LanguageIndonesian, ParseLanguage("id"))
	assert.Equal(t, LanguageJavanese, ParseLanguage("jowo"))
	assert.Equal(t, LanguageMadurese, ParseLanguage("madura"))

	// Unknown values fall back instead of failing.
	assert.Equal(t, DefaultLanguage, ParseLanguage(""))
	assert.Equal(t, DefaultLanguage, ParseLanguage("en"))
	assert.Equal(t, DefaultLanguage, ParseLanguage("JOWO"))
}

func TestLanguage_Valid(t *testing.T) {
	assert.True(t, LanguageIndonesian.Valid())
	assert.True(t, LanguageJavanese.Valid())
	assert.True(t, LanguageMadurese.Valid())
	assert.False(t, Language("sunda").Valid())
	assert.False(t, Language("").Valid())
}

func TestLanguage_SpeechLocale(t *testing.T) {
	assert.Equal(t, "id-ID", LanguageIndonesian.SpeechLocale())
	assert.Equal(t, "jv-ID", LanguageJavanese.SpeechLocale())

	// No Madurese recognition locale exists; Indonesian is the best effort.
	assert.Equal(t, "id-ID", LanguageMadurese.SpeechLocale())
}

func TestLanguage_DisplayName(t *testing.T) {
	assert.Equal(t, "Indonesia", LanguageIndonesian.DisplayName())
	assert.Equal(t, "Jawa", LanguageJavanese.DisplayName())
	assert.Equal(t, "Madura", LanguageMadurese.DisplayName())
}
