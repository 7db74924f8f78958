package config

import "golang.org/x/text/language"

// SupportedLanguages lists the interface languages, default first.
var SupportedLanguages = []string{"en", "zh-CN", "zh-TW", "ja", "ko", "fr", "de", "es", "ru"}

var languageMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(SupportedLanguages))
	for i, s := range SupportedLanguages {
		tags[i] = language.MustParse(s)
	}
	return language.NewMatcher(tags)
}()

// NormalizeLanguage maps any BCP 47 tag to the closest supported language,
// falling back to English.
func NormalizeLanguage(tag string) string {
	if tag == "" {
		return SupportedLanguages[0]
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return SupportedLanguages[0]
	}
	_, idx, confidence := languageMatcher.Match(parsed)
	if confidence == language.No {
		return SupportedLanguages[0]
	}
	return SupportedLanguages[idx]
}
