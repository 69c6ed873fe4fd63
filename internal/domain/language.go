// Package domain contains entity without logic, just meta-data
package domain

// Language is a declared speaking language, or AutoDetect.
type Language string

const (
	LangEnglish  Language = "en"
	LangHindi    Language = "hi"
	LangSpanish  Language = "es"
	LangFrench   Language = "fr"
	LangGerman   Language = "de"
	LangChinese  Language = "zh"
	LangJapanese Language = "ja"
	LangArabic   Language = "ar"
	LangAuto     Language = "auto"
)

var languages = map[Language]struct{}{
	LangEnglish: {}, LangHindi: {}, LangSpanish: {}, LangFrench: {},
	LangGerman: {}, LangChinese: {}, LangJapanese: {}, LangArabic: {},
	LangAuto: {},
}

// ParseLanguage validates a wire value against the fixed language set.
func ParseLanguage(s string) (Language, error) {
	l := Language(s)
	if _, ok := languages[l]; !ok {
		return "", ErrUnknownLanguage
	}
	return l, nil
}

// CompatibleWith reports whether two declared languages may be paired:
// any two distinct languages, or anything when either side is auto.
func (l Language) CompatibleWith(other Language) bool {
	if l == LangAuto || other == LangAuto {
		return true
	}
	return l != other
}

func (l Language) String() string { return string(l) }
