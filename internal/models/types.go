package models

// Locales the client ships translations for
const (
	LocaleEnglish = "en"
	LocaleArabic  = "ar"
)

// SupportedLocales lists every locale with a home route
var SupportedLocales = []string{LocaleEnglish, LocaleArabic}

// IsSupportedLocale reports whether locale has a home route
func IsSupportedLocale(locale string) bool {
	for _, l := range SupportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}
