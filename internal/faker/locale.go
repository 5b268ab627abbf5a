package faker

import (
	"strings"

	"golang.org/x/text/language"
)

// supportedLocales are the locales schema files may name. gofakeit itself
// only ships English data; the tag is kept on the call for resolvers that
// localize.
var supportedLocales = []language.Tag{
	language.English, // first entry is the matcher's fallback
	language.BritishEnglish,
	language.AmericanEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.Italian,
	language.Portuguese,
	language.BrazilianPortuguese,
	language.Dutch,
	language.Polish,
	language.Russian,
	language.Ukrainian,
	language.Czech,
	language.Slovak,
	language.Swedish,
	language.Danish,
	language.Finnish,
	language.Norwegian,
	language.Turkish,
	language.Greek,
	language.Japanese,
	language.Korean,
	language.Chinese,
}

var matcher = language.NewMatcher(supportedLocales)

// ResolveLocale maps a schema locale ("en", "DE", "pt_br") to a supported
// tag. ok is false when the input was not recognized and English was used.
func ResolveLocale(locale string) (tag language.Tag, ok bool) {
	s := strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if s == "" {
		return language.English, false
	}
	t, err := language.Parse(s)
	if err != nil {
		return language.English, false
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return language.English, false
	}
	return supportedLocales[idx], true
}
