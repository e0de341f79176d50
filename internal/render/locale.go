package render

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Locale は表示言語と、その言語での短い日付の書式。
type Locale struct {
	Tag    language.Tag
	layout string
}

// FormatDate は時刻をこのロケールの短い日付形式で返す。
func (l Locale) FormatDate(t time.Time) string {
	return t.Format(l.layout)
}

// supportedLocales はブラウザの toLocaleDateString 相当の短い日付書式。
var supportedLocales = []Locale{
	{Tag: language.MustParse("ja-JP"), layout: "2006/1/2"},
	{Tag: language.MustParse("en-US"), layout: "1/2/2006"},
	{Tag: language.MustParse("en-GB"), layout: "02/01/2006"},
	{Tag: language.MustParse("zh-CN"), layout: "2006/1/2"},
	{Tag: language.MustParse("ko-KR"), layout: "2006. 1. 2."},
	{Tag: language.MustParse("de-DE"), layout: "2.1.2006"},
	{Tag: language.MustParse("fr-FR"), layout: "02/01/2006"},
}

// Locales はAccept-Languageから表示ロケールを選ぶ。
type Locales struct {
	matcher language.Matcher
	locales []Locale
}

// NewLocales は既定ロケールを先頭にしたマッチャーを生成する。
// 既定ロケールがサポート外の場合は最も近いサポート済みロケールを既定にする。
func NewLocales(defaultLocale string) *Locales {
	def := supportedLocales[0]
	if tag, err := language.Parse(defaultLocale); err == nil {
		tags := make([]language.Tag, len(supportedLocales))
		for i, l := range supportedLocales {
			tags[i] = l.Tag
		}
		_, index, _ := language.NewMatcher(tags).Match(tag)
		def = supportedLocales[index]
	}

	locales := []Locale{def}
	for _, l := range supportedLocales {
		if l.Tag != def.Tag {
			locales = append(locales, l)
		}
	}

	tags := make([]language.Tag, len(locales))
	for i, l := range locales {
		tags[i] = l.Tag
	}

	return &Locales{
		matcher: language.NewMatcher(tags),
		locales: locales,
	}
}

// Default は既定ロケールを返す。
func (l *Locales) Default() Locale {
	return l.locales[0]
}

// Match はAccept-Languageヘッダーに最も合うロケールを返す。
// ヘッダーが空または解釈できない場合は既定ロケールを返す。
func (l *Locales) Match(acceptLanguage string) Locale {
	if strings.TrimSpace(acceptLanguage) == "" {
		return l.Default()
	}
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return l.Default()
	}
	_, index, confidence := l.matcher.Match(prefs...)
	if confidence == language.No {
		return l.Default()
	}
	return l.locales[index]
}

// publishedLayouts は記事の公開日時として受け付ける書式。先頭から順に試す。
var publishedLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// ParsePublished は公開日時の文字列を解釈する。
// タイムゾーンを含まない書式はlocの時刻として扱い、結果はlocに変換して返す。
func ParsePublished(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// FormatPublished は公開日時をロケールの短い日付にする。解釈できない場合は元の文字列を返す。
func FormatPublished(raw string, locale Locale, loc *time.Location) string {
	t, ok := ParsePublished(raw, loc)
	if !ok {
		return raw
	}
	return locale.FormatDate(t)
}
