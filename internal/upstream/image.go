package upstream

import (
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

// entryImage は記事の画像URLを決める。
// フィードの画像、画像のエンクロージャ、本文中の最初の<img>の順に探し、
// 見つからなければタイトルのキーワードから画像を選ぶ。
func entryImage(entry *gofeed.Item) string {
	if entry.Image != nil && isHTTPURL(entry.Image.URL) {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && isHTTPURL(enc.URL) {
			return enc.URL
		}
	}
	for _, fragment := range []string{entry.Content, entry.Description} {
		if src := FirstImage(fragment, entry.Link); src != "" {
			return src
		}
	}
	return StockImage(entry.Title)
}

// FirstImage はHTML断片に含まれる最初の<img>のsrcを絶対URLで返す。
// 相対URLはbaseURLを基準に解決する。http(s)以外のURLは無視する。
func FirstImage(fragment, baseURL string) string {
	if !strings.Contains(fragment, "<") {
		return ""
	}

	base, _ := url.Parse(baseURL)
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			if string(tn) != "img" || !hasAttr {
				continue
			}

			var src string
			for {
				key, val, more := tokenizer.TagAttr()
				if strings.ToLower(string(key)) == "src" {
					src = strings.TrimSpace(string(val))
				}
				if !more {
					break
				}
			}

			if resolved := resolveImageURL(base, src); resolved != "" {
				return resolved
			}
		}
	}
}

func resolveImageURL(base *url.URL, src string) string {
	if src == "" {
		return ""
	}
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if !isHTTPURL(ref.String()) {
		return ""
	}
	return ref.String()
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
