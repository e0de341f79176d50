package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は記事のタイトルや要約に含まれるマークアップを除去してプレーンテキストにする。
// RSS由来の要約はHTML断片を含むことがあるため、カードには文字列としてのみ表示する。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer は全タグを除去するポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	p := bluemonday.StrictPolicy()
	// <p>a</p><p>b</p> が "ab" に連結されないようタグ位置に空白を残す
	p.AddSpaceWhenStrippingTag(true)

	return &TextSanitizer{policy: p}
}

// Text はマークアップを除去し、実体参照を戻し、連続する空白を1つにまとめた文字列を返す。
// 返り値はエスケープされていないため、HTMLに出力する側でエスケープすること。
func (s *TextSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Join(strings.Fields(stripped), " ")
}
