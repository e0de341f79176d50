package upstream

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/topnews/internal/model"
)

const (
	// 要約の長さの上限と下限（文字数）。
	longSummaryThreshold  = 300
	summaryMaxLength      = 280
	minTruncatedLength    = 100
	shortSummaryThreshold = 50
	paddedSummaryLimit    = 260

	overallSummaryLimit = 500
)

// ShortenSummary は記事の要約をカードに収まる長さに整える。
// 長い要約は文（。）の区切りで280文字以内に切り詰め、短すぎる要約にはタイトルを補う。
func ShortenSummary(summary, title string) string {
	n := utf8.RuneCountInString(summary)
	switch {
	case n > longSummaryThreshold:
		if truncated := truncateSentences(summary, summaryMaxLength); utf8.RuneCountInString(truncated) > minTruncatedLength {
			return truncated
		}
		// 文の区切りで切れない場合は最後の途中の語を落とす
		words := strings.Fields(truncateRunes(summary, summaryMaxLength))
		if len(words) > 1 {
			return strings.Join(words[:len(words)-1], " ")
		}
		return truncateRunes(summary, summaryMaxLength)

	case n < shortSummaryThreshold:
		padded := strings.TrimSpace(summary + " " + title + "に関する詳細情報です。")
		if utf8.RuneCountInString(padded) > paddedSummaryLimit {
			return truncateRunes(padded, paddedSummaryLimit-3) + "..."
		}
		return padded
	}
	return summary
}

// truncateSentences は先頭から文（。で終わる単位）をlimit文字以内で連結する。
func truncateSentences(s string, limit int) string {
	var b strings.Builder
	count := 0
	for _, sentence := range strings.Split(s, "。") {
		if sentence == "" {
			continue
		}
		n := utf8.RuneCountInString(sentence) + 1
		if count+n > limit {
			break
		}
		b.WriteString(sentence)
		b.WriteString("。")
		count += n
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// OverallSummary は集めた記事から全体概要を組み立てる。
// 件数、先頭3件の主要トピック（最大2つ）、配信元を含み、500文字を超える場合は省略する。
func OverallSummary(items []model.NewsItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "本日収集した%d件のニュースをお届けします。", len(items))

	var topics []string
	for i, item := range items {
		if i == 3 {
			break
		}
		topics = appendUnique(topics, topic(item.Title))
	}
	if len(topics) > 2 {
		topics = topics[:2]
	}
	if len(topics) > 0 {
		fmt.Fprintf(&b, "主要トピックは%sなどです。", strings.Join(topics, ", "))
	}

	var sources []string
	for _, item := range items {
		if item.Source != "" {
			sources = appendUnique(sources, item.Source)
		}
	}
	if len(sources) > 0 {
		fmt.Fprintf(&b, "情報源は%sなどの信頼できるメディアからお届けしています。", strings.Join(sources, ", "))
	}

	summary := b.String()
	if utf8.RuneCountInString(summary) > overallSummaryLimit {
		return truncateRunes(summary, overallSummaryLimit-3) + "..."
	}
	return summary
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
