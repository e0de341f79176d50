package render

// 集約サービスが「リンクなし」の意味で出力するダミーURL。
const (
	SentinelMizutaniNews = "https://example.com/mizutani-news"
	SentinelEconomicNews = "https://example.com/economic-news"
)

// IsLinkable は記事URLを外部リンクとして表示してよいかを返す。
// 空文字列とダミーURLは表示しない。比較は完全一致。
func IsLinkable(url string) bool {
	switch url {
	case "", SentinelMizutaniNews, SentinelEconomicNews:
		return false
	}
	return true
}
