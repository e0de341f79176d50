// Package upstream は開発用のニュース集約サーバーを提供する。
// RSSフィードから記事を集め、ニュースAPIと同じ形式のエンベロープを返す。
package upstream

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeedSource は記事を集めるRSSフィード1件の設定。
type FeedSource struct {
	URL    string `yaml:"url"`
	Source string `yaml:"source"` // カードに表示する配信元名。空の場合はフィードのタイトルを使う
}

// feedsFile はUPSTREAM_FEEDS_FILEの形式。
type feedsFile struct {
	Feeds []FeedSource `yaml:"feeds"`
}

// DefaultFeeds はフィード設定ファイルが指定されていない場合に使うフィード。
var DefaultFeeds = []FeedSource{
	{URL: "https://www3.nhk.or.jp/rss/news/cat6.xml", Source: "NHKニュース"},
	{URL: "https://www3.nhk.or.jp/rss/news/cat7.xml", Source: "NHKニュース"},
	{URL: "https://asia.nikkei.com/rss/feed/nar", Source: "NHKニュース"},
	{URL: "https://news.yahoo.co.jp/rss/topics/business.xml", Source: "Yahoo!ニュース"},
}

// LoadFeeds はYAMLファイルからフィード一覧を読み込む。
// pathが空の場合はDefaultFeedsを返す。
func LoadFeeds(path string) ([]FeedSource, error) {
	if path == "" {
		return DefaultFeeds, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file: %w", err)
	}
	return parseFeeds(data)
}

func parseFeeds(data []byte) ([]FeedSource, error) {
	var f feedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse feeds file: %w", err)
	}

	feeds := make([]FeedSource, 0, len(f.Feeds))
	for i, feed := range f.Feeds {
		feed.URL = strings.TrimSpace(feed.URL)
		if feed.URL == "" {
			return nil, fmt.Errorf("feeds[%d]: url is required", i)
		}
		feed.Source = strings.TrimSpace(feed.Source)
		feeds = append(feeds, feed)
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("feeds file contains no feeds")
	}
	return feeds, nil
}
