package view

import (
	"strings"
	"sync"

	"github.com/hitoshi/topnews/internal/model"
)

// Card はグリッド上のカード1枚。表示する画像URLはカードごとの状態として持ち、
// 他のカードやビュー全体の状態とは独立に変更される。
type Card struct {
	Item model.NewsItem

	mu       sync.Mutex
	imageSrc string
	fallback bool
}

// newCards はスナップショットの順序どおりにカードを生成する。
// image_urlが空のカードは読み込みに失敗したものとして最初から代替画像を使う。
func newCards(items []model.NewsItem, fallbackURL string) []*Card {
	cards := make([]*Card, len(items))
	for i, item := range items {
		c := &Card{
			Item:     item,
			imageSrc: item.ImageURL,
		}
		if strings.TrimSpace(item.ImageURL) == "" {
			c.imageSrc = fallbackURL
			c.fallback = true
		}
		cards[i] = c
	}
	return cards
}

// ImageSrc は現在表示すべき画像URLと、代替画像に切り替え済みかどうかを返す。
func (c *Card) ImageSrc() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imageSrc, c.fallback
}

// markBroken は画像を代替画像に切り替える。既に切り替え済みの場合はfalseを返す。
func (c *Card) markBroken(fallbackURL string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback {
		return false
	}
	c.imageSrc = fallbackURL
	c.fallback = true
	return true
}
