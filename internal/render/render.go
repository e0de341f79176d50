// Package render はビューのフレームをHTMLに描画する。
//
// 描画はフレームだけを入力とする純粋な関数で、ビューの状態を変更しない。
// フェーズがLoadingの間は読み込み表示のみを描画し、それ以外ではヘッダー、
// 概要パネル、カードのグリッドを描画する。
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/hitoshi/topnews/internal/view"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Static は/static/配下で配信するJS/CSSを返す。
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static assets are not embedded: %v", err))
	}
	return sub
}

// Options はRendererの設定を保持する。
type Options struct {
	DefaultLocale   string
	Location        *time.Location
	ShowFetchErrors bool
	// PollInterval は取得中に再描画を促すmeta refreshの秒数。
	PollInterval int
}

// Request は1回の描画に必要なリクエスト由来の値。
type Request struct {
	AcceptLanguage string
	CSRFToken      string
}

// Renderer はフレームをHTMLページに描画する。
type Renderer struct {
	tmpl     *template.Template
	locales  *Locales
	location *time.Location
	showErrs bool
	poll     int
}

// NewRenderer はテンプレートを読み込んでRendererを生成する。
func NewRenderer(opts Options) (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 1
	}

	return &Renderer{
		tmpl:     tmpl,
		locales:  NewLocales(opts.DefaultLocale),
		location: loc,
		showErrs: opts.ShowFetchErrors,
		poll:     poll,
	}, nil
}

// page はテンプレートに渡すページ全体のデータ。
type page struct {
	Lang         string
	Loading      bool
	Refreshing   bool
	PollInterval int
	CSRFToken    string
	LastUpdated  string
	Summary      string
	Generation   uint64
	FallbackURL  string
	Notice       string
	Cards        []card
}

// card はテンプレートに渡すカード1枚分のデータ。
type card struct {
	Index     int
	Title     string
	Summary   string
	Category  string
	Source    string
	Published string
	URL       string
	HasLink   bool
	ImageSrc  string
	Fallback  bool
}

// Render はフレームをHTMLとしてwに書き出す。
// テンプレートの実行が途中で失敗しても不完全なHTMLを書き出さないよう、バッファに描画してから書き出す。
func (r *Renderer) Render(w io.Writer, frame view.Frame, req Request) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "page.html", r.page(frame, req)); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// page はフレームを描画用のデータに変換する。カード単位の不正なデータはそのカードの中で吸収する。
// タイトルと要約は受け取った文字列のまま渡し、エスケープはhtml/templateに任せる。
func (r *Renderer) page(frame view.Frame, req Request) page {
	locale := r.locales.Match(req.AcceptLanguage)

	p := page{
		Lang:         locale.Tag.String(),
		Loading:      frame.Phase == view.PhaseLoading,
		Refreshing:   frame.Refreshing(),
		PollInterval: r.poll,
		CSRFToken:    req.CSRFToken,
		LastUpdated:  frame.LastUpdated,
		Summary:      frame.OverallSummary,
		Generation:   frame.Generation,
		FallbackURL:  frame.FallbackImageURL,
	}
	if p.Loading {
		return p
	}

	if r.showErrs && frame.LastFailure != nil {
		p.Notice = failureNotice(frame)
	}

	p.Cards = make([]card, len(frame.Cards))
	for i, c := range frame.Cards {
		p.Cards[i] = card{
			Index:     c.Index,
			Title:     c.Item.Title,
			Summary:   c.Item.Summary,
			Category:  c.Item.Category,
			Source:    c.Item.Source,
			Published: FormatPublished(c.Item.Published, locale, r.location),
			URL:       c.Item.URL,
			HasLink:   IsLinkable(c.Item.URL),
			ImageSrc:  c.ImageSrc,
			Fallback:  c.ImageFallback,
		}
	}
	return p
}

// failureNotice は直近の取得失敗を利用者向けの文に変換する。
func failureNotice(frame view.Frame) string {
	at := frame.LastFailure.At.Format("15:04:05")
	if frame.HasSnapshot {
		return fmt.Sprintf("%s にニュースの更新に失敗しました。前回取得したニュースを表示しています。", at)
	}
	return fmt.Sprintf("%s にニュースの取得に失敗しました。「ニュース更新」で再試行できます。", at)
}
