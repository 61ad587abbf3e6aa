package catalog

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/courseman/internal/model"
)

// MediaKind はメディアURLの種類を表す。
type MediaKind string

const (
	// MediaKindImage は画像コンテンツ。
	MediaKindImage MediaKind = "image"
	// MediaKindVideo は動画コンテンツ。
	MediaKindVideo MediaKind = "video"
	// MediaKindPage は埋め込みプレイヤー等のHTMLページ。
	MediaKindPage MediaKind = "page"
)

// MediaPreview はメディアURLの検査結果を表す。
// HTMLページの場合はheadタグから抽出したタイトルとOGP画像を含む。
type MediaPreview struct {
	Kind        MediaKind
	ContentType string
	Title       string
	ImageURL    string
}

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// MediaInspector は講座メディアURLの検証とプレビュー取得を提供する。
type MediaInspector struct {
	ssrfGuard       SSRFValidator
	timeout         time.Duration
	maxResponseSize int64
}

// NewMediaInspector はMediaInspectorの新しいインスタンスを生成する。
func NewMediaInspector(ssrfGuard SSRFValidator, timeout time.Duration, maxResponseSize int64) *MediaInspector {
	return &MediaInspector{
		ssrfGuard:       ssrfGuard,
		timeout:         timeout,
		maxResponseSize: maxResponseSize,
	}
}

// ValidateMediaURL はメディアURLの安全性を事前に検証する。
// /static/で始まる相対パス（同梱アセット）は検証なしで許可し、
// それ以外はSSRF防止の静的検証を行う。
func (i *MediaInspector) ValidateMediaURL(rawURL string) error {
	if strings.HasPrefix(rawURL, "/static/") {
		return nil
	}

	if err := i.ssrfGuard.ValidateURL(rawURL); err != nil {
		return model.NewSSRFBlockedError()
	}
	return nil
}

// imageContentTypes は画像として認識するContent-Typeの接頭辞。
var imageContentTypes = []string{"image/"}

// videoContentTypes は動画として認識するContent-Typeの接頭辞。
var videoContentTypes = []string{"video/"}

// Inspect はメディアURLを取得してContent-Typeを判定し、プレビューを返す。
// HTTPクライアントはSSRF防止付きのものを使用するため、
// DNS再バインディングを含む内部ネットワークへのアクセスは接続時にブロックされる。
func (i *MediaInspector) Inspect(rawURL string) (*MediaPreview, error) {
	if err := i.ValidateMediaURL(rawURL); err != nil {
		return nil, err
	}
	if strings.HasPrefix(rawURL, "/static/") {
		return &MediaPreview{Kind: MediaKindImage}, nil
	}

	client := i.ssrfGuard.NewSafeClient(i.timeout, i.maxResponseSize)
	resp, err := client.Get(rawURL)
	if err != nil {
		return nil, model.NewInvalidURLError("メディアURLに到達できません")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewInvalidURLError(fmt.Sprintf("メディアURLがステータス %d を返しました", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, i.maxResponseSize))
	if err != nil {
		return nil, model.NewInvalidURLError("メディアURLの読み取りに失敗しました")
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	switch {
	case hasAnyPrefix(mediaType, imageContentTypes):
		return &MediaPreview{Kind: MediaKindImage, ContentType: mediaType}, nil
	case hasAnyPrefix(mediaType, videoContentTypes):
		return &MediaPreview{Kind: MediaKindVideo, ContentType: mediaType}, nil
	case mediaType == "text/html":
		preview := parsePagePreview(body, rawURL)
		preview.ContentType = mediaType
		return preview, nil
	}

	return nil, model.NewInvalidURLError(fmt.Sprintf("メディアとして扱えないContent-Typeです: %s", mediaType))
}

// hasAnyPrefix はメディアタイプが接頭辞リストのいずれかで始まるかを検証する。
func hasAnyPrefix(mediaType string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(mediaType, p) {
			return true
		}
	}
	return false
}

// parsePagePreview はHTMLのheadタグからページタイトルとOGP画像を解析・抽出する。
// 埋め込みプレイヤーのURL（YouTube埋め込み等）のプレビュー表示に使用する。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func parsePagePreview(htmlBody []byte, baseURL string) *MediaPreview {
	preview := &MediaPreview{Kind: MediaKindPage}

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return preview
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false
	inTitle := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return preview

		case html.TextToken:
			if inTitle && preview.Title == "" {
				preview.Title = strings.TrimSpace(string(tokenizer.Text()))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return preview
			}

			if !inHead {
				continue
			}

			if tagName == "title" {
				inTitle = true
				continue
			}

			if tagName != "meta" || !hasAttr {
				continue
			}

			// meta要素の属性を解析
			var property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "property":
					property = strings.ToLower(v)
				case "content":
					content = v
				}
				if !more {
					break
				}
			}

			if property == "og:image" && content != "" && preview.ImageURL == "" {
				preview.ImageURL = resolveURL(baseU, content)
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "title":
				inTitle = false
			case "head":
				return preview
			}
		}
	}
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
