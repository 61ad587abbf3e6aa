// Package payment は決済ゲートウェイ（Stripe互換のCheckout Session API）
// との連携を提供する。Checkout Intentの作成と終端ステータスの照会を含む。
// Intentはゲートウェイ側が所有する不透明なオブジェクトであり、
// 「支払いが成功したか」の唯一の真実の源として扱う。
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// defaultEndpoint はCheckout Session APIのベースエンドポイント。
	defaultEndpoint = "https://api.stripe.com/v1/checkout/sessions"
)

// Status はCheckout Intentの支払いステータスを表す。
type Status string

const (
	// StatusPaid は支払い完了を示す。
	StatusPaid Status = "paid"
	// StatusUnpaid は未払い（失敗・放棄を含む）を示す。
	StatusUnpaid Status = "unpaid"
	// StatusPending は支払い進行中を示す。
	StatusPending Status = "pending"
)

// CheckoutSession はゲートウェイに作成されたCheckout Intentを表す。
type CheckoutSession struct {
	ID  string // Intentの識別子（セッションID）
	URL string // ホスト型決済ページのURL
}

// SessionStatus はCheckout Intentの照会結果を表す。
type SessionStatus struct {
	ID       string
	Status   Status
	CourseID string // Intent作成時にmetadataへ記録した講座ID
}

// CreateParams はCheckout Intent作成のパラメータ。
type CreateParams struct {
	Description      string // 講座タイトル
	AmountMinorUnits int    // 通貨最小単位の金額
	Currency         string
	SuccessURL       string
	CancelURL        string
	CourseID         string // metadataとしてIntentに記録する
}

// Gateway は決済ゲートウェイのインターフェース。
// Purchase Reconcilerとテストのモックが利用する。
type Gateway interface {
	// CreateCheckoutSession はCheckout Intentを作成し、
	// セッションIDとホスト型決済ページURLを返す。
	CreateCheckoutSession(ctx context.Context, params CreateParams) (*CheckoutSession, error)

	// GetSessionStatus はCheckout Intentの支払いステータスを照会する。
	GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error)
}

// Client は決済ゲートウェイAPIのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
	}
}

// checkoutSessionResponse はCheckout Session APIのレスポンスボディ。
type checkoutSessionResponse struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`         // open, complete, expired
	PaymentStatus string            `json:"payment_status"` // paid, unpaid, no_payment_required
	Metadata      map[string]string `json:"metadata"`
}

// CreateCheckoutSession はCheckout Intentを作成する。
// 金額は通貨最小単位の整数としてそのまま送信する。
func (c *Client) CreateCheckoutSession(ctx context.Context, params CreateParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price_data][currency]", params.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.Itoa(params.AmountMinorUnits))
	form.Set("line_items[0][price_data][product_data][name]", params.Description)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("metadata[course_id]", params.CourseID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Checkout Intentの作成リクエストに失敗しました",
			slog.String("error", err.Error()),
			slog.String("course_id", params.CourseID),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("決済ゲートウェイがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("course_id", params.CourseID),
		)
		return nil, fmt.Errorf("決済ゲートウェイがステータス %d を返しました", resp.StatusCode)
	}

	var result checkoutSessionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if result.ID == "" || result.URL == "" {
		return nil, fmt.Errorf("決済ゲートウェイのレスポンスが不完全です")
	}

	return &CheckoutSession{
		ID:  result.ID,
		URL: result.URL,
	}, nil
}

// GetSessionStatus はCheckout Intentの支払いステータスを照会する。
// payment_statusが"paid"ならpaid、セッションが"open"（決済継続中）ならpending、
// それ以外はunpaidとして扱う。
func (c *Client) GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Checkout Intentの照会リクエストに失敗しました",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("決済ゲートウェイがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("session_id", sessionID),
		)
		return nil, fmt.Errorf("決済ゲートウェイがステータス %d を返しました", resp.StatusCode)
	}

	var result checkoutSessionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	status := StatusUnpaid
	switch {
	case result.PaymentStatus == "paid":
		status = StatusPaid
	case result.Status == "open":
		status = StatusPending
	}

	return &SessionStatus{
		ID:       result.ID,
		Status:   status,
		CourseID: result.Metadata["course_id"],
	}, nil
}

// compile-time interface check
var _ Gateway = (*Client)(nil)
