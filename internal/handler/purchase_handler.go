package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/courseman/internal/middleware"
	"github.com/hitoshi/courseman/internal/model"
	"github.com/hitoshi/courseman/internal/purchase"
)

// PurchaseServiceInterface は購入ハンドラーが必要とするサービスインターフェース。
type PurchaseServiceInterface interface {
	Initiate(ctx context.Context, userID, courseID string) (*purchase.CheckoutRedirect, error)
	Finalize(ctx context.Context, sessionID, userID, courseID string) (*purchase.FinalizeResult, error)
	ListOwned(ctx context.Context, userID string) ([]purchase.OwnedCourse, error)
}

// PurchaseHandlerConfig は購入ハンドラーの設定。
type PurchaseHandlerConfig struct {
	BaseURL string // 購入フロー終端のリダイレクト先の組み立てに使用する
}

// PurchaseHandler は購入フローのHTTPハンドラー。
// 決済ゲートウェイからのブラウザリダイレクトを受けるため、
// 購入フローのハンドラーはエラーでもリダイレクトで終端する。
type PurchaseHandler struct {
	service PurchaseServiceInterface
	config  PurchaseHandlerConfig
}

// NewPurchaseHandler はPurchaseHandlerを生成する。
func NewPurchaseHandler(service PurchaseServiceInterface, config PurchaseHandlerConfig) *PurchaseHandler {
	return &PurchaseHandler{
		service: service,
		config:  config,
	}
}

// ownedCourseResponse は購入済み講座のAPIレスポンス。
type ownedCourseResponse struct {
	CourseID        string    `json:"course_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PriceMinorUnits int       `json:"price_minor_units"`
	Currency        string    `json:"currency"`
	ImageURL        string    `json:"image_url"`
	VideoURL        string    `json:"video_url"`
	PurchasedAt     time.Time `json:"purchased_at"`
}

// Checkout はチェックアウトを開始し、ホスト型決済ページのURLを返す。
// POST /api/courses/:id/checkout
func (h *PurchaseHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	courseID := chi.URLParam(r, "id")

	redirect, err := h.service.Initiate(r.Context(), userID, courseID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if redirect.AlreadyOwned {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"already_owned": true,
			"redirect_url":  h.myCoursesURL(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"already_owned": false,
		"payment_url":   redirect.PaymentURL,
	})
}

// MyCourses はユーザーの購入済み講座一覧を返す。
// GET /api/my-courses
func (h *PurchaseHandler) MyCourses(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	owned, err := h.service.ListOwned(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]ownedCourseResponse, len(owned))
	for i, o := range owned {
		results[i] = ownedCourseResponse{
			CourseID:        o.CourseID,
			Title:           o.Title,
			Description:     o.Description,
			PriceMinorUnits: o.PriceMinorUnits,
			Currency:        o.Currency,
			ImageURL:        o.ImageURL,
			VideoURL:        o.VideoURL,
			PurchasedAt:     o.PurchasedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"courses": results,
	})
}

// PaymentSuccess は決済成功コールバックを処理する。
// GET /payment/success?session_id=xxx&course_id=yyy
// 支払い完了を確認できた場合は購入済み一覧へ、未完了の場合は講座ページへ
// リダイレクトする。同じURLの再読み込み（リプレイ）は常に安全。
func (h *PurchaseHandler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	courseID := r.URL.Query().Get("course_id")
	if sessionID == "" || courseID == "" {
		slog.Warn("payment success callback missing parameters",
			slog.String("session_id", sessionID),
			slog.String("course_id", courseID),
		)
		http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
		return
	}

	result, err := h.service.Finalize(r.Context(), sessionID, userID, courseID)
	if err != nil {
		var apiErr *model.APIError
		// 存在しない講座はカタログへ、それ以外（ゲートウェイ障害等）は講座ページへ
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeCourseNotFound {
			http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
			return
		}
		slog.Error("failed to finalize purchase",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID),
		)
		http.Redirect(w, r, h.courseURL(courseID), http.StatusTemporaryRedirect)
		return
	}

	if !result.Entitled {
		http.Redirect(w, r, h.courseURL(courseID), http.StatusTemporaryRedirect)
		return
	}

	http.Redirect(w, r, h.myCoursesURL(), http.StatusTemporaryRedirect)
}

// PaymentCancel は決済キャンセルコールバックを処理する。
// GET /payment/cancel?course_id=yyy
// 講座ページへ戻す。エンタイトルメントには何も書き込まない。
func (h *PurchaseHandler) PaymentCancel(w http.ResponseWriter, r *http.Request) {
	courseID := r.URL.Query().Get("course_id")
	if courseID == "" {
		http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
		return
	}
	http.Redirect(w, r, h.courseURL(courseID), http.StatusTemporaryRedirect)
}

// myCoursesURL は購入済み一覧ページのURLを返す。
func (h *PurchaseHandler) myCoursesURL() string {
	return h.config.BaseURL + "/my-courses"
}

// courseURL は講座ページのURLを返す。
func (h *PurchaseHandler) courseURL(courseID string) string {
	return h.config.BaseURL + "/courses/" + url.PathEscape(courseID)
}

// unauthorizedError は未認証の共通エラー。
func unauthorizedError() *model.APIError {
	return &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
