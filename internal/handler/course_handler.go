package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/courseman/internal/model"
)

// CatalogServiceInterface は講座ハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	// List は全講座の一覧を新しい順で返す。
	List(ctx context.Context) ([]model.Course, error)
	// Get は講座詳細を取得する。
	Get(ctx context.Context, id string) (*model.Course, error)
}

// EntitlementChecker はエンタイトルメントの存在確認のインターフェース。
// repository.EntitlementRepositoryの部分集合として定義する。
type EntitlementChecker interface {
	Exists(ctx context.Context, userID, courseID string) (bool, error)
}

// CourseHandler は講座カタログのHTTPハンドラー。
type CourseHandler struct {
	catalog      CatalogServiceInterface
	entitlements EntitlementChecker
	auth         AuthServiceInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(catalog CatalogServiceInterface, entitlements EntitlementChecker, auth AuthServiceInterface) *CourseHandler {
	return &CourseHandler{
		catalog:      catalog,
		entitlements: entitlements,
		auth:         auth,
	}
}

// courseResponse は講座情報のAPIレスポンス。
type courseResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PriceMinorUnits int       `json:"price_minor_units"`
	Currency        string    `json:"currency"`
	ImageURL        string    `json:"image_url"`
	VideoURL        string    `json:"video_url"`
	Owned           bool      `json:"owned"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListCourses は講座一覧を返す。認証は不要。
// GET /api/courses
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.catalog.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	userID := h.optionalUserID(r)

	results := make([]courseResponse, len(courses))
	for i, c := range courses {
		results[i] = toCourseResponse(&c, h.isOwned(r.Context(), userID, c.ID))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"courses": results,
	})
}

// GetCourse は講座詳細を返す。認証は不要だが、
// セッションがある場合はownedフラグに購入状態を反映する。
// GET /api/courses/:id
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")

	course, err := h.catalog.Get(r.Context(), courseID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	userID := h.optionalUserID(r)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toCourseResponse(course, h.isOwned(r.Context(), userID, course.ID)))
}

// optionalUserID はセッションCookieがあればユーザーIDを返す。
// 未認証・無効セッションは空文字列を返す（エラーにしない）。
func (h *CourseHandler) optionalUserID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	user, err := h.auth.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil || user == nil {
		return ""
	}
	return user.ID
}

// isOwned はユーザーが講座を購入済みかを返す。
// 確認に失敗した場合はfalseとして扱う（表示用フラグのため）。
func (h *CourseHandler) isOwned(ctx context.Context, userID, courseID string) bool {
	if userID == "" {
		return false
	}
	owned, err := h.entitlements.Exists(ctx, userID, courseID)
	if err != nil {
		slog.Error("failed to check entitlement",
			slog.String("error", err.Error()),
			slog.String("user_id", userID),
			slog.String("course_id", courseID),
		)
		return false
	}
	return owned
}

// --- ヘルパー関数 ---

// toCourseResponse はmodel.CourseからAPIレスポンスに変換する。
func toCourseResponse(course *model.Course, owned bool) courseResponse {
	return courseResponse{
		ID:              course.ID,
		Title:           course.Title,
		Description:     course.Description,
		PriceMinorUnits: course.PriceMinorUnits,
		Currency:        course.Currency,
		ImageURL:        course.ImageURL,
		VideoURL:        course.VideoURL,
		Owned:           owned,
		CreatedAt:       course.CreatedAt,
	}
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// invalidRequestError はリクエストボディ解析失敗の共通エラー。
func invalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeCourseNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeGatewayError:
		return http.StatusBadGateway
	case model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case "INVALID_REQUEST":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
