package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/courseman/internal/middleware"
	"github.com/hitoshi/courseman/internal/model"
)

// AdminPurchaseService は管理ハンドラーが必要とする購入サービスのインターフェース。
type AdminPurchaseService interface {
	// Reset は全エンタイトルメントを削除し、削除件数を返す。
	// 実行者の管理者ロールはサービス層で検証される。
	Reset(ctx context.Context, actor *model.User) (int64, error)
}

// AdminCatalogService は管理ハンドラーが必要とするカタログサービスのインターフェース。
type AdminCatalogService interface {
	// UpdateMedia は講座のメディアURLを更新する。
	// 実行者の管理者ロールはサービス層で検証される。
	UpdateMedia(ctx context.Context, actor *model.User, courseID, imageURL, videoURL string) (*model.Course, error)
}

// UserFinder はユーザー取得のインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// AdminHandler は管理操作のHTTPハンドラー。
// ロールの検証はサービス層が行い、ハンドラーは実行者の解決のみを担う。
type AdminHandler struct {
	purchases AdminPurchaseService
	catalog   AdminCatalogService
	users     UserFinder
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(purchases AdminPurchaseService, catalog AdminCatalogService, users UserFinder) *AdminHandler {
	return &AdminHandler{
		purchases: purchases,
		catalog:   catalog,
		users:     users,
	}
}

// updateMediaRequest はメディアURL更新リクエストのボディ。
type updateMediaRequest struct {
	ImageURL string `json:"image_url"`
	VideoURL string `json:"video_url"`
}

// ResetEntitlements は全エンタイトルメントを削除する。
// DELETE /api/admin/entitlements
func (h *AdminHandler) ResetEntitlements(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}

	count, err := h.purchases.Reset(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{
		"deleted": count,
	})
}

// UpdateCourseMedia は講座のメディアURLを更新する。
// PATCH /api/admin/courses/:id/media
func (h *AdminHandler) UpdateCourseMedia(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}

	courseID := chi.URLParam(r, "id")

	var req updateMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if req.ImageURL == "" && req.VideoURL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "更新するメディアURLが指定されていません。",
			Category: "validation",
			Action:   "image_urlまたはvideo_urlを指定してください。",
		})
		return
	}

	course, err := h.catalog.UpdateMedia(r.Context(), actor, courseID, req.ImageURL, req.VideoURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toCourseResponse(course, false))
}

// resolveActor はリクエストコンテキストから実行者のユーザーを解決する。
// 失敗時はエラーレスポンスを書き込みfalseを返す。
func (h *AdminHandler) resolveActor(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return nil, false
	}

	actor, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if actor == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return nil, false
	}

	return actor, true
}
