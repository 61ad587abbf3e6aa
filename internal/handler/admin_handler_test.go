package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/courseman/internal/middleware"
	"github.com/hitoshi/courseman/internal/model"
)

// adminRouter はURLParamを解決するため、テスト対象をchiルーターにマウントする。
func adminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Delete("/api/admin/entitlements", h.ResetEntitlements)
	r.Patch("/api/admin/courses/{id}/media", h.UpdateCourseMedia)
	return r
}

func adminUserFinder() *mockUserFinder {
	return &mockUserFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Role: model.RoleAdmin}, nil
		},
	}
}

// TestAdminHandler_ResetEntitlements_ReturnsDeletedCount はリセットで削除件数が
// 返ることを検証する。
func TestAdminHandler_ResetEntitlements_ReturnsDeletedCount(t *testing.T) {
	var gotActor *model.User
	purchases := &mockPurchaseService{
		resetFn: func(ctx context.Context, actor *model.User) (int64, error) {
			gotActor = actor
			return 42, nil
		},
	}
	h := NewAdminHandler(purchases, &mockAdminCatalogService{}, adminUserFinder())

	req := authedRequest(http.MethodDelete, "/api/admin/entitlements", "admin-1")
	w := httptest.NewRecorder()

	adminRouter(h).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if gotActor == nil || gotActor.ID != "admin-1" {
		t.Errorf("actor = %+v, want resolved admin-1", gotActor)
	}

	var body map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["deleted"] != 42 {
		t.Errorf("deleted = %d, want 42", body["deleted"])
	}
}

// TestAdminHandler_ResetEntitlements_Forbidden_Returns403 はサービス層の
// 権限エラーが403になることを検証する。
func TestAdminHandler_ResetEntitlements_Forbidden_Returns403(t *testing.T) {
	purchases := &mockPurchaseService{
		resetFn: func(ctx context.Context, actor *model.User) (int64, error) {
			return 0, model.NewForbiddenError()
		},
	}
	h := NewAdminHandler(purchases, &mockAdminCatalogService{}, &mockUserFinder{})

	req := authedRequest(http.MethodDelete, "/api/admin/entitlements", "user-1")
	w := httptest.NewRecorder()

	adminRouter(h).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	var errBody apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errBody.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", errBody.Code, model.ErrCodeForbidden)
	}
}

// TestAdminHandler_ResetEntitlements_Unauthenticated_Returns401 は未認証の
// リセットが401になることを検証する。
func TestAdminHandler_ResetEntitlements_Unauthenticated_Returns401(t *testing.T) {
	h := NewAdminHandler(&mockPurchaseService{}, &mockAdminCatalogService{}, &mockUserFinder{})

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/entitlements", nil)
	w := httptest.NewRecorder()

	adminRouter(h).ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestAdminHandler_ResetEntitlements_UnknownActor_Returns401 はコンテキストの
// ユーザーIDが解決できない場合に401になることを検証する。
func TestAdminHandler_ResetEntitlements_UnknownActor_Returns401(t *testing.T) {
	users := &mockUserFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}
	h := NewAdminHandler(&mockPurchaseService{}, &mockAdminCatalogService{}, users)

	req := authedRequest(http.MethodDelete, "/api/admin/entitlements", "ghost")
	w := httptest.NewRecorder()

	adminRouter(h).ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestAdminHandler_UpdateCourseMedia_UpdatesURLs はメディアURL更新が
// 更新後の講座を返すことを検証する。
func TestAdminHandler_UpdateCourseMedia_UpdatesURLs(t *testing.T) {
	var gotCourseID, gotImageURL, gotVideoURL string
	catalog := &mockAdminCatalogService{
		updateMediaFn: func(ctx context.Context, actor *model.User, courseID, imageURL, videoURL string) (*model.Course, error) {
			gotCourseID = courseID
			gotImageURL = imageURL
			gotVideoURL = videoURL
			return &model.Course{ID: courseID, ImageURL: imageURL, VideoURL: videoURL}, nil
		},
	}
	h := NewAdminHandler(&mockPurchaseService{}, catalog, adminUserFinder())

	body := strings.NewReader(`{"image_url":"https://cdn.example.com/new.png","video_url":"https://videos.example.org/new.mp4"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/courses/course-7/media", body)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "admin-1"))
	w := httptest.NewRecorder()

	adminRouter(h).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if gotCourseID != "course-7" {
		t.Errorf("course_id = %q, want %q", gotCourseID, "course-7")
	}
	if gotImageURL != "https://cdn.example.com/new.png" {
		t.Errorf("image_url = %q", gotImageURL)
	}
	if gotVideoURL != "https://videos.example.org/new.mp4" {
		t.Errorf("video_url = %q", gotVideoURL)
	}

	var course courseResponse
	if err := json.NewDecoder(resp.Body).Decode(&course); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if course.ImageURL != "https://cdn.example.com/new.png" {
		t.Errorf("response image_url = %q", course.ImageURL)
	}
}

// TestAdminHandler_UpdateCourseMedia_EmptyBody_Returns400 は両URL未指定の
// 更新が400になることを検証する。
func TestAdminHandler_UpdateCourseMedia_EmptyBody_Returns400(t *testing.T) {
	h := NewAdminHandler(&mockPurchaseService{}, &mockAdminCatalogService{}, adminUserFinder())

	body := strings.NewReader(`{"image_url":"","video_url":""}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/courses/course-7/media", body)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "admin-1"))
	w := httptest.NewRecorder()

	adminRouter(h).ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestAdminHandler_UpdateCourseMedia_SSRFBlocked_Returns403 は検証で拒否された
// URLが403になることを検証する。
func TestAdminHandler_UpdateCourseMedia_SSRFBlocked_Returns403(t *testing.T) {
	catalog := &mockAdminCatalogService{
		updateMediaFn: func(ctx context.Context, actor *model.User, courseID, imageURL, videoURL string) (*model.Course, error) {
			return nil, model.NewSSRFBlockedError()
		},
	}
	h := NewAdminHandler(&mockPurchaseService{}, catalog, adminUserFinder())

	body := strings.NewReader(`{"image_url":"http://169.254.169.254/latest/meta-data"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/courses/course-7/media", body)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "admin-1"))
	w := httptest.NewRecorder()

	adminRouter(h).ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}
