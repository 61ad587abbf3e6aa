package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/courseman/internal/model"
)

// --- モック ---

type mockCourseRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.Course, error)
	findByTitleFn func(ctx context.Context, title string) (*model.Course, error)
	listFn        func(ctx context.Context) ([]model.Course, error)
	countFn       func(ctx context.Context) (int, error)
	createFn      func(ctx context.Context, course *model.Course) error
	updateMediaFn func(ctx context.Context, id, imageURL, videoURL string) error
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*model.Course, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockCourseRepo) FindByTitle(ctx context.Context, title string) (*model.Course, error) {
	if m.findByTitleFn != nil {
		return m.findByTitleFn(ctx, title)
	}
	return nil, nil
}
func (m *mockCourseRepo) List(ctx context.Context) ([]model.Course, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockCourseRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}
func (m *mockCourseRepo) Create(ctx context.Context, course *model.Course) error {
	if m.createFn != nil {
		return m.createFn(ctx, course)
	}
	return nil
}
func (m *mockCourseRepo) UpdateMedia(ctx context.Context, id, imageURL, videoURL string) error {
	if m.updateMediaFn != nil {
		return m.updateMediaFn(ctx, id, imageURL, videoURL)
	}
	return nil
}

type mockSanitizer struct {
	sanitizeFn func(rawHTML string) string
}

func (m *mockSanitizer) Sanitize(rawHTML string) string {
	if m.sanitizeFn != nil {
		return m.sanitizeFn(rawHTML)
	}
	return rawHTML
}

// --- テスト ---

// TestService_Get_UnknownCourse_ReturnsNotFound は存在しない講座IDで
// COURSE_NOT_FOUNDが返ることを検証する。
func TestService_Get_UnknownCourse_ReturnsNotFound(t *testing.T) {
	svc := NewService(&mockCourseRepo{}, &mockSanitizer{}, nil)

	_, err := svc.Get(context.Background(), "course-missing")
	if err == nil {
		t.Fatal("expected error for unknown course, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeCourseNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeCourseNotFound)
	}
}

// TestService_List_ReturnsAllCourses は講座一覧が返ることを検証する。
func TestService_List_ReturnsAllCourses(t *testing.T) {
	courseRepo := &mockCourseRepo{
		listFn: func(ctx context.Context) ([]model.Course, error) {
			return []model.Course{
				{ID: "course-1", Title: "Mastering Python for Web", PriceMinorUnits: 2900},
				{ID: "course-2", Title: "Frontend Basics", PriceMinorUnits: 9900},
			}, nil
		},
	}

	svc := NewService(courseRepo, &mockSanitizer{}, nil)

	courses, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(courses) != 2 {
		t.Errorf("len(courses) = %d, want 2", len(courses))
	}
}

// TestService_Create_SanitizesDescription は講座説明文が保存前に
// サニタイズされることを検証する。
func TestService_Create_SanitizesDescription(t *testing.T) {
	var saved *model.Course
	courseRepo := &mockCourseRepo{
		createFn: func(ctx context.Context, course *model.Course) error {
			saved = course
			return nil
		},
	}
	sanitizer := &mockSanitizer{
		sanitizeFn: func(rawHTML string) string {
			return "sanitized"
		},
	}

	svc := NewService(courseRepo, sanitizer, nil)

	err := svc.Create(context.Background(), &model.Course{
		Title:       "Test Course",
		Description: `<script>alert('xss')</script>説明文`,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if saved == nil {
		t.Fatal("expected course to be saved")
	}
	if saved.Description != "sanitized" {
		t.Errorf("Description = %q, want sanitized output", saved.Description)
	}
	if saved.ID == "" {
		t.Error("expected generated course ID")
	}
}

// TestService_Seed_EmptyCatalog_CreatesDemoCourses は空のカタログに
// 3件のデモ講座が投入されることを検証する。
func TestService_Seed_EmptyCatalog_CreatesDemoCourses(t *testing.T) {
	var created []*model.Course
	courseRepo := &mockCourseRepo{
		countFn: func(ctx context.Context) (int, error) {
			return 0, nil
		},
		createFn: func(ctx context.Context, course *model.Course) error {
			created = append(created, course)
			return nil
		},
	}

	svc := NewService(courseRepo, &mockSanitizer{}, nil)

	count, err := svc.Seed(context.Background(), "usd")
	if err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}

	if count != 3 {
		t.Errorf("created count = %d, want 3", count)
	}
	if len(created) != 3 {
		t.Fatalf("len(created) = %d, want 3", len(created))
	}

	wantPrices := map[string]int{
		"Mastering Python for Web": 2900,
		"Frontend Basics":          9900,
		"Fullstack Pro":            24900,
	}
	for _, c := range created {
		want, ok := wantPrices[c.Title]
		if !ok {
			t.Errorf("unexpected demo course title %q", c.Title)
			continue
		}
		if c.PriceMinorUnits != want {
			t.Errorf("%s: PriceMinorUnits = %d, want %d", c.Title, c.PriceMinorUnits, want)
		}
		if c.Currency != "usd" {
			t.Errorf("%s: Currency = %q, want %q", c.Title, c.Currency, "usd")
		}
	}
}

// TestService_Seed_NonEmptyCatalog_SkipsCreation はカタログに講座がある場合
// 新規作成が行われないことを検証する。
func TestService_Seed_NonEmptyCatalog_SkipsCreation(t *testing.T) {
	createCalled := false
	courseRepo := &mockCourseRepo{
		countFn: func(ctx context.Context) (int, error) {
			return 3, nil
		},
		findByTitleFn: func(ctx context.Context, title string) (*model.Course, error) {
			return &model.Course{ID: "course-1", Title: title, VideoURL: demoVideoURL}, nil
		},
		createFn: func(ctx context.Context, course *model.Course) error {
			createCalled = true
			return nil
		},
	}

	svc := NewService(courseRepo, &mockSanitizer{}, nil)

	count, err := svc.Seed(context.Background(), "usd")
	if err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}
	if count != 0 {
		t.Errorf("created count = %d, want 0", count)
	}
	if createCalled {
		t.Error("seed must not create courses when catalog is not empty")
	}
}

// TestService_Seed_NonEmptyCatalog_RefreshesVideoURL は既存講座の古い
// 紹介動画URLが最新に揃えられることを検証する。
func TestService_Seed_NonEmptyCatalog_RefreshesVideoURL(t *testing.T) {
	var updatedIDs []string
	courseRepo := &mockCourseRepo{
		countFn: func(ctx context.Context) (int, error) {
			return 3, nil
		},
		findByTitleFn: func(ctx context.Context, title string) (*model.Course, error) {
			return &model.Course{
				ID:       "course-" + title,
				Title:    title,
				ImageURL: "/static/img/old.png",
				VideoURL: "https://www.youtube.com/embed/old",
			}, nil
		},
		updateMediaFn: func(ctx context.Context, id, imageURL, videoURL string) error {
			updatedIDs = append(updatedIDs, id)
			if videoURL != demoVideoURL {
				t.Errorf("videoURL = %q, want %q", videoURL, demoVideoURL)
			}
			if imageURL != "/static/img/old.png" {
				t.Errorf("imageURL = %q, existing image must be preserved", imageURL)
			}
			return nil
		},
	}

	svc := NewService(courseRepo, &mockSanitizer{}, nil)

	if _, err := svc.Seed(context.Background(), "usd"); err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}
	if len(updatedIDs) != 3 {
		t.Errorf("updated courses = %d, want 3", len(updatedIDs))
	}
}

// TestService_UpdateMedia_NonAdmin_ReturnsForbidden は管理者ロールを持たない
// ユーザーのメディア更新が拒否されることを検証する。
func TestService_UpdateMedia_NonAdmin_ReturnsForbidden(t *testing.T) {
	updateCalled := false
	courseRepo := &mockCourseRepo{
		updateMediaFn: func(ctx context.Context, id, imageURL, videoURL string) error {
			updateCalled = true
			return nil
		},
	}

	svc := NewService(courseRepo, &mockSanitizer{}, nil)

	member := &model.User{ID: "user-1", Role: model.RoleMember}
	_, err := svc.UpdateMedia(context.Background(), member, "course-1", "https://cdn.example.com/img.png", "")
	if err == nil {
		t.Fatal("expected error for non-admin update, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeForbidden)
	}
	if updateCalled {
		t.Error("media must not be updated for non-admin actor")
	}
}

// TestService_UpdateMedia_Admin_UpdatesCourse は管理者のメディア更新が
// 反映され、空フィールドは既存値が保持されることを検証する。
func TestService_UpdateMedia_Admin_UpdatesCourse(t *testing.T) {
	var gotImage, gotVideo string
	courseRepo := &mockCourseRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Course, error) {
			return &model.Course{
				ID:       id,
				Title:    "Frontend Basics",
				ImageURL: "/static/img/frontend.png",
				VideoURL: "https://www.youtube.com/embed/old",
			}, nil
		},
		updateMediaFn: func(ctx context.Context, id, imageURL, videoURL string) error {
			gotImage = imageURL
			gotVideo = videoURL
			return nil
		},
	}

	svc := NewService(courseRepo, &mockSanitizer{}, nil)

	admin := &model.User{ID: "admin-1", Role: model.RoleAdmin}
	course, err := svc.UpdateMedia(context.Background(), admin, "course-2", "", "https://www.youtube.com/embed/new")
	if err != nil {
		t.Fatalf("UpdateMedia returned error: %v", err)
	}

	if gotImage != "/static/img/frontend.png" {
		t.Errorf("imageURL = %q, existing image must be preserved", gotImage)
	}
	if gotVideo != "https://www.youtube.com/embed/new" {
		t.Errorf("videoURL = %q, want new video URL", gotVideo)
	}
	if course.VideoURL != "https://www.youtube.com/embed/new" {
		t.Errorf("course.VideoURL = %q, want updated value", course.VideoURL)
	}
}

// TestService_UpdateMedia_UnknownCourse_ReturnsNotFound は存在しない講座の
// メディア更新がCOURSE_NOT_FOUNDになることを検証する。
func TestService_UpdateMedia_UnknownCourse_ReturnsNotFound(t *testing.T) {
	svc := NewService(&mockCourseRepo{}, &mockSanitizer{}, nil)

	admin := &model.User{ID: "admin-1", Role: model.RoleAdmin}
	_, err := svc.UpdateMedia(context.Background(), admin, "course-missing", "https://cdn.example.com/img.png", "")
	if err == nil {
		t.Fatal("expected error for unknown course, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeCourseNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeCourseNotFound)
	}
}
