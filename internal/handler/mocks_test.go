package handler

import (
	"context"

	"github.com/hitoshi/courseman/internal/model"
	"github.com/hitoshi/courseman/internal/purchase"
)

// --- テスト用モック ---

type mockAuthService struct {
	registerFn       func(ctx context.Context, email, password string) (*model.Session, error)
	loginFn          func(ctx context.Context, email, password string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password string) (*model.Session, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password)
	}
	return &model.Session{ID: "sess-1", UserID: "user-1"}, nil
}
func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return &model.Session{ID: "sess-1", UserID: "user-1"}, nil
}
func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}
func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

type mockCatalogService struct {
	listFn func(ctx context.Context) ([]model.Course, error)
	getFn  func(ctx context.Context, id string) (*model.Course, error)
}

func (m *mockCatalogService) List(ctx context.Context) ([]model.Course, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockCatalogService) Get(ctx context.Context, id string) (*model.Course, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewCourseNotFoundError(id)
}

type mockEntitlementChecker struct {
	existsFn func(ctx context.Context, userID, courseID string) (bool, error)
}

func (m *mockEntitlementChecker) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, userID, courseID)
	}
	return false, nil
}

type mockPurchaseService struct {
	initiateFn  func(ctx context.Context, userID, courseID string) (*purchase.CheckoutRedirect, error)
	finalizeFn  func(ctx context.Context, sessionID, userID, courseID string) (*purchase.FinalizeResult, error)
	listOwnedFn func(ctx context.Context, userID string) ([]purchase.OwnedCourse, error)
	resetFn     func(ctx context.Context, actor *model.User) (int64, error)
}

func (m *mockPurchaseService) Initiate(ctx context.Context, userID, courseID string) (*purchase.CheckoutRedirect, error) {
	if m.initiateFn != nil {
		return m.initiateFn(ctx, userID, courseID)
	}
	return &purchase.CheckoutRedirect{PaymentURL: "https://pay.example.com/cs_1"}, nil
}
func (m *mockPurchaseService) Finalize(ctx context.Context, sessionID, userID, courseID string) (*purchase.FinalizeResult, error) {
	if m.finalizeFn != nil {
		return m.finalizeFn(ctx, sessionID, userID, courseID)
	}
	return &purchase.FinalizeResult{Entitled: true}, nil
}
func (m *mockPurchaseService) ListOwned(ctx context.Context, userID string) ([]purchase.OwnedCourse, error) {
	if m.listOwnedFn != nil {
		return m.listOwnedFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockPurchaseService) Reset(ctx context.Context, actor *model.User) (int64, error) {
	if m.resetFn != nil {
		return m.resetFn(ctx, actor)
	}
	return 0, nil
}

type mockAdminCatalogService struct {
	updateMediaFn func(ctx context.Context, actor *model.User, courseID, imageURL, videoURL string) (*model.Course, error)
}

func (m *mockAdminCatalogService) UpdateMedia(ctx context.Context, actor *model.User, courseID, imageURL, videoURL string) (*model.Course, error) {
	if m.updateMediaFn != nil {
		return m.updateMediaFn(ctx, actor, courseID, imageURL, videoURL)
	}
	return &model.Course{ID: courseID, ImageURL: imageURL, VideoURL: videoURL}, nil
}

type mockUserFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.User{ID: id, Role: model.RoleMember}, nil
}

type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
