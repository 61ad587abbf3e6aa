package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/courseman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// カタログ
	CatalogService CatalogServiceInterface
	Entitlements   EntitlementChecker

	// 購入
	PurchaseService PurchaseServiceInterface
	PurchaseConfig  PurchaseHandlerConfig

	// 管理
	AdminPurchases AdminPurchaseService
	AdminCatalog   AdminCatalogService
	UserFinder     UserFinder

	// 運用
	Metrics        middleware.HTTPStatusRecorder
	MetricsHandler http.Handler
	HealthHandler  http.HandlerFunc
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → CORS → CSRF → Session → RateLimit(General)
//
// 認証ルート（/auth/*）とカタログ参照（/api/courses）はセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	courseHandler := NewCourseHandler(deps.CatalogService, deps.Entitlements, deps.AuthService)
	purchaseHandler := NewPurchaseHandler(deps.PurchaseService, deps.PurchaseConfig)
	adminHandler := NewAdminHandler(deps.AdminPurchases, deps.AdminCatalog, deps.UserFinder)

	// --- 認証不要のルート ---

	// ヘルスチェック・メトリクス
	if deps.HealthHandler != nil {
		r.Get("/health", deps.HealthHandler)
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// CSRFトークン取得
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// 認証ルート
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	// カタログ参照（セッションは任意: あればownedフラグに反映される）
	r.Route("/api/courses", func(r chi.Router) {
		r.Get("/", courseHandler.ListCourses)
		r.Get("/{id}", courseHandler.GetCourse)

		// POST /api/courses/:id/checkout は認証必須 + チェックアウト専用レート制限
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.With(deps.RateLimiter.CheckoutMiddleware()).Post("/{id}/checkout", purchaseHandler.Checkout)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 購入済み一覧
		r.Get("/api/my-courses", purchaseHandler.MyCourses)

		// 決済コールバック（ゲートウェイからのブラウザリダイレクト）
		r.Route("/payment", func(r chi.Router) {
			r.Get("/success", purchaseHandler.PaymentSuccess)
			r.Get("/cancel", purchaseHandler.PaymentCancel)
		})

		// 管理操作（ロール検証はサービス層）
		r.Route("/api/admin", func(r chi.Router) {
			r.Delete("/entitlements", adminHandler.ResetEntitlements)
			r.Patch("/courses/{id}/media", adminHandler.UpdateCourseMedia)
		})
	})

	return r
}
