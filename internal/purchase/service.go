// Package purchase は講座購入のドメインロジックを提供する。
// 中核はPurchase Reconciler: 決済確認シグナルを、観測回数によらず
// ちょうど1回のエンタイトルメント付与へ変換する。
package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/courseman/internal/model"
	"github.com/hitoshi/courseman/internal/payment"
	"github.com/hitoshi/courseman/internal/repository"
)

// MetricsRecorder は購入フローが記録するメトリクスのインターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordCheckoutCreated()
	RecordFinalizeGranted()
	RecordFinalizeDuplicate()
	RecordFinalizeUnpaid()
	RecordGatewayError()
	RecordGatewayLatency(duration time.Duration)
}

// CheckoutRedirect はInitiateの結果を表す。
// AlreadyOwnedがtrueの場合、新しいCheckout Intentは作成されていない。
type CheckoutRedirect struct {
	AlreadyOwned bool
	SessionID    string
	PaymentURL   string
}

// FinalizeResult はFinalizeの結果を表す。
// Entitledがfalseの場合、支払いは未完了でありエンタイトルメントは書き込まれていない。
type FinalizeResult struct {
	Entitled    bool
	Status      payment.Status
	Entitlement *model.Entitlement
}

// OwnedCourse は購入済み講座を表すドメインオブジェクト。
type OwnedCourse struct {
	CourseID        string
	Title           string
	Description     string
	PriceMinorUnits int
	Currency        string
	ImageURL        string
	VideoURL        string
	PurchasedAt     time.Time
}

// ServiceConfig は購入サービスの設定。
type ServiceConfig struct {
	BaseURL string // 決済コールバックURLの組み立てに使用する
}

// Service は購入フローのサービス層。
// チェックアウト開始とエンタイトルメント照合のビジネスロジックを提供する。
type Service struct {
	courseRepo repository.CourseRepository
	entRepo    repository.EntitlementRepository
	gateway    payment.Gateway
	metrics    MetricsRecorder
	config     ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilでもよい（記録をスキップする）。
func NewService(
	courseRepo repository.CourseRepository,
	entRepo repository.EntitlementRepository,
	gateway payment.Gateway,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		courseRepo: courseRepo,
		entRepo:    entRepo,
		gateway:    gateway,
		metrics:    metrics,
		config:     config,
	}
}

// Initiate は(userID, courseID)のチェックアウトを開始する。
// 既にエンタイトルメントが存在する場合は新しいCheckout Intentを作成せず、
// AlreadyOwnedで即座に返す。講座が存在しない場合はCOURSE_NOT_FOUND、
// ゲートウェイ呼び出し失敗はGATEWAY_ERRORを返す（リトライしない）。
func (s *Service) Initiate(ctx context.Context, userID, courseID string) (*CheckoutRedirect, error) {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("講座の取得に失敗しました: %w", err)
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}

	owned, err := s.entRepo.Exists(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("エンタイトルメントの存在確認に失敗しました: %w", err)
	}
	if owned {
		return &CheckoutRedirect{AlreadyOwned: true}, nil
	}

	gatewayStart := time.Now()
	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CreateParams{
		Description:      course.Title,
		AmountMinorUnits: course.PriceMinorUnits,
		Currency:         course.Currency,
		SuccessURL:       s.successURL(courseID),
		CancelURL:        s.cancelURL(courseID),
		CourseID:         courseID,
	})
	if s.metrics != nil {
		s.metrics.RecordGatewayLatency(time.Since(gatewayStart))
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordGatewayError()
		}
		slog.Error("Checkout Intentの作成に失敗しました",
			slog.String("error", err.Error()),
			slog.String("user_id", userID),
			slog.String("course_id", courseID),
		)
		return nil, model.NewGatewayError("チェックアウトを開始できませんでした")
	}

	if s.metrics != nil {
		s.metrics.RecordCheckoutCreated()
	}

	slog.Info("checkout initiated",
		slog.String("user_id", userID),
		slog.String("course_id", courseID),
		slog.String("session_id", session.ID),
		slog.Int("amount_minor_units", course.PriceMinorUnits),
	)

	return &CheckoutRedirect{
		SessionID:  session.ID,
		PaymentURL: session.URL,
	}, nil
}

// Finalize は決済確認シグナルをエンタイトルメント付与へ変換する。
// ゲートウェイにIntentの終端ステータスを照会し、"paid"の場合のみ付与する。
// 同一(userID, courseID)に対して何度呼ばれても、同一または異なる
// sessionIDであっても、エンタイトルメント行は1件を超えて作られない。
// 付与はアプリケーション層の存在チェックとストレージ層のUNIQUE制約の
// 二段で冪等化され、挿入競合は「既に付与済み」として成功扱いになる。
func (s *Service) Finalize(ctx context.Context, sessionID, userID, courseID string) (*FinalizeResult, error) {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("講座の取得に失敗しました: %w", err)
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}

	gatewayStart := time.Now()
	status, err := s.gateway.GetSessionStatus(ctx, sessionID)
	if s.metrics != nil {
		s.metrics.RecordGatewayLatency(time.Since(gatewayStart))
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordGatewayError()
		}
		slog.Error("Checkout Intentの照会に失敗しました",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID),
		)
		return nil, model.NewGatewayError("決済状態を確認できませんでした")
	}

	// コールバックのcourse_idとIntentのmetadataが食い違う場合は記録する。
	// 付与判断は変更しない。
	if status.CourseID != "" && status.CourseID != courseID {
		slog.Warn("checkout session metadata mismatch",
			slog.String("session_id", sessionID),
			slog.String("callback_course_id", courseID),
			slog.String("intent_course_id", status.CourseID),
		)
	}

	if status.Status != payment.StatusPaid {
		if s.metrics != nil {
			s.metrics.RecordFinalizeUnpaid()
		}
		slog.Info("finalize skipped: payment not completed",
			slog.String("session_id", sessionID),
			slog.String("status", string(status.Status)),
		)
		return &FinalizeResult{
			Entitled: false,
			Status:   status.Status,
		}, nil
	}

	// 存在チェック: 再生（成功ページの再読み込み等）の大半をここで吸収する。
	exists, err := s.entRepo.Exists(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("エンタイトルメントの存在確認に失敗しました: %w", err)
	}
	if exists {
		if s.metrics != nil {
			s.metrics.RecordFinalizeDuplicate()
		}
		existing, _, err := s.entRepo.InsertIfAbsent(ctx, s.newEntitlement(sessionID, userID, courseID))
		if err != nil {
			return nil, fmt.Errorf("既存エンタイトルメントの取得に失敗しました: %w", err)
		}
		return &FinalizeResult{
			Entitled:    true,
			Status:      payment.StatusPaid,
			Entitlement: existing,
		}, nil
	}

	// 挿入: 並行するfinalizeとの競合はストレージ層のUNIQUE制約が解決し、
	// 2行目の挿入は「既に付与済み」として成功扱いになる。
	ent, created, err := s.entRepo.InsertIfAbsent(ctx, s.newEntitlement(sessionID, userID, courseID))
	if err != nil {
		return nil, fmt.Errorf("エンタイトルメントの付与に失敗しました: %w", err)
	}

	if s.metrics != nil {
		if created {
			s.metrics.RecordFinalizeGranted()
		} else {
			s.metrics.RecordFinalizeDuplicate()
		}
	}

	if created {
		slog.Info("entitlement granted",
			slog.String("user_id", userID),
			slog.String("course_id", courseID),
			slog.String("session_id", sessionID),
		)
	}

	return &FinalizeResult{
		Entitled:    true,
		Status:      payment.StatusPaid,
		Entitlement: ent,
	}, nil
}

// ListOwned はユーザーの購入済み講座一覧を返す。
func (s *Service) ListOwned(ctx context.Context, userID string) ([]OwnedCourse, error) {
	rows, err := s.entRepo.ListByUserWithCourseInfo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("購入済み講座一覧の取得に失敗しました: %w", err)
	}

	results := make([]OwnedCourse, len(rows))
	for i, row := range rows {
		results[i] = OwnedCourse{
			CourseID:        row.CourseID,
			Title:           row.CourseTitle,
			Description:     row.CourseDescription,
			PriceMinorUnits: row.PriceMinorUnits,
			Currency:        row.Currency,
			ImageURL:        row.ImageURL,
			VideoURL:        row.VideoURL,
			PurchasedAt:     row.PurchasedAt,
		}
	}

	return results, nil
}

// Reset は全エンタイトルメントを削除し、削除件数を返す。
// 管理者ロールを持つユーザーのみ実行できる。
func (s *Service) Reset(ctx context.Context, actor *model.User) (int64, error) {
	if actor == nil || !actor.IsAdmin() {
		return 0, model.NewForbiddenError()
	}

	count, err := s.entRepo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("エンタイトルメントの一括リセットに失敗しました: %w", err)
	}

	slog.Info("entitlements reset",
		slog.String("actor_id", actor.ID),
		slog.Int64("deleted", count),
	)

	return count, nil
}

// newEntitlement は付与対象のエンタイトルメントを構築する。
func (s *Service) newEntitlement(sessionID, userID, courseID string) *model.Entitlement {
	return &model.Entitlement{
		ID:                uuid.New().String(),
		UserID:            userID,
		CourseID:          courseID,
		CheckoutSessionID: sessionID,
		PurchasedAt:       time.Now(),
	}
}

// successURL は決済成功コールバックURLを組み立てる。
// {CHECKOUT_SESSION_ID}はゲートウェイ側でセッションIDに置換される。
func (s *Service) successURL(courseID string) string {
	return s.config.BaseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}&course_id=" + url.QueryEscape(courseID)
}

// cancelURL は決済キャンセルコールバックURLを組み立てる。
func (s *Service) cancelURL(courseID string) string {
	return s.config.BaseURL + "/payment/cancel?course_id=" + url.QueryEscape(courseID)
}
