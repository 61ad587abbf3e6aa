// Package catalog は講座カタログのドメインロジックを提供する。
// 一覧・詳細の参照、デモ講座のシード、管理者によるメディアURL更新を含む。
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/courseman/internal/model"
	"github.com/hitoshi/courseman/internal/repository"
	"github.com/hitoshi/courseman/internal/security"
)

// Service は講座カタログのサービス層。
type Service struct {
	courseRepo repository.CourseRepository
	sanitizer  security.ContentSanitizerService
	inspector  *MediaInspector
}

// NewService はServiceの新しいインスタンスを生成する。
// inspectorはnilでもよい（メディアURLの事前検証をスキップする）。
func NewService(
	courseRepo repository.CourseRepository,
	sanitizer security.ContentSanitizerService,
	inspector *MediaInspector,
) *Service {
	return &Service{
		courseRepo: courseRepo,
		sanitizer:  sanitizer,
		inspector:  inspector,
	}
}

// List は全講座の一覧を返す。
func (s *Service) List(ctx context.Context) ([]model.Course, error) {
	courses, err := s.courseRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("講座一覧の取得に失敗しました: %w", err)
	}
	return courses, nil
}

// Get は講座IDで講座を取得する。存在しない場合はCOURSE_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("講座の取得に失敗しました: %w", err)
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(id)
	}
	return course, nil
}

// Create は新しい講座を作成する。
// 説明文はXSS対策のため保存前にサニタイズされる。
func (s *Service) Create(ctx context.Context, course *model.Course) error {
	if course.ID == "" {
		course.ID = uuid.New().String()
	}
	if s.sanitizer != nil {
		course.Description = s.sanitizer.Sanitize(course.Description)
	}

	if err := s.courseRepo.Create(ctx, course); err != nil {
		return fmt.Errorf("講座の作成に失敗しました: %w", err)
	}

	slog.Info("course created",
		slog.String("course_id", course.ID),
		slog.String("title", course.Title),
	)
	return nil
}

// UpdateMedia は講座の画像URLと動画URLを更新する。
// 管理者ロールを持つユーザーのみ実行できる。
// URLはSSRF防止の事前検証を通過する必要がある。
func (s *Service) UpdateMedia(ctx context.Context, actor *model.User, courseID, imageURL, videoURL string) (*model.Course, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, model.NewForbiddenError()
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("講座の取得に失敗しました: %w", err)
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}

	if s.inspector != nil {
		for _, u := range []string{imageURL, videoURL} {
			if u == "" {
				continue
			}
			if err := s.inspector.ValidateMediaURL(u); err != nil {
				return nil, err
			}
		}
	}

	if imageURL == "" {
		imageURL = course.ImageURL
	}
	if videoURL == "" {
		videoURL = course.VideoURL
	}

	if err := s.courseRepo.UpdateMedia(ctx, courseID, imageURL, videoURL); err != nil {
		return nil, fmt.Errorf("講座メディアの更新に失敗しました: %w", err)
	}

	course.ImageURL = imageURL
	course.VideoURL = videoURL

	slog.Info("course media updated",
		slog.String("actor_id", actor.ID),
		slog.String("course_id", courseID),
	)

	return course, nil
}

// demoCourse はシード対象のデモ講座の定義。
type demoCourse struct {
	title           string
	description     string
	priceMinorUnits int
	imageURL        string
	videoURL        string
}

// demoVideoURL は全デモ講座に共通の紹介動画URL。
const demoVideoURL = "https://www.youtube.com/embed/AJTtXXXM0z0"

// demoCourses はカタログが空のときに投入されるデモ講座。
// 金額は通貨最小単位（USDの場合セント）で保持する。
var demoCourses = []demoCourse{
	{
		title:           "Mastering Python for Web",
		description:     "Pythonの基礎、FastAPI、データベース操作、デプロイまでを学ぶ。",
		priceMinorUnits: 2900,
		imageURL:        "/static/img/python.png",
		videoURL:        demoVideoURL,
	},
	{
		title:           "Frontend Basics",
		description:     "HTML/CSS/JS、コンポーネント設計とビルドツールを学ぶ。",
		priceMinorUnits: 9900,
		imageURL:        "/static/img/frontend.png",
		videoURL:        demoVideoURL,
	},
	{
		title:           "Fullstack Pro",
		description:     "データベースからプロダクションまでのフルコース。",
		priceMinorUnits: 24900,
		imageURL:        "/static/img/fullstack.png",
		videoURL:        demoVideoURL,
	},
}

// Seed はデモ講座を投入する。カタログが空の場合のみ全件作成し、
// 既存の場合はタイトルをキーに紹介動画URLだけを最新に揃える。
// 戻り値は新規作成した講座数。
func (s *Service) Seed(ctx context.Context, currency string) (int, error) {
	count, err := s.courseRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("講座数の取得に失敗しました: %w", err)
	}

	if count > 0 {
		updated := 0
		for _, demo := range demoCourses {
			existing, err := s.courseRepo.FindByTitle(ctx, demo.title)
			if err != nil {
				return 0, fmt.Errorf("講座の検索に失敗しました: %w", err)
			}
			if existing == nil || existing.VideoURL == demo.videoURL {
				continue
			}
			if err := s.courseRepo.UpdateMedia(ctx, existing.ID, existing.ImageURL, demo.videoURL); err != nil {
				return 0, fmt.Errorf("紹介動画URLの更新に失敗しました: %w", err)
			}
			updated++
		}
		slog.Info("seed skipped: catalog not empty",
			slog.Int("existing", count),
			slog.Int("videos_refreshed", updated),
		)
		return 0, nil
	}

	created := 0
	for _, demo := range demoCourses {
		course := &model.Course{
			ID:              uuid.New().String(),
			Title:           demo.title,
			Description:     demo.description,
			PriceMinorUnits: demo.priceMinorUnits,
			Currency:        currency,
			ImageURL:        demo.imageURL,
			VideoURL:        demo.videoURL,
		}
		if err := s.Create(ctx, course); err != nil {
			return created, err
		}
		created++
	}

	slog.Info("demo courses seeded", slog.Int("created", created))
	return created, nil
}
