// Package profile はユーザープロフィールの遅延作成と更新を提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/pagegate/internal/model"
	"github.com/hitoshi/pagegate/internal/repository"
	"github.com/hitoshi/pagegate/internal/security"
)

// URLValidator はアバターURLの安全性検証インターフェース。
type URLValidator interface {
	// ValidateURL はURLの形式・スキーム・接続先の安全性を検証する。
	ValidateURL(rawURL string) error
}

// RaceRecorder はプロフィール作成競合のメトリクス記録インターフェース。
type RaceRecorder interface {
	RecordBootstrapRace()
}

// Service はプロフィールのライフサイクルを管理する。
type Service struct {
	profileRepo  repository.ProfileRepository
	sanitizer    security.ContentSanitizerService
	urlValidator URLValidator
	recorder     RaceRecorder // nil可
}

// NewService はServiceを生成する。
func NewService(
	profileRepo repository.ProfileRepository,
	sanitizer security.ContentSanitizerService,
	urlValidator URLValidator,
) *Service {
	return &Service{
		profileRepo:  profileRepo,
		sanitizer:    sanitizer,
		urlValidator: urlValidator,
	}
}

// SetRecorder は競合解決のメトリクス記録先を設定する。
func (s *Service) SetRecorder(recorder RaceRecorder) {
	s.recorder = recorder
}

// EnsureProfile はユーザーのプロフィールを取得し、
// 存在しなければデフォルト値で作成する（冪等）。
//
// 同時初回アクセスの競合解決:
//  1. 読み込み。存在すればそれを返す。
//  2. 不在ならINSERTを試みる。
//  3. UNIQUE(user_id)違反は同時実行の別呼び出しが先に作成した合図。
//     エラーにせず再読み込みし、勝者の行を返す。
//  4. それ以外のINSERTエラーはそのまま伝播する。
//
// N個の同時呼び出しに対し、行は必ず1つ、戻り値はN個すべて有効となる。
func (s *Service) EnsureProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	existing, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	profile := &model.Profile{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.profileRepo.Insert(ctx, profile); err != nil {
		if repository.IsUniqueViolation(err) {
			// 同時実行の別呼び出しが勝った。勝者の行を読み直す。
			slog.Info("profile bootstrap race resolved",
				slog.String("user_id", userID),
			)
			if s.recorder != nil {
				s.recorder.RecordBootstrapRace()
			}
			winner, findErr := s.profileRepo.FindByUserID(ctx, userID)
			if findErr != nil {
				return nil, fmt.Errorf("failed to re-read profile after race: %w", findErr)
			}
			if winner == nil {
				return nil, fmt.Errorf("profile missing after unique violation for user %s", userID)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}

	slog.Info("profile created", slog.String("user_id", userID))
	return profile, nil
}

// UpdateParams はプロフィール更新の入力。nilのフィールドは変更しない。
type UpdateParams struct {
	DisplayName *string
	Bio         *string
	AvatarURL   *string
}

// UpdateProfile はセッション所有者自身のプロフィールを更新する。
// 表示名はタグ除去、自己紹介はHTMLサニタイズ、アバターURLは
// SSRF検証を通してから保存する。
func (s *Service) UpdateProfile(ctx context.Context, userID string, params UpdateParams) (*model.Profile, error) {
	profile, err := s.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if params.DisplayName != nil {
		profile.DisplayName = s.sanitizer.SanitizeText(*params.DisplayName)
	}
	if params.Bio != nil {
		profile.Bio = s.sanitizer.SanitizeHTML(*params.Bio)
	}
	if params.AvatarURL != nil {
		if *params.AvatarURL != "" {
			if err := s.urlValidator.ValidateURL(*params.AvatarURL); err != nil {
				return nil, fmt.Errorf("invalid avatar URL: %w", err)
			}
		}
		profile.AvatarURL = *params.AvatarURL
	}
	profile.UpdatedAt = time.Now()

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return profile, nil
}
