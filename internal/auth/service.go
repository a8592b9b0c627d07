// Package auth はパスワード認証、セッション管理、認証状態イベントを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/pagegate/internal/model"
	"github.com/hitoshi/pagegate/internal/repository"
	"github.com/hitoshi/pagegate/internal/security"
)

// ErrInvalidCredentials はメールアドレスまたはパスワードの不一致を表す。
// 列挙攻撃を防ぐため、ユーザー不在とパスワード不一致を区別しない。
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrSessionNotFound はセッションの不在または期限切れを表す。
var ErrSessionNotFound = errors.New("session not found or expired")

// TokenMinter はアクセストークンの発行インターフェース。
type TokenMinter interface {
	// Mint はユーザーIDを主体とする短命アクセストークンを発行する。
	Mint(userID, email string, now time.Time) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokens      TokenMinter
	config      ServiceConfig

	mu          sync.Mutex
	subscribers []func(Event)
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokens TokenMinter,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		config:      config,
	}
}

// Subscribe は認証状態イベントの購読者を登録する。
// 購読者は登録順・イベント発生順に同期的に呼び出される。
func (s *Service) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// emit は購読者にイベントを発生順で同期配送する。
func (s *Service) emit(event Event) {
	s.mu.Lock()
	subscribers := make([]func(Event), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(event)
	}
}

// SignInResult はサインイン成功時の結果。
type SignInResult struct {
	Session     *model.Session
	User        *model.User
	AccessToken string
}

// SignIn はメールアドレスとパスワードで認証し、セッションと
// アクセストークンを発行する。
func (s *Service) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || !security.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	accessToken, err := s.tokens.Mint(user.ID, user.Email, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	s.emit(Event{Type: EventSignedIn, UserID: user.ID, Session: session})

	return &SignInResult{Session: session, User: user, AccessToken: accessToken}, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	var userID string
	if session != nil {
		userID = session.UserID
	}
	slog.Info("user signed out", slog.String("session_id", sessionID))
	s.emit(Event{Type: EventSignedOut, UserID: userID})

	return nil
}

// RefreshToken は有効なセッションに対して新しいアクセストークンを発行する。
func (s *Service) RefreshToken(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrSessionNotFound
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return "", ErrSessionNotFound
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", ErrSessionNotFound
	}

	accessToken, err := s.tokens.Mint(user.ID, user.Email, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to mint access token: %w", err)
	}

	s.emit(Event{Type: EventTokenRefreshed, UserID: user.ID, Session: session})
	return accessToken, nil
}

// CurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}

	return user, nil
}

// UpdateName はセッション所有者自身の表示名を更新する。
func (s *Service) UpdateName(ctx context.Context, sessionID, name string) (*model.User, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	user, err := s.CurrentUser(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateName(ctx, user.ID, name); err != nil {
		return nil, fmt.Errorf("failed to update user name: %w", err)
	}

	user.Name = name
	slog.Info("user updated", slog.String("user_id", user.ID))
	s.emit(Event{Type: EventUserUpdated, UserID: user.ID})

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
