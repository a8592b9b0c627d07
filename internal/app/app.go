package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pagegate/internal/announce"
	"github.com/hitoshi/pagegate/internal/auth"
	"github.com/hitoshi/pagegate/internal/config"
	"github.com/hitoshi/pagegate/internal/database"
	"github.com/hitoshi/pagegate/internal/entitlement"
	"github.com/hitoshi/pagegate/internal/gate"
	"github.com/hitoshi/pagegate/internal/handler"
	"github.com/hitoshi/pagegate/internal/logger"
	"github.com/hitoshi/pagegate/internal/metrics"
	"github.com/hitoshi/pagegate/internal/middleware"
	"github.com/hitoshi/pagegate/internal/model"
	"github.com/hitoshi/pagegate/internal/profile"
	"github.com/hitoshi/pagegate/internal/progress"
	"github.com/hitoshi/pagegate/internal/repository"
	"github.com/hitoshi/pagegate/internal/security"
	"github.com/hitoshi/pagegate/internal/worker/cleanup"
	"golang.org/x/time/rate"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("environment", cfg.Environment),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	entitlementRepo := repository.NewPostgresEntitlementRepo(db)
	progressRepo := repository.NewPostgresProgressRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)
	announcementRepo := repository.NewPostgresAnnouncementRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()
	tokens := security.NewTokenIssuer(cfg.SessionSecret, cfg.TokenTTL)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, tokens,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	oracle := auth.NewOracle(sessionRepo)

	profileService := profile.NewService(profileRepo, sanitizer, ssrfGuard)
	profileService.SetRecorder(collector)

	progressService := progress.NewService(progressRepo)
	progressService.SetRecorder(collector)

	entitlementService := entitlement.NewService(entitlementRepo)

	// 6. ゲートディスパッチャの初期化
	dispatcher := gate.NewDispatcher(oracle, entitlementService, profileService, collector,
		gate.Config{
			LoginURL:    cfg.LoginURL,
			NoAccessURL: cfg.NoAccessURL,
		},
	)

	// デバッグバイパスは開発環境かつ明示的な設定がある場合のみ配線する
	debugBypass := cfg.IsDevelopment() && cfg.DebugBypass
	if debugBypass {
		slog.Warn("debug bypass is enabled: all gate decisions will be skipped")
	}

	// 7. ルーターの構築
	// configのRateLimitGeneral/RateLimitSignInはreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.SignInRate = rate.Limit(float64(cfg.RateLimitSignIn) / 60.0)

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		HealthChecker:  db,
		Metrics:        metrics.Handler(registry),
		StatusRecorder: collector,
		Logger:         slog.Default(),

		Dispatcher:  dispatcher,
		DebugBypass: debugBypass,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ProfileService:     profileService,
		ProgressService:    progressService,
		EntitlementService: entitlementService,

		Users:         userRepo,
		Courses:       courseRepo,
		Announcements: announcementRepo,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、お知らせフェッチスケジューラとセッションクリーンアップ
// ジョブを起動する。SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)
	announcementRepo := repository.NewPostgresAnnouncementRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. お知らせフェッチャーの初期化
	detector := announce.NewDetector(ssrfGuard, cfg.FetchTimeout, cfg.FetchMaxSize)
	fetcher := announce.NewFetcher(
		announcementRepo, sanitizer, ssrfGuard, collector,
		slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize,
	)
	scheduler := announce.NewScheduler(
		courseRepo, detector, fetcher, slog.Default(), cfg.FetchMaxConcurrent,
	)

	// 6. セッションクリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("fetch_interval", cfg.AnnounceFetchInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
	)

	// クリーンアップジョブを時間単位でバックグラウンド実行
	go cleanupJob.Start(ctx, time.Hour)

	// お知らせフェッチスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.AnnounceFetchInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed はデモ用の初期データを投入する。
// エンタイトルメントの付与はゲート処理の外の管理プロセスの責務であり、
// このサブコマンドがデモユーザー・コース・エンタイトルメントを冪等に作成する。
func runSeed(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	userRepo := repository.NewPostgresUserRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)
	entitlementRepo := repository.NewPostgresEntitlementRepo(db)

	ctx := context.Background()
	now := time.Now()

	// 1. デモユーザー（存在する場合はスキップ）
	const demoEmail = "demo@example.com"
	demoUser, err := userRepo.FindByEmail(ctx, demoEmail)
	if err != nil {
		return fmt.Errorf("failed to find demo user: %w", err)
	}
	if demoUser == nil {
		password := os.Getenv("SEED_PASSWORD")
		if password == "" {
			password = "demo-password"
		}
		hash, err := security.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash demo password: %w", err)
		}

		demoUser = &model.User{
			ID:           uuid.New().String(),
			Email:        demoEmail,
			Name:         "Demo User",
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := userRepo.Create(ctx, demoUser); err != nil {
			return fmt.Errorf("failed to create demo user: %w", err)
		}
		slog.Info("demo user created", slog.String("email", demoEmail))
	}

	// 2. デモコース（存在する場合はスキップ）
	courses := []*model.Course{
		{Key: "course-basic", Title: "入門コース"},
		{Key: "course-advanced", Title: "応用コース"},
	}
	for _, c := range courses {
		existing, err := courseRepo.FindByKey(ctx, c.Key)
		if err != nil {
			return fmt.Errorf("failed to find course %s: %w", c.Key, err)
		}
		if existing != nil {
			continue
		}

		c.ID = uuid.New().String()
		c.CreatedAt = now
		c.UpdatedAt = now
		if err := courseRepo.Create(ctx, c); err != nil {
			return fmt.Errorf("failed to create course %s: %w", c.Key, err)
		}
		slog.Info("course created", slog.String("key", c.Key))
	}

	// 3. デモユーザーへのエンタイトルメント付与（Grantは冪等）
	for _, key := range []string{"course-basic"} {
		ent := &model.Entitlement{
			ID:          uuid.New().String(),
			UserID:      demoUser.ID,
			ResourceKey: key,
			GrantedAt:   now,
		}
		if err := entitlementRepo.Grant(ctx, ent); err != nil {
			return fmt.Errorf("failed to grant entitlement %s: %w", key, err)
		}
		slog.Info("entitlement granted",
			slog.String("user_id", demoUser.ID),
			slog.String("resource_key", key),
		)
	}

	slog.Info("seed completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
