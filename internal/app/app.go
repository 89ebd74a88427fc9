package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/accountlink/internal/auth"
	"github.com/hitoshi/accountlink/internal/config"
	"github.com/hitoshi/accountlink/internal/database"
	"github.com/hitoshi/accountlink/internal/handler"
	"github.com/hitoshi/accountlink/internal/logger"
	"github.com/hitoshi/accountlink/internal/metrics"
	"github.com/hitoshi/accountlink/internal/middleware"
	"github.com/hitoshi/accountlink/internal/repository"
	"github.com/hitoshi/accountlink/internal/security"
	"github.com/hitoshi/accountlink/internal/user"
	"github.com/hitoshi/accountlink/internal/worker/cleanup"
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

	// 3. 設定されたログレベルを反映
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHelp {
		Usage(w)
		return nil
	}

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
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// repositories はDATABASE_URLとREDIS_ADDRに応じて選択したリポジトリ一式。
type repositories struct {
	users    repository.UserRepository
	conns    repository.ConnectionRepository
	sessions repository.SessionRepository
	close    func() error
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// newRepositories はデータベースの種類に応じたリポジトリを生成する。
// REDIS_ADDRが設定されている場合、セッションはRedisに保存する。
func newRepositories(ctx context.Context, cfg *config.Config, db *sql.DB) (*repositories, error) {
	dialect, err := database.DialectOf(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	repos := &repositories{close: func() error { return nil }}
	switch dialect {
	case database.DialectSQLite:
		repos.users = repository.NewSQLiteUserRepo(db)
		repos.conns = repository.NewSQLiteConnectionRepo(db)
		repos.sessions = repository.NewSQLiteSessionRepo(db)
	default:
		repos.users = repository.NewPostgresUserRepo(db)
		repos.conns = repository.NewPostgresConnectionRepo(db)
		repos.sessions = repository.NewPostgresSessionRepo(db)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		repos.sessions = repository.NewRedisSessionRepo(client)
		repos.close = client.Close
		slog.Info("using redis session store", slog.String("addr", cfg.RedisAddr))
	}

	return repos, nil
}

// newProviders は設定済みのOAuthプロバイダーを生成する。
func newProviders(cfg *config.Config, client *http.Client) []auth.OAuthProvider {
	var providers []auth.OAuthProvider
	if cfg.Google.Enabled() {
		providers = append(providers, auth.NewGoogleProvider(auth.ProviderConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			HTTPClient:   client,
		}))
	}
	if cfg.GitHub.Enabled() {
		providers = append(providers, auth.NewGitHubProvider(auth.ProviderConfig{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  cfg.GitHub.RedirectURL,
			HTTPClient:   client,
		}))
	}
	return providers
}

// newRateLimiterConfig はreq/min単位の設定値をレートリミッター設定に変換する。
func newRateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.UserRate = middleware.PerMinute(cfg.RateLimitGeneral)
		rl.UserBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitAuth > 0 {
		rl.IPRate = middleware.PerMinute(cfg.RateLimitAuth)
		rl.IPBurst = cfg.RateLimitAuth
	}
	return rl
}

// newRouter は全依存関係をワイヤリングしたHTTPハンドラーを返す。
func newRouter(cfg *config.Config, db *sql.DB, repos *repositories, reg *prometheus.Registry, rl *middleware.RateLimiter) http.Handler {
	collector := metrics.NewCollector(reg)

	hasher := user.NewBcryptHasher(cfg.BcryptCost)
	sanitizer := security.NewProfileSanitizer()
	factory := user.NewFactory(hasher, sanitizer)

	providers := auth.NewRegistry(newProviders(cfg, security.NewProviderClient(cfg.ProviderTimeout))...)
	slog.Info("oauth providers registered", slog.Any("providers", providers.Names()))

	resolver := auth.NewResolver(repos.users, repos.conns, factory, collector).WithSanitizer(sanitizer)
	authService := auth.NewService(providers, resolver, repos.users, repos.sessions,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge}, collector)
	userService := user.NewService(repos.users, repos.conns, repos.sessions, factory, hasher, collector)

	return handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		SessionFinder:     repos.sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HSTS: cfg.CookieSecure,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL: cfg.BaseURL,
			Cookie: handler.CookieConfig{
				Domain:        cfg.CookieDomain,
				Secure:        cfg.CookieSecure,
				SessionMaxAge: cfg.SessionMaxAge,
			},
		},
		UserService: userService,
	})
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続とリポジトリの初期化
	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	repos, err := newRepositories(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer repos.close()

	// 2. ルーターの構築
	rl := middleware.NewRateLimiter(newRateLimiterConfig(cfg))
	defer rl.Stop()

	router := newRouter(cfg, db, repos, prometheus.NewRegistry(), rl)

	// 3. HTTPサーバーの起動
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

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの定期削除を行い、/metricsをMETRICS_PORTで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	repos, err := newRepositories(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer repos.close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	cleanupJob := cleanup.NewCleanupJob(repos.sessions, slog.Default(), collector)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
		slog.String("metrics_addr", metricsServer.Addr),
	)

	// メインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

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

	version, _, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	healthURL := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(healthURL)
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
// SQLiteのファイルパスはそのまま返す。
func maskDatabaseURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	return u.String()
}
