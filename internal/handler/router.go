package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/accountlink/internal/metrics"
	"github.com/hitoshi/accountlink/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通を確認する対象。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig
	HSTS              bool

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー
	UserService AccountService
}

// AccountService はユーザー管理とパスワード認証の両方を提供するサービス。*user.Serviceが満たす。
type AccountService interface {
	UserServiceInterface
	PasswordVerifier
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → RealIP
//
// 未ログインでも使うルート（/auth/*, /api/signup）にはIP単位のレート制限とCSRF検証を、
// 認証が必要なルートにはSession → ユーザー単位のレート制限 → CSRF検証を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(chimiddleware.RealIP)

	authHandler := NewAuthHandler(deps.AuthService, deps.UserService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService, deps.AuthService, deps.AuthConfig.Cookie)
	csrf := middleware.NewCSRFMiddleware(deps.CSRF)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

	// --- 認証不要のルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.IPMiddleware())
		r.Use(csrf)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/providers", authHandler.Providers)
			r.Get("/me", authHandler.Me)
			r.Post("/login", authHandler.PasswordLogin)
			r.Post("/logout", authHandler.Logout)

			// OAuthフロー
			r.Get("/{provider}/login", authHandler.Login)
			r.Get("/{provider}/callback", authHandler.Callback)
		})

		r.Post("/api/signup", userHandler.Signup)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.UserMiddleware())
		r.Use(csrf)

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Delete("/me", userHandler.Withdraw)
			r.Get("/me/connections", userHandler.ListConnections)
			r.Delete("/me/connections/{id}", userHandler.Disconnect)
			r.Get("/{id}", userHandler.GetUser)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
