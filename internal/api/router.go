package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"neurochat/internal/auth"
	"neurochat/internal/chat"
	"neurochat/internal/code"
	"neurochat/internal/config"
	"neurochat/internal/db"
	"neurochat/internal/llm"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(
	cfg *config.Config,
	database *db.DB,
	llmClient llm.Client,
	codeCache auth.CodeCache,
) (*Server, error) {
	userRepo := db.NewUserRepository(database)
	authCodeRepo := db.NewAuthCodeRepository(database)
	sessionRepo := db.NewSessionRepository(database)
	messageRepo := db.NewMessageRepository(database)

	tokenService := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	authService := auth.NewService(userRepo, authCodeRepo, codeCache, cfg.Auth.CodeTTL)
	chatService := chat.NewService(sessionRepo, messageRepo, llmClient)

	codeService := code.NewService(llmClient)

	authHandler := NewAuthHandler(authService, tokenService, userRepo)
	botHandler := NewBotHandler(authService)
	chatHandler := NewChatHandler(chatService)
	codeHandler := NewCodeHandler(codeService)
	chatWSHandler := NewChatWSHandler(chatService, tokenService)
	healthHandler := NewHealthHandler(database)

	authMiddleware := NewAuthMiddleware(tokenService)
	verifyLimiter := NewRateLimiter(5, time.Minute)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(120, time.Minute))
		r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB

		r.Route("/bot", func(r chi.Router) {
			r.Use(RequireBotToken(cfg.Auth.BotToken))
			r.Post("/auth-codes", botHandler.IssueCode)
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(RateLimitMiddleware(verifyLimiter)).Post("/verify-code", authHandler.VerifyCode)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Get("/me", authHandler.GetMe)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Route("/chat", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Post("/sessions", chatHandler.CreateSession)
			r.Get("/sessions", chatHandler.ListSessions)
			r.Get("/sessions/{sessionID}/messages", chatHandler.ListMessages)
			r.Post("/send", chatHandler.SendMessage)
			r.Delete("/sessions/{sessionID}", chatHandler.DeleteSession)
		})

		r.Route("/code", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Post("/analyze", codeHandler.Analyze)
			r.Post("/fix", codeHandler.Fix)
			r.Post("/explain", codeHandler.Explain)
			r.Post("/generate", codeHandler.Generate)
		})

		// Token travels as a query parameter on the upgrade request, so the
		// bearer middleware does not apply here.
		r.Get("/chat/ws/{sessionID}", chatWSHandler.ServeWS)
	})

	return &Server{
		router: r,
		config: cfg,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Bot-Token")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
