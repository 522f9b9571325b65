package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"galaxy_ai_go_backend/cmd/api/config"
	"galaxy_ai_go_backend/internal/api"
	"galaxy_ai_go_backend/internal/auth"
	"galaxy_ai_go_backend/internal/cache"
	"galaxy_ai_go_backend/internal/database"
	"galaxy_ai_go_backend/internal/logging"
	"galaxy_ai_go_backend/internal/queue"
	"galaxy_ai_go_backend/internal/services"
	"galaxy_ai_go_backend/internal/utils/broker"
	"galaxy_ai_go_backend/internal/wsocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// deps holds everything built from the configuration. close releases them in
// reverse order of creation.
type deps struct {
	db        *gorm.DB
	gateway   *services.AIGateway
	chatDB    services.ChatServiceDB
	tokens    cache.Cache
	messages  *broker.Broker
	taskQueue queue.Client
	closers   []io.Closer
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("Error releasing resource")
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{messages: broker.NewBroker(), tokens: cache.NoopCache{}}

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	d.db = db
	d.chatDB = services.NewChatServiceDB(db)
	if sqlDB, err := db.DB(); err == nil {
		d.closers = append(d.closers, sqlDB)
	}

	completer, err := newCompleter(ctx, cfg, d)
	if err != nil {
		d.close()
		return nil, err
	}
	d.gateway = services.NewAIGateway(completer)

	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			d.close()
			return nil, err
		}
		d.tokens = redisCache
		d.closers = append(d.closers, redisCache)

		client, err := queue.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			d.close()
			return nil, err
		}
		d.taskQueue = client
		d.closers = append(d.closers, client)
	} else {
		log.Info().Msg("REDIS_URL not set; token cache and background titles disabled")
	}
	return d, nil
}

func newCompleter(ctx context.Context, cfg *config.Config, d *deps) (services.Completer, error) {
	switch cfg.AIProvider {
	case "gemini":
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create GenAI client: %w", err)
		}
		d.closers = append(d.closers, closerFunc(client.Close))
		return services.NewGeminiCompleter(client, cfg.GeminiModel), nil
	default:
		return services.NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	}
}

func newTitleWorker(cfg *config.Config, d *deps) (queue.Server, error) {
	worker, err := queue.NewAsynqServer(cfg.RedisURL, cfg.WorkerConcurrency)
	if err != nil {
		return nil, err
	}
	worker.Register(services.TitleTaskType, services.NewTitleTaskHandler(d.chatDB, d.gateway, d.messages))
	return worker, nil
}

func newRouter(cfg *config.Config, d *deps) *gin.Engine {
	var titles services.TitleEnqueuer
	if d.taskQueue != nil {
		titles = services.NewTitleTasks(d.taskQueue)
	}
	chatService := services.NewChatService(d.chatDB, d.gateway, titles)

	var verifier services.IdentityVerifier
	if cfg.GoogleClientID != "" {
		verifier = services.NewGoogleTokenVerifier(cfg.GoogleClientID)
	}
	authService := services.NewAuthService(
		services.NewUserService(d.db),
		services.NewTokenServiceDB(d.db),
		d.tokens,
		cfg.TokenCacheTTL,
		verifier,
	)

	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", healthHandler(d))

	api.SetupRoutes(r, chatService, authService)
	auth.SetupRoutes(r, authService)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     allowOrigin(cfg.AllowedOrigins),
	}
	wsHandler := wsocket.NewHandler(chatService, d.messages, upgrader)
	r.GET("/ws/chat", auth.AuthMiddleware(authService), func(c *gin.Context) {
		wsHandler.HandleWebSocket(c.Writer, c.Request, auth.MustCurrentUser(c))
	})
	return r
}

// healthHandler reports OK when the database and the token cache answer a
// ping, and 503 with the failing checks otherwise.
func healthHandler(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		failed := gin.H{}
		if sqlDB, err := d.db.DB(); err != nil {
			failed["database"] = err.Error()
		} else if err := sqlDB.PingContext(ctx); err != nil {
			failed["database"] = err.Error()
		}
		if err := d.tokens.Ping(ctx); err != nil {
			failed["cache"] = err.Error()
		}

		if len(failed) > 0 {
			log.Ctx(c.Request.Context()).Warn().Interface("checks", failed).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	}
}

// allowOrigin accepts same-host requests and the configured CORS origins.
func allowOrigin(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()

	if d.taskQueue != nil {
		worker, err := newTitleWorker(cfg, d)
		if err != nil {
			return err
		}
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Title worker stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, d),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down server")
	return srv.Shutdown(shutdownCtx)
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required to run the worker")
	}
	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()

	worker, err := newTitleWorker(cfg, d)
	if err != nil {
		return err
	}
	log.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("Title worker starting")
	return worker.Run(ctx)
}
