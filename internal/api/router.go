package api

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ammarsecurity/nexchat/internal/api/handlers"
	"github.com/ammarsecurity/nexchat/internal/api/middleware"
	"github.com/ammarsecurity/nexchat/internal/config"
	"github.com/ammarsecurity/nexchat/internal/matching"
	"github.com/ammarsecurity/nexchat/internal/repository"
	"github.com/ammarsecurity/nexchat/internal/websocket"
	"github.com/ammarsecurity/nexchat/pkg/database"
	"github.com/ammarsecurity/nexchat/pkg/logger"
	"github.com/ammarsecurity/nexchat/pkg/ratelimit"
)

// SetupRouter wires repositories, the matching core and the websocket hub
// into a gin engine.
func SetupRouter(cfg *config.Config, db *database.DB) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// Matching core
	presence := matching.NewPresenceRegistry()
	queue := matching.NewMatchQueue()
	pending := matching.NewPendingRequestTable()
	pending.StartSweeper(cfg.RequestSweepInterval)

	coordinator := matching.NewCoordinator(presence, queue, pending, sessionRepo, userRepo)

	// WebSocket hub
	wsHub := websocket.NewHub()

	relay := matching.NewSignalingRelay(presence, sessionRepo, wsHub)
	dispatcher := websocket.NewDispatcher(coordinator, relay, wsHub, userRepo, sessionRepo, reportRepo)
	wsHub.SetHandler(dispatcher)

	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Rate limiting, distributed when Redis is configured
	apiRateLimit := middleware.GeneralAPIRateLimit()
	connectRateLimit := middleware.ConnectRateLimit()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("Invalid REDIS_URL, falling back to in-memory rate limiting", "error", err)
		} else {
			redisLimiter := ratelimit.NewRedisRateLimiter(redis.NewClient(opts), "nexchat:ratelimit")
			apiRateLimit = middleware.RedisGeneralAPIRateLimit(redisLimiter)
			connectRateLimit = middleware.RedisConnectRateLimit(redisLimiter)
			logger.Info("Redis rate limiting enabled")
		}
	}

	// Handlers
	userHandler := handlers.NewUserHandler(userRepo)
	wsHandler := handlers.NewWebSocketHandler(wsHub)

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// WebSocket endpoint
	router.GET("/ws", connectRateLimit, middleware.Auth(cfg), wsHandler.HandleWebSocket)

	// API
	apiGroup := router.Group("/api")
	apiGroup.Use(apiRateLimit)
	{
		users := apiGroup.Group("/users")
		users.Use(middleware.Auth(cfg))
		{
			users.GET("/me", userHandler.GetCurrentUser)
		}
	}

	return router
}
