package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/identicore/identity-service/docs"
	"github.com/identicore/identity-service/internal/api/handler"
	"github.com/identicore/identity-service/internal/api/middleware"
	"github.com/identicore/identity-service/internal/core/service"
	"github.com/identicore/identity-service/internal/infrastructure/config"
	mongodb "github.com/identicore/identity-service/internal/infrastructure/db/mongo"
	redisdb "github.com/identicore/identity-service/internal/infrastructure/db/redis"
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(db *mongo.Database, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("identity"))

	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Dependencies ---
	userRepo := mongodb.NewUserRepository(db)
	hasher := service.NewBcryptHasher(cfg.BcryptCost)

	var tracker service.ResetTokenTracker
	if cfg.ResetTokenTTL > 0 {
		tracker = redisdb.NewResetTokenTracker(rdb, cfg.ResetTokenTTL)
	}

	authService := service.NewAuthService(userRepo, hasher, tracker, log)
	authHandler := handler.NewAuthHandler(authService, cfg.CookieSecure)
	passwordHandler := handler.NewPasswordHandler(authService)
	sessionRequired := middleware.Session(authService)

	// --- Routes ---
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Bienvenue"})
	})

	e.POST("/users", authHandler.Register)
	e.POST("/sessions", authHandler.Login)
	e.DELETE("/sessions", authHandler.Logout, sessionRequired)
	e.GET("/profile", authHandler.Profile, sessionRequired)

	e.POST("/reset_password", passwordHandler.IssueResetToken)
	e.PUT("/reset_password", passwordHandler.UpdatePassword)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Observability & docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
