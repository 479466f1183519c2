package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"innovia-booking/internal/app"
	"innovia-booking/internal/hub"
	"innovia-booking/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Error("DATABASE_URL required")
		os.Exit(1)
	}
	jwtSecret := os.Getenv("JWT_HMAC_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_HMAC_SECRET required")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Error("connect to db failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(envOr("REDIS_URL", "redis://localhost:6379/0"))
	if err != nil {
		logger.Error("invalid REDIS_URL", "err", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	clock, err := app.NewSlotClock(envOr("BOOKING_TZ", "Europe/Stockholm"))
	if err != nil {
		logger.Error("load booking timezone failed", "err", err)
		os.Exit(1)
	}

	store := app.NewPG(pool)
	notifications := hub.New(logger)
	engine := app.NewEngine(store, store, clock, notifications, logger)

	suggestions := app.NewSuggestionService(
		store,
		app.NewHistorySuggester(store),
		app.NewRedisGate(rdb, 20*time.Second),
		notifications,
		logger,
	)

	mirror := app.NewCalendarMirror(
		os.Getenv("GOOGLE_CLIENT_ID"),
		os.Getenv("GOOGLE_CLIENT_SECRET"),
		os.Getenv("GOOGLE_REDIRECT_URL"),
	)

	api := app.NewAPI(engine, suggestions, mirror, store, notifications, logger)

	router := gin.Default()

	// OAuth2 callback must stay outside the auth middleware.
	if mirror != nil {
		router.GET("/oauth2callback", mirror.CallbackHandler)
	}

	router.Use(app.AuthMiddleware(jwtSecret))

	suggestLimit := app.NewRateLimiter(rate.Every(time.Minute/5), 1)

	apiGroup := router.Group("/api")
	{
		bookings := apiGroup.Group("/bookings")
		{
			bookings.POST("", api.CreateBookingHandler)
			bookings.GET("", app.RequireAdmin(), api.ListBookingsHandler)
			bookings.GET("/my", api.ListMyBookingsHandler)
			bookings.GET("/:id", api.GetBookingHandler)
			bookings.PUT("/:id", api.UpdateBookingHandler)
			bookings.DELETE("/:id", api.CancelBookingHandler)
		}
		apiGroup.DELETE("/admin/bookings/:id", app.RequireAdmin(), api.DeleteBookingHandler)
		apiGroup.GET("/resources/:id/bookings", api.ListResourceBookingsHandler)
		apiGroup.GET("/suggestions", suggestLimit.Limit(), api.SuggestionHandler)
		apiGroup.GET("/ws", api.WSHandler)

		if mirror != nil {
			apiGroup.GET("/calendar/auth", mirror.AuthHandler)
		}
	}

	server.Run(router, logger)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
