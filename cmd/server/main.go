package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/mkhosravi/venue-scheduler/internal/config"
	"github.com/mkhosravi/venue-scheduler/internal/database"
	"github.com/mkhosravi/venue-scheduler/internal/handler"
	"github.com/mkhosravi/venue-scheduler/internal/middleware"
	"github.com/mkhosravi/venue-scheduler/internal/queue"
	"github.com/mkhosravi/venue-scheduler/internal/repository"
	"github.com/mkhosravi/venue-scheduler/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: rate limiting and caching degrade to no-ops when
	// the client is nil.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	venues := repository.NewVenueRepo(db)
	events := repository.NewEventRepo(db)
	slots := repository.NewSlotRepo(db)
	assignments := repository.NewAssignmentRepo(db)
	tickets := repository.NewTicketRepo(db)

	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	scheduleHandler := handler.NewScheduleHandler(venues, events, slots, assignments, tickets)

	// Background consumer: logs committed assignments delivered over the
	// broker.  Runs its own reconnect loop forever.
	go func() {
		if err := queue.StartAssignmentConsumer(); err != nil {
			log.Printf("assignment consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	limiter := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)
	cache := middleware.ResponseCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterSchedule(e, scheduleHandler, cfg.JWTSecret, limiter)
	router.RegisterPublic(e, scheduleHandler, limiter, cache)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
