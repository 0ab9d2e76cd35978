package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kexinw/sit-marketplace-api/internal/auth"
	"github.com/kexinw/sit-marketplace-api/internal/config"
	"github.com/kexinw/sit-marketplace-api/internal/data"
	"github.com/kexinw/sit-marketplace-api/internal/db"
	"github.com/kexinw/sit-marketplace-api/internal/events"
	"github.com/kexinw/sit-marketplace-api/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(ctx)
	}()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	productsStore := data.NewProductsStore(dbClient.ProductsCollection())
	postsStore := data.NewPostsStore(dbClient.PostsCollection())
	chatsStore := data.NewChatsStore(dbClient.ChatsCollection())

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// Without a Redis address the interest events are dropped; the
	// chat collaborator simply sees no signals.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to ping Redis: %v", err)
		}
		defer func() { _ = rdb.Close() }()
		publisher = events.NewRedisPublisher(rdb)
	}

	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, 1*time.Minute)
	defer limiterStore.Stop()

	app := fiber.New(fiber.Config{
		AppName: "sit-marketplace-api",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}
			return c.Status(code).JSON(fiber.Map{"error": msg})
		},
	})

	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	srv := newServer(usersStore, productsStore, postsStore, chatsStore, jwtMgr, publisher)
	srv.routes(app, limiterStore)

	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("server exit: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
