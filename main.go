package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"unimarket/config"
	"unimarket/controller"
	"unimarket/database"
	"unimarket/event"
	"unimarket/event/listener"
	"unimarket/logger"
	"unimarket/mailer"
	"unimarket/metrics"
	"unimarket/middleware"
	"unimarket/push"
	"unimarket/router"
	"unimarket/service"
	"unimarket/socketio"
	"unimarket/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("unimarket: failed to load config: %v", err)
	}

	logs, err := logger.New(cfg.Log.Development)
	if err != nil {
		log.Fatalf("unimarket: failed to build logger: %v", err)
	}
	defer logs.Sync()

	if err := run(cfg, logs); err != nil {
		logs.Fatalw("unimarket stopped", "err", err)
	}
}

func run(cfg *config.Config, logs *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if cfg.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	identity := push.Identity{
		Subject:    cfg.Vapid.Subject,
		PublicKey:  cfg.Vapid.PublicKey,
		PrivateKey: cfg.Vapid.PrivateKey,
	}
	if err := identity.Validate(); err != nil {
		if cfg.Production() {
			return err
		}
		// Development only: keys change on every start, so browsers must subscribe again.
		identity, err = push.GenerateIdentity(cfg.Vapid.Subject)
		if err != nil {
			return err
		}
		logs.Warnw("no VAPID keys configured, generated a temporary pair", "publicKey", identity.PublicKey)
	}

	db, err := database.PostgresConnect(cfg.Postgres, logs)
	if err != nil {
		return err
	}
	enforcer, err := database.Casbin(db)
	if err != nil {
		return err
	}
	redisClients, err := database.RedisConnect(ctx, cfg.Redis, logs)
	if err != nil {
		return err
	}
	defer redisClients.Close()

	var publisher event.Publisher = event.Nop{}
	if cfg.EventMode != "DISABLE" {
		rabbit, err := event.RabbitMQConnect(cfg.RabbitMQ, logs)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		publisher = rabbit

		events := make(chan event.Event)
		if err := rabbit.Subscribe(ctx, events); err != nil {
			return err
		}
		go listener.Audit(events, logs.Named("events"))
	}

	m := metrics.New()
	realtime := socketio.New(redisClients.Socket, cfg.JWT.Secret, cfg.Log.Development, logs.Named("socket"))
	defer realtime.Close()

	users := store.NewUserStore(db)
	subscriptions := store.NewSubscriptionStore(db)
	messenger := service.NewMessenger(
		users,
		store.NewConversationStore(db),
		store.NewMessageStore(db),
		subscriptions,
		push.NewDispatcher(identity),
		logs.Named("messenger"),
		service.WithRealtime(realtime),
		service.WithPublisher(publisher),
		service.WithMetrics(m),
	)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		AppName:               "unimarket",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AppURL,
		AllowCredentials: true,
	}))

	router.Rest(app, router.Deps{
		Secret:         cfg.JWT.Secret,
		Enforcer:       enforcer,
		Metrics:        m,
		MessageLimiter: middleware.NewRateLimiter(redisClients.Cache, "messages", cfg.RateLimit.Messages, cfg.RateWindow(), m, logs),
		LoginLimiter:   middleware.NewRateLimiter(redisClients.Cache, "logins", cfg.RateLimit.Logins, cfg.RateWindow(), m, logs),
		Auth: controller.NewAuth(users, enforcer, redisClients.Cache, mailer.NewLog(logs.Named("mail")), publisher, controller.AuthConfig{
			Secret:       cfg.JWT.Secret,
			TokenTTL:     cfg.TokenTTL(),
			SecureCookie: cfg.Production(),
			OtpIssuer:    cfg.OtpIssuer,
			AppURL:       cfg.Server.AppURL,
			BcryptCost:   14,
		}, logs.Named("auth")),
		User:      controller.NewUser(users, logs),
		Messenger: controller.NewMessenger(messenger, logs),
		Push:      controller.NewPush(subscriptions, identity.PublicKey, logs),
		Product:   controller.NewProduct(store.NewProductStore(db), store.NewCategoryStore(db), logs),
	})
	realtime.Mount(app)
	router.Socket(realtime, messenger, logs.Named("socket"))

	errs := make(chan error, 1)
	go func() {
		logs.Infow("listening", "port", cfg.Server.Port)
		errs <- app.Listen(fmt.Sprintf(":%s", cfg.Server.Port))
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logs.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logs.Warnw("shutdown incomplete", "err", err)
	}
	return nil
}
