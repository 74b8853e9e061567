package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/api"
	"github.com/geodonis/geodonis-web/internal/api/handler"
	"github.com/geodonis/geodonis-web/internal/api/middleware"
	"github.com/geodonis/geodonis-web/internal/core/ports"
	"github.com/geodonis/geodonis-web/internal/core/service"
	"github.com/geodonis/geodonis-web/internal/infrastructure/config"
	mongodb "github.com/geodonis/geodonis-web/internal/infrastructure/db/mongo"
	redisdb "github.com/geodonis/geodonis-web/internal/infrastructure/db/redis"
	"github.com/geodonis/geodonis-web/internal/infrastructure/http/handlers"
	"github.com/geodonis/geodonis-web/internal/infrastructure/messaging/rabbitmq"
	"github.com/geodonis/geodonis-web/internal/infrastructure/queue"
	"github.com/geodonis/geodonis-web/internal/infrastructure/storage"
	"github.com/geodonis/geodonis-web/pkg/logger"
	"github.com/geodonis/geodonis-web/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	pruneOnly := flag.Bool("prune-reset-tokens", false, "delete used or expired reset tokens and exit")
	createAdmin := flag.String("create-admin", "", "provision a super user as email,username, print its reset link and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *pruneOnly, *createAdmin); err != nil {
		l := logger.Get()
		l.Error().Err(err).Msg("server exited with error")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, pruneOnly bool, createAdmin string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Pretty(),
		Service: "geodonis-web",
		Env:     cfg.AppEnv,
	})

	mongoClient, db, err := mongodb.Connect(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	users := mongodb.NewUserRepository(db)
	resets := mongodb.NewResetTokenRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	if err := resets.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("reset token indexes: %w", err)
	}

	var events ports.EventPublisher
	if cfg.AMQP.URL != "" {
		pub, err := rabbitmq.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer pub.Close()

		dispatcher := queue.NewDispatcher(0, pub, log.With().Str("component", "events").Logger())
		dispatcher.Start(context.WithoutCancel(ctx))
		defer dispatcher.Stop()
		events = dispatcher
	} else {
		log.Info().Msg("AMQP_URL not set, account events are not published")
	}

	userService := service.NewUserService(users, resets, events, cfg.JWT.ResetExpires, log.With().Str("component", "users").Logger())

	switch {
	case pruneOnly:
		n, err := userService.PruneResetTokens(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d reset tokens\n", n)
		return nil
	case createAdmin != "":
		return provisionAdmin(ctx, userService, cfg, createAdmin)
	}

	tokens := service.NewTokenIssuer(cfg.JWT.SecretKey, cfg.JWT.AccessExpires, cfg.JWT.RefreshExpires)
	authService, err := service.NewAuthService(users, tokens, log.With().Str("component", "auth").Logger())
	if err != nil {
		return err
	}

	files, err := storage.Open(ctx, cfg.StorageSource, cfg.Storage.BasePath, storage.S3Config{
		Bucket:             cfg.Storage.Bucket,
		Region:             cfg.Storage.Region,
		Endpoint:           cfg.Storage.Endpoint,
		ReadAccessKey:      cfg.Storage.ReadAccessKey,
		ReadSecretKey:      cfg.Storage.ReadSecretKey,
		ReadWriteAccessKey: cfg.Storage.ReadWriteAccessKey,
		ReadWriteSecretKey: cfg.Storage.ReadWriteSecretKey,
	})
	if err != nil {
		return err
	}
	uploadService := service.NewUploadService(files, log.With().Str("component", "uploads").Logger())

	checks := map[string]handlers.Pinger{
		"mongo": handlers.PingFunc(mongodb.Ping(mongoClient)),
	}

	// Deps.Limiter stays a nil interface when Redis is unavailable.
	var limiter middleware.Limiter
	redisClient, err := redisdb.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, login rate limiting disabled")
	} else {
		defer redisClient.Close()
		limiter = redisdb.NewLimiter(redisClient)
		checks["redis"] = handlers.PingFunc(redisdb.Ping(redisClient))
	}

	store := sessions.NewCookieStore([]byte(cfg.SecretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}

	e := api.NewRouter(api.Deps{
		AuthService:     authService,
		UserService:     userService,
		UploadService:   uploadService,
		Checks:          checks,
		Limiter:         limiter,
		LoginRateLimit:  cfg.Limits.LoginRate,
		LoginRateWindow: cfg.Limits.LoginWindow,
		Renderer:        handler.NewRenderer(web.Templates(), !cfg.IsProduction()),
		Static:          web.Static(),
		SessionStore:    store,
		Cookies:         handler.CookieConfig{Secure: cfg.CookieSecure},
		Registerer:      prometheus.DefaultRegisterer,
		Gatherer:        prometheus.DefaultGatherer,
		PublicBaseURL:   cfg.PublicBaseURL,
		EnableSwagger:   cfg.EnableSwagger,
		JSAppPath:       cfg.JSAppPath,
		Log:             log,
	})

	return serve(ctx, e, ":"+cfg.Port, log)
}

type server interface {
	Start(address string) error
	Shutdown(ctx context.Context) error
}

func serve(ctx context.Context, e server, addr string, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func provisionAdmin(ctx context.Context, users ports.UserService, cfg *config.Config, arg string) error {
	email, username, ok := strings.Cut(arg, ",")
	email, username = strings.TrimSpace(email), strings.TrimSpace(username)
	if !ok || email == "" || username == "" {
		return errors.New("-create-admin expects email,username")
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Port
	}
	user, link, err := users.CreateSuperUser(ctx, baseURL, email, username)
	if err != nil && user == nil {
		return err
	}
	fmt.Printf("created super user %s (id %d)\n", user.Username, user.ID)
	if link == nil {
		return err
	}
	fmt.Printf("password setup link (expires %s):\n%s\n", link.ExpiresAt.Format(time.RFC3339), link.URL)
	return nil
}
