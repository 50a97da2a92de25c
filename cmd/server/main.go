package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-ai/internal/ai"
	"github.com/suPer8Hu/chat-ai/internal/chat"
	"github.com/suPer8Hu/chat-ai/internal/config"
	"github.com/suPer8Hu/chat-ai/internal/db"
	"github.com/suPer8Hu/chat-ai/internal/email"
	"github.com/suPer8Hu/chat-ai/internal/httpapi"
	"github.com/suPer8Hu/chat-ai/internal/httpapi/handlers"
	"github.com/suPer8Hu/chat-ai/internal/logging"
	"github.com/suPer8Hu/chat-ai/internal/search"
	"github.com/suPer8Hu/chat-ai/internal/store/rabbitmq"
	"github.com/suPer8Hu/chat-ai/internal/store/redisstore"
	"github.com/suPer8Hu/chat-ai/internal/timetrack"
	"github.com/suPer8Hu/chat-ai/internal/users"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			log.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	provider, err := ai.NewRegistryFromConfig(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		return err
	}

	chatOpts := []chat.Option{
		chat.WithContextWindow(cfg.ChatContextWindowSize),
		chat.WithLogger(log.Named("chat")),
	}
	if sc := search.NewClient(cfg.SearchEndpoint, cfg.SearchKey, cfg.SearchIndex); sc.Configured() {
		chatOpts = append(chatOpts, chat.WithSearcher(sc))
	}
	if tt := timetrack.NewClient(cfg.TimeTrackBaseURL, cfg.TimeTrackAPIKey, cfg.TimeTrackAPISecret); tt.Configured() {
		chatOpts = append(chatOpts, chat.WithTimeTrack(tt))
	} else {
		log.Info("timetrack not configured, /timetrack-query will fail")
	}
	chatSvc := chat.NewService(chat.NewRepo(gdb), provider, chatOpts...)

	var limiter users.LoginLimiter
	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rds.Close()
		if err := rds.Ping(ctx); err != nil {
			log.Warn("redis unavailable, login limiter disabled", zap.Error(err))
		} else {
			limiter = rds.LoginLimiter(cfg.LoginMaxFailures, cfg.LoginFailureWindow)
		}
	}

	var mail email.Sender
	switch cfg.MailDelivery {
	case "queue":
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return fmt.Errorf("rabbitmq publisher: %w", err)
		}
		defer pub.Close()
		mail = pub
	case "", "direct":
		mail = email.NewSMTPSender(smtpConfig(cfg))
	default:
		return fmt.Errorf("unsupported MAIL_DELIVERY=%q", cfg.MailDelivery)
	}

	usersSvc := users.NewService(gdb, mail, limiter, users.Config{
		JWTSecret:           cfg.JWTSecret,
		JWTTTL:              cfg.JWTTTL,
		VerificationBaseURL: cfg.VerificationBaseURL,
		Product:             cfg.SenderName,
	}, log.Named("users"))

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handlers.NewHandler(usersSvc, chatSvc, log.Named("http"))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, cfg.JWTSecret, log.Named("access")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("ai_provider", cfg.AIProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func smtpConfig(cfg config.Config) email.SMTPConfig {
	return email.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		User:       cfg.SMTPUser,
		Pass:       cfg.SMTPPass,
		From:       cfg.SMTPFrom,
		SenderName: cfg.SenderName,
	}
}
