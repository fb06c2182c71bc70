package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hongminglow/medimate-be/internal/account"
	"github.com/hongminglow/medimate-be/internal/auth"
	"github.com/hongminglow/medimate-be/internal/config"
	"github.com/hongminglow/medimate-be/internal/fieldcrypt"
	"github.com/hongminglow/medimate-be/internal/logging"
	"github.com/hongminglow/medimate-be/internal/mail"
	"github.com/hongminglow/medimate-be/internal/ratelimit"
	"github.com/hongminglow/medimate-be/internal/server"
	"github.com/hongminglow/medimate-be/internal/storage"
	"github.com/hongminglow/medimate-be/internal/storage/postgres"
	"github.com/hongminglow/medimate-be/internal/verification"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Production())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	cipher, err := fieldcrypt.New(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	users := storage.NewCredentialStore(db, storage.NewCodec(cipher, cfg.BcryptCost))

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		Issuer:        cfg.JWTIssuer,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		return err
	}

	sender, err := newMailChain(ctx, cfg, logger)
	if err != nil {
		return err
	}
	verifier := verification.New(users, sender, verification.Config{
		TokenTTL:       cfg.VerificationTTL,
		ResendWindow:   cfg.ResendWindow,
		ResendMax:      cfg.ResendMax,
		ResendCooldown: cfg.ResendCooldown,
		FrontendURL:    cfg.FrontendURL,
	}, logger)

	accounts := account.NewService(users, db, tokens, verifier, account.Config{
		GenericLoginErrors: cfg.LoginGenericErrors,
	}, logger)

	limiter, closeRedis, err := newResendLimiter(cfg)
	if err != nil {
		return err
	}
	defer closeRedis()
	if limiter == nil {
		logger.Info("REDIS_URL not set; resend-verification IP limit disabled")
	}

	srv := server.New(cfg, server.Deps{
		Accounts: accounts,
		Tokens:   tokens,
		DB:       db,
		Limiter:  limiter,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("MediMate backend listening", zap.String("addr", cfg.HTTPAddress()), zap.String("env", cfg.Env))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Warn("graceful shutdown error", zap.Error(err))
	}
	return nil
}

// newMailChain orders delivery paths: SMTP, then the S3 outbox, then (outside
// production) the log sender.
func newMailChain(ctx context.Context, cfg config.Config, logger *zap.Logger) (*mail.Chain, error) {
	var senders []mail.Sender
	if cfg.SMTPHost != "" {
		senders = append(senders, mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			Timeout:  cfg.SMTPTimeout,
		}))
	}
	if cfg.OutboxBucket != "" {
		outbox, err := mail.NewOutboxSender(ctx, mail.OutboxConfig{
			Bucket:    cfg.OutboxBucket,
			Region:    cfg.OutboxRegion,
			Endpoint:  cfg.OutboxEndpoint,
			AccessKey: cfg.OutboxAccessKey,
			SecretKey: cfg.OutboxSecretKey,
		})
		if err != nil {
			return nil, err
		}
		senders = append(senders, outbox)
	}
	if !cfg.Production() {
		senders = append(senders, mail.NewLogSender(logger))
	}
	chain := mail.NewChain(logger, cfg.SMTPTimeout, senders...)
	logger.Info("mail delivery configured", zap.String("senders", chain.Name()))
	return chain, nil
}

func newResendLimiter(cfg config.Config) (*ratelimit.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	limiter := ratelimit.New(client, ratelimit.Config{
		Prefix: "resend-verification",
		Limit:  cfg.ResendIPLimit,
		Window: cfg.ResendIPWindow,
	})
	return limiter, func() { _ = client.Close() }, nil
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
