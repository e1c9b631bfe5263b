// Package main wires the authentication core against PostgreSQL, Redis
// and SMTP. It hosts no transport of its own; put an API layer of your
// choice in front of the services constructed here.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kandriws/authcore/pkg/config"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/login"
	"github.com/kandriws/authcore/pkg/loginflow"
	"github.com/kandriws/authcore/pkg/notification"
	"github.com/kandriws/authcore/pkg/otp"
	"github.com/kandriws/authcore/pkg/ratelimit"
	"github.com/kandriws/authcore/pkg/secrets"
	"github.com/kandriws/authcore/pkg/token"
	"github.com/kandriws/authcore/pkg/tokengenerator"
	"github.com/kandriws/authcore/pkg/twofa"
	"github.com/kandriws/authcore/pkg/user"
)

type Config struct {
	Database   config.DatabaseConfig
	Redis      config.RedisConfig
	JWT        config.JWTConfig
	Email      config.EmailConfig
	Otp        config.OtpConfig
	RateLimit  config.RateLimitConfig
	Encryption config.EncryptionConfig

	// RateLimitStore selects the lockout window backend: "redis" or "postgres".
	RateLimitStore string `env:"RATE_LIMIT_STORE" env-default:"redis"`

	SMSFrom      string `env:"SMS_FROM" env-default:"+15005550006"`
	TotpIssuer   string `env:"TOTP_ISSUER" env-default:"authcore"`
	ResetBaseURL string `env:"RESET_PASSWORD_BASE_URL" env-default:"http://localhost:3000/reset-password"`

	// Optional initial account, created on startup when set.
	SeedEmail    string `env:"SEED_ADMIN_EMAIL" env-default:""`
	SeedPassword string `env:"SEED_ADMIN_PASSWORD" env-default:""`
}

// App holds the fully wired service graph.
type App struct {
	Login     *login.Service
	LoginFlow *loginflow.Service
	TwoFactor *twofa.Service
	Otp       *otp.Service
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed reading environment", "err", err)
		os.Exit(-1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.ToDatabaseURL())
	if err != nil {
		slog.Error("Failed creating dbpool", "db", cfg.Database.Database, "host", cfg.Database.Host, "err", err)
		os.Exit(-1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("Failed connecting to redis", "addr", cfg.Redis.Addr(), "err", err)
		os.Exit(-1)
	}

	app, err := buildApp(cfg, pool, redisClient)
	if err != nil {
		slog.Error("Failed wiring services", "err", err)
		os.Exit(-1)
	}

	if cfg.SeedEmail != "" {
		seedInitialUser(ctx, app.Login, cfg.SeedEmail, cfg.SeedPassword)
	}

	slog.Info("Authentication core ready",
		"db", cfg.Database.Database,
		"redis", cfg.Redis.Addr(),
		"issuer", cfg.JWT.Issuer)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("Shutting down")
}

func buildApp(cfg Config, pool *pgxpool.Pool, redisClient *redis.Client) (*App, error) {
	notificationManager, err := notification.NewNotificationManagerWithOptions(
		notification.WithSMTP(notification.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			TLS:      cfg.Email.TLS,
		}),
		notification.WithSMS(cfg.SMSFrom),
		notification.WithDefaultTemplates(),
	)
	if err != nil {
		return nil, err
	}

	hexKeys, err := cfg.Encryption.ParseKeys()
	if err != nil {
		return nil, err
	}
	keyStore, err := secrets.NewKeyStore(hexKeys, cfg.Encryption.CurrentKeyID)
	if err != nil {
		return nil, err
	}
	encryptor := secrets.NewEncryptor(keyStore)

	tokenGen, err := tokengenerator.NewJwtTokenGenerator(cfg.JWT)
	if err != nil {
		return nil, err
	}

	thresholds, err := cfg.RateLimit.ParseLoginThresholds()
	if err != nil {
		return nil, err
	}
	var lockoutStore ratelimit.Store
	switch cfg.RateLimitStore {
	case "postgres":
		lockoutStore = ratelimit.NewPostgresStore(pool, thresholds)
	default:
		lockoutStore = ratelimit.NewRedisStore(redisClient, thresholds)
	}
	loginLimiter := ratelimit.NewLimiter(lockoutStore, "login:")

	otpSendWindow, err := cfg.RateLimit.ParseOtpSendWindow()
	if err != nil {
		return nil, err
	}
	otpSendLimiter := ratelimit.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimit.OtpSendLimit, otpSendWindow)

	userRepo := user.NewPostgresRepository(pool)
	tokenRepo := token.NewPostgresRepository(pool)
	otpRepo := otp.NewPostgresRepository(pool)
	twofaRepo := twofa.NewPostgresRepository(pool)

	otpService, err := otp.NewService(otpRepo, otpSendLimiter, otp.NewNotificationSender(notificationManager), cfg.Otp)
	if err != nil {
		return nil, err
	}

	twofaService := twofa.NewService(twofaRepo, otpService, encryptor, cfg.TotpIssuer)

	loginService := login.NewService(userRepo, tokenRepo, tokenGen, otpService, notificationManager,
		login.WithResetBaseURL(cfg.ResetBaseURL))

	loginflowService := loginflow.NewService(userRepo, tokenRepo, tokenGen, loginLimiter, twofaService, otpService)

	return &App{
		Login:     loginService,
		LoginFlow: loginflowService,
		TwoFactor: twofaService,
		Otp:       otpService,
	}, nil
}

func seedInitialUser(ctx context.Context, loginService *login.Service, email, password string) {
	if password == "" {
		slog.Warn("SEED_ADMIN_EMAIL set without SEED_ADMIN_PASSWORD, skipping seed")
		return
	}
	_, err := loginService.Register(ctx, login.RegisterParams{
		Email:     email,
		FirstName: "Admin",
		LastName:  "User",
		Password:  password,
	})
	switch {
	case err == nil:
		slog.Info("Seeded initial user", "email", email)
	case autherr.IsCode(err, autherr.ErrCodeAlreadyExists):
		slog.Info("Initial user already exists", "email", email)
	default:
		slog.Error("Failed seeding initial user", "email", email, "err", err)
	}
}
