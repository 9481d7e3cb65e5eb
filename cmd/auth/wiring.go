package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"token_auth/internal/auth"
	"token_auth/internal/config"
	"token_auth/internal/http_server/handlers/login"
	"token_auth/internal/http_server/handlers/logout"
	"token_auth/internal/http_server/handlers/me"
	"token_auth/internal/http_server/handlers/refresh"
	"token_auth/internal/http_server/handlers/register"
	resend "token_auth/internal/http_server/handlers/resend_verification_email"
	"token_auth/internal/http_server/handlers/verify"
	"token_auth/internal/lib/password"
	"token_auth/internal/mailsender"
	"token_auth/internal/metrics"
	"token_auth/internal/middleware/authn"
	"token_auth/internal/middleware/ratelimit"
	"token_auth/internal/notifier"
	"token_auth/internal/rabbitmq"
	"token_auth/internal/storage/memory"
	"token_auth/internal/storage/postgres"
	"token_auth/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

type stores struct {
	accounts auth.AccountStore
	ledger   auth.TokenLedger
	closers  []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// * setupStores: Account Store и Token Ledger могут жить в разных бэкендах
func setupStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	const op = "main.setupStores"

	s := &stores{}

	var (
		mem  *memory.Storage
		repo *postgres.PostgresRepo
	)

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		mem = memory.New()
		s.accounts = mem
		log.Warn("using in-memory account storage, data will not survive a restart")
	case config.DriverPostgres:
		var err error

		repo, err = postgres.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.closers = append(s.closers, repo.Close)

		if err := repo.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		s.accounts = repo
	}

	switch cfg.Ledger.Driver {
	case config.DriverMemory:
		if mem == nil {
			mem = memory.New()
		}
		s.ledger = mem
	case config.DriverPostgres:
		s.ledger = repo
	case config.DriverRedis:
		ledger, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Ledger.Retention)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.closers = append(s.closers, ledger.Close)
		s.ledger = ledger
	}

	log.Info("storage ready",
		slog.String("accounts", cfg.Storage.Driver),
		slog.String("ledger", cfg.Ledger.Driver),
	)

	return s, nil
}

func setupTransport(cfg *config.Config, log *slog.Logger) (notifier.Transport, func(), error) {
	switch cfg.Notifier.Transport {
	case config.TransportRabbitMQ:
		client, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			return nil, nil, err
		}

		return client, client.Close, nil
	case config.TransportSMTP:
		return &mailsender.Mailer{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.Notifier.From,
		}, func() {}, nil
	default:
		return notifier.LogTransport{Log: log}, func() {}, nil
	}
}

// * setupHasher: новые хэши в выбранном алгоритме, проверка понимает оба формата
func setupHasher(cfg *config.Config) password.Hasher {
	bc := password.NewBcrypt(cfg.Password.BcryptCost)
	argon := password.NewArgon2id(password.DefaultArgon2Params())

	if cfg.Password.Algorithm == config.AlgorithmArgon2id {
		return password.NewMulti(argon, bc, argon)
	}

	return password.NewMulti(bc, bc, argon)
}

func setupRouter(log *slog.Logger, authService *auth.Auth, m *metrics.Metrics, metricsPath string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if m != nil {
		r.Use(m.Middleware)
		r.Method(http.MethodGet, metricsPath, m.Handler())
	}

	verifyLimit := ratelimit.Verify()

	r.Route("/api/auth", func(r chi.Router) {
		r.With(ratelimit.Register()).Post("/register", register.New(log, authService))
		r.With(verifyLimit).Post("/verify-email", verify.New(log, authService))
		r.With(verifyLimit).Get("/verify-email", verify.NewLink(log, authService))
		r.With(ratelimit.Login()).Post("/login", login.New(log, authService))
		r.With(ratelimit.Refresh()).Post("/refresh-token", refresh.New(log, authService))
		r.With(ratelimit.Logout()).Post("/logout", logout.New(log, authService))
		r.With(ratelimit.ResendVerification()).Post("/resend-verification", resend.New(log, authService))
		r.With(ratelimit.Me(), authn.New(log, authService)).Get("/me", me.New(log))
	})

	return r
}
