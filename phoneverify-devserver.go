package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	verifyhttp "github.com/CuriousLearner/phone-verify/adapters/http"
	"github.com/CuriousLearner/phone-verify/backends"
	"github.com/CuriousLearner/phone-verify/core"
	memorystore "github.com/CuriousLearner/phone-verify/storage/memory"
	pgstore "github.com/CuriousLearner/phone-verify/storage/postgres"
	redisstore "github.com/CuriousLearner/phone-verify/storage/redis"

	// Delivery backends register themselves on import; drop the ones you
	// don't ship.
	_ "github.com/CuriousLearner/phone-verify/backends/console"
	_ "github.com/CuriousLearner/phone-verify/backends/kavenegar"
	_ "github.com/CuriousLearner/phone-verify/backends/nexmo"
	_ "github.com/CuriousLearner/phone-verify/backends/smsir"
	_ "github.com/CuriousLearner/phone-verify/backends/twilio"
)

type config struct {
	ListenAddr string
	Store      string
	DBURL      string
	RedisURL   string
	Core       core.Config
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}
	if err := runServe(cfg); err != nil {
		fatal(err)
	}
}

func loadConfig() (*config, error) {
	maxAttempts, err := optionalIntEnv("PHONE_VERIFY_MAX_FAILED_ATTEMPTS")
	if err != nil {
		return nil, err
	}
	c := &config{
		ListenAddr: envOr("PHONE_VERIFY_LISTEN_ADDR", ":8080"),
		Store:      envOr("PHONE_VERIFY_STORE", "memory"),
		DBURL:      firstEnv("DB_URL", "DATABASE_URL"),
		RedisURL:   os.Getenv("REDIS_URL"),
		Core: core.Config{
			Backend:           envOr("PHONE_VERIFY_BACKEND", "console"),
			BackendOptions:    parseOptionsEnv("PHONE_VERIFY_BACKEND_OPTIONS"),
			SecretKey:         os.Getenv("PHONE_VERIFY_SECRET_KEY"),
			TokenLength:       envInt("PHONE_VERIFY_TOKEN_LENGTH", 0),
			Message:           os.Getenv("PHONE_VERIFY_MESSAGE"),
			AppName:           os.Getenv("PHONE_VERIFY_APP_NAME"),
			CodeExpiration:    time.Duration(envInt("PHONE_VERIFY_SECURITY_CODE_EXPIRATION_TIME", 3600)) * time.Second,
			VerifyOnlyOnce:    envBool("PHONE_VERIFY_SECURITY_CODE_ONLY_ONCE", false),
			MaxFailedAttempts: maxAttempts,
		},
	}
	if c.Core.SecretKey == "" {
		return nil, fmt.Errorf("PHONE_VERIFY_SECRET_KEY is required")
	}
	return c, nil
}

func runServe(cfg *config) error {
	ctx := context.Background()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}

	backend, err := backends.NewResolver(cfg.Core.Backend, cfg.Core.BackendOptions).Backend()
	if err != nil {
		return err
	}

	svc, err := core.NewService(cfg.Core, store, backend)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	verifyhttp.NewService(svc).Routes(mux)

	log.Printf("[phoneverify] listening on %s store=%s backend=%s", cfg.ListenAddr, cfg.Store, cfg.Core.Backend)
	return http.ListenAndServe(cfg.ListenAddr, mux)
}

func buildStore(ctx context.Context, cfg *config) (core.RecordStore, error) {
	switch cfg.Store {
	case "memory":
		return memorystore.New(), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when PHONE_VERIFY_STORE=redis")
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return redisstore.New(redis.NewClient(opts)), nil
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL (or DATABASE_URL) is required when PHONE_VERIFY_STORE=postgres")
		}
		pg, err := pgxpool.New(ctx, cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := pgstore.New(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown PHONE_VERIFY_STORE %q (supported: memory, redis, postgres)", cfg.Store)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func optionalIntEnv(key string) (*int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return &n, nil
}

// parseOptionsEnv splits "sid=abc,secret=def,from=+15551234" into a map.
func parseOptionsEnv(key string) map[string]string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	opts := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		opts[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return opts
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "phoneverify-devserver:", err)
	os.Exit(1)
}
