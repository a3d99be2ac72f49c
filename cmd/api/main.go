// main.go — ChartSchool platform gateway entrypoint.
//
// Wires the CDN facade, video resolver, chat gateway, and webhook forwarder
// behind one HTTP server. Postgres and Redis are optional: without them the
// gateway falls back to in-memory stores and disabled rate limiting, which
// is the normal local-dev shape.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/chartschool/platform/internal/auth"
	"github.com/chartschool/platform/internal/cdn"
	"github.com/chartschool/platform/internal/chatbot"
	"github.com/chartschool/platform/internal/config"
	"github.com/chartschool/platform/internal/handlers"
	"github.com/chartschool/platform/internal/metrics"
	"github.com/chartschool/platform/internal/ratelimit"
	"github.com/chartschool/platform/internal/store"
	"github.com/chartschool/platform/internal/video"
	"github.com/chartschool/platform/pkg/logging"
	"github.com/chartschool/platform/pkg/security"
	"github.com/chartschool/platform/pkg/telemetry"
)

// version is stamped by the build (-ldflags "-X main.version=...").
var version = "dev"

const sessionSweepInterval = 5 * time.Minute

func main() {
	// .env is for local dev; containers inject real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("gateway").WithError(err).Fatal("configuration invalid")
	}
	log := logging.NewLogger("gateway")

	if err := telemetry.InitSentry(cfg.SentryDSN, "gateway", version); err != nil {
		log.WithError(err).Warn("sentry init failed — continuing without error tracking")
	}
	defer telemetry.Flush()

	// Conversation pointers: Postgres when configured, in-memory otherwise.
	var convs store.ConversationStore = store.NewMemoryConversationStore()
	if cfg.PostgresURL != "" {
		db, err := openPostgres(cfg.PostgresURL)
		if err != nil {
			log.WithError(err).Warn("postgres unavailable — conversation pointers are in-memory only")
		} else {
			defer db.Close()
			convs = store.NewPostgresConversationStore(db)
			log.Info("postgres connected")
		}
	}

	// Guest identities and rate limiting both ride on Redis.
	var guests store.GuestStore = store.NewMemoryGuestStore()
	var limitStore ratelimit.Store
	if cfg.RedisURL != "" {
		rdb, err := openRedis(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable — guest ids are in-memory, rate limiting disabled")
		} else {
			defer rdb.Close()
			guests = store.NewRedisGuestStore(rdb)
			limitStore = ratelimit.NewRedisStore(rdb)
			log.Info("redis connected")
		}
	} else {
		log.Info("REDIS_URL not set — rate limiting disabled (dev mode)")
	}
	limiter := ratelimit.New(limitStore, ratelimit.DefaultConfig())

	cdnSvc := cdn.NewService(cfg, log)
	resolver := video.NewResolver(cdnSvc, cfg, log)
	chat := chatbot.NewClient(cfg.ChatBackendURL, log)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	h := handlers.New(cfg, log, cdnSvc, resolver, chat, convs, guests, verifier, limiter)
	mux := http.NewServeMux()
	h.Routes(mux)

	// Middleware chain, innermost first.
	var handler http.Handler = mux
	handler = metrics.Middleware("gateway", handler)
	handler = security.RequestID(handler)
	handler = security.SecurityHeaders(handler)
	handler = telemetry.PanicRecoveryMiddleware("gateway")(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Range", "X-Guest-Id"},
		ExposedHeaders:   []string{"X-Guest-Id", "Content-Range", "Accept-Ranges"},
		AllowCredentials: true,
	}).Handler(handler)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays 0: proxied video segments can stream for a while.
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepSessions(ctx, h.Sessions(), log)

	go func() {
		log.WithField("port", cfg.Port).WithField("env", string(cfg.Environment)).Info("gateway starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown did not complete cleanly")
	}
}

// openPostgres connects and ensures the pointer table exists.
func openPostgres(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chat_conversation_pointers (
		    user_id         TEXT PRIMARY KEY,
		    conversation_id TEXT NOT NULL,
		    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openRedis accepts both redis:// URLs and bare host:port addresses.
func openRedis(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		opts = &goredis.Options{Addr: url}
	}
	rdb := goredis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// sweepSessions evicts idle chat sessions until the server stops.
func sweepSessions(ctx context.Context, reg *handlers.SessionRegistry, log *logrus.Entry) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reg.Sweep(); n > 0 {
				log.WithField("evicted", n).Debug("chat sessions swept")
			}
		}
	}
}
