package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"taskboard/api"
	"taskboard/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	storeTimeout := envDuration("STORE_TIMEOUT", 10*time.Second)

	var (
		backend storage.Backend
		mongo   *storage.Mongo
	)
	switch kind := envOr("STORE_BACKEND", "mongo"); kind {
	case "mongo":
		uri := os.Getenv("DB_URI")
		if uri == "" {
			log.Fatal("missing DB_URI")
		}
		mongo = storage.NewMongo(uri, envOr("DB_NAME", "taskboard"), envOr("TASKS_COLLECTION", "tasks"), storeTimeout)
		backend = mongo
	case "tables":
		connStr := os.Getenv("STORAGE_CONNECTION_STRING")
		if connStr == "" {
			log.Fatal("missing STORAGE_CONNECTION_STRING")
		}
		tables, err := storage.NewTables(connStr, envOr("TASKS_TABLE", "tasks"))
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		backend = tables
	case "memory":
		log.Warn("using in-memory task store; data is lost on exit")
		backend = storage.NewMemory()
	default:
		log.Fatalf("unknown STORE_BACKEND %q", kind)
	}

	var rc *redis.Client
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc = redis.NewClient(redisOptions(redisConn))
		backend = storage.NewCache(backend, rc, envDuration("TASKS_CACHE_TTL", 5*time.Minute))
	}

	var publisher api.Publisher
	if queueName := os.Getenv("TASK_EVENTS_QUEUE"); queueName != "" {
		connStr := os.Getenv("STORAGE_CONNECTION_STRING")
		if connStr == "" {
			log.Fatal("TASK_EVENTS_QUEUE requires STORAGE_CONNECTION_STRING")
		}
		q, err := storage.NewEventQueue(connStr, queueName)
		if err != nil {
			log.Fatalf("event queue: %v", err)
		}
		publisher = q
	}
	events := api.NewEventDispatcher(publisher, api.DispatcherConfig{
		Workers:        envInt("EVENT_WORKERS", 4),
		Buffer:         envInt("EVENT_BUFFER", 256),
		Timeout:        envDuration("EVENT_TIMEOUT", 10*time.Second),
		HandoffTimeout: envDuration("EVENT_HANDOFF_TIMEOUT", 25*time.Millisecond),
	}, logger)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderContentEncoding},
	}))
	e.Use(api.RequestIDMiddleware())
	e.Use(api.GzipRequestMiddleware())
	if on, err := strconv.ParseBool(os.Getenv("PPROF")); err == nil && on {
		pprof.Register(e)
	}

	api.Register(e, backend, events, logger)

	listenAddr := ":" + envOr("PORT", "3000")
	go func() {
		if err := e.Start(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	events.Close()
	if mongo != nil {
		if err := mongo.Close(ctx); err != nil {
			log.WithError(err).Error("mongo disconnect")
		}
	}
	if rc != nil {
		_ = rc.Close()
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.WithError(err).Error("tracer shutdown")
	}
}

// redisOptions accepts a redis:// URL or the host:port,password=...,ssl=True form.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: must be a positive integer", key)
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %v", key, v)
	}
	return d
}
