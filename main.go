package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"ttracker/api"
	"ttracker/assignment"
	"ttracker/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	employeesTableName := os.Getenv("EMPLOYEES_TABLE")
	tasksTableName := os.Getenv("TASKS_TABLE")
	if connStr == "" || employeesTableName == "" || tasksTableName == "" {
		log.Fatal("missing storage config")
	}
	taskPageSize := positiveIntEnv("TASKS_PAGE_SIZE", 5)
	slack := assignment.DefaultContinuitySlack
	if v := os.Getenv("ASSIGNMENT_CONTINUITY_SLACK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Fatalf("invalid ASSIGNMENT_CONTINUITY_SLACK: %q", v)
		}
		slack = n
	}

	base, err := storage.New(connStr, employeesTableName, tasksTableName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(redisOptions(redisConn))
	defer rc.Close()

	logger := log.New()
	logger.SetLevel(log.GetLevel())

	store := storage.NewCache(base, rc, durationEnv("CACHE_TTL", 30*time.Second, true))
	planner := assignment.NewService(store, assignment.NewEngine(slack), logger)
	deduper := api.NewRedisDeduper(rc, durationEnv("DEDUPER_TTL", 24*time.Hour, false))

	var publisher api.EventPublisher
	if queueName := os.Getenv("DOMAIN_EVENTS_QUEUE"); queueName != "" {
		queue, err := storage.NewEventQueue(connStr, queueName)
		if err != nil {
			log.Fatalf("event queue: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := queue.Ping(ctx); err != nil {
			logger.WithError(err).Warn("event queue not reachable at startup")
		}
		cancel()
		publisher = queue
	}
	events := api.NewEventSender(publisher, logger, api.EventSenderConfigFromEnv())
	defer events.Close()

	auth := newAuth()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))

	api.Register(e, store, planner, auth, api.Options{
		PageSize: taskPageSize,
		Deduper:  deduper,
		Events:   events,
	}, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	if err := e.Start(listenAddr); err != nil {
		logger.WithError(err).Error("server stopped")
	}
}

func newAuth() *api.Auth {
	secret, local, err := api.LocalSecretFromEnv()
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	if local {
		log.Warn("using local HS256 auth")
		return api.NewLocalAuth(secret)
	}

	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	domain := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || domain == "" {
		log.Fatal("missing Auth0 config")
	}
	cacheTTL, err := api.JWKSCacheTTLFromEnv()
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, jwtAudience, "https://"+domain+"/", cacheTTL)
}

// redisOptions accepts either a redis:// URL or the Azure Cache style
// "host:port,password=...,ssl=True" connection string.
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}

func positiveIntEnv(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: must be a positive integer", name)
	}
	return n
}

// durationEnv parses name as a duration. Zero is accepted only when allowZero
// is set.
func durationEnv(name string, def time.Duration, allowZero bool) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return d
}
