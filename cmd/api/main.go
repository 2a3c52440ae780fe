// Package main is the entry point for the school management API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/openschoolhq/schooldesk/internal/api"
	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/auth"
	"github.com/openschoolhq/schooldesk/internal/class"
	"github.com/openschoolhq/schooldesk/internal/config"
	"github.com/openschoolhq/schooldesk/internal/db"
	"github.com/openschoolhq/schooldesk/internal/health"
	"github.com/openschoolhq/schooldesk/internal/middleware"
	"github.com/openschoolhq/schooldesk/internal/score"
	"github.com/openschoolhq/schooldesk/internal/student"
	"github.com/openschoolhq/schooldesk/internal/subject"
	"github.com/openschoolhq/schooldesk/internal/teacher"
	"github.com/openschoolhq/schooldesk/internal/tracing"
	"github.com/openschoolhq/schooldesk/internal/user"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("SchoolDesk API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := db.Migrate(conn, cfg.MigrationsPath); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	tracerProvider, err := tracing.NewProvider(tracingConfig(cfg))
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracer provider", "error", err)
		}
	}()

	metrics := middleware.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Change record store and the two recording policies: strict for
	// teacher provisioning, best-effort everywhere else.
	auditRepo, err := audit.NewPostgresRepository(conn, logger)
	if err != nil {
		logger.Error("failed to create change record store", "error", err)
		os.Exit(1)
	}
	recorder, err := audit.NewStoreRecorder(auditRepo)
	if err != nil {
		logger.Error("failed to create change recorder", "error", err)
		os.Exit(1)
	}
	best := audit.NewBestEffortRecorder(recorder, logger)

	// Entity stores are in-memory; only the change history persists.
	userRepo := user.NewInMemoryRepository()
	users := user.NewService(userRepo, best, cfg.BcryptCost)
	subjects := subject.NewService(subject.NewInMemoryRepository(), best)
	teachers := teacher.NewService(teacher.NewInMemoryRepository(), users, subjects, recorder, logger)
	classes := class.NewService(class.NewInMemoryRepository(), teachers, best)
	students := student.NewService(student.NewInMemoryRepository(), classes, best)
	scores := score.NewService(score.NewInMemoryRepository(), students, subjects, best)

	history, err := audit.NewHistoryService(auditRepo, user.NewDirectory(userRepo), logger)
	if err != nil {
		logger.Error("failed to create history service", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTSecretPrevious)
	logins := auth.NewInMemoryLoginHistory()
	respond := &api.Responder{Debug: cfg.Debug && !cfg.IsProduction()}

	// Rate limit state lives in Redis when configured so limits hold
	// across replicas.
	var limitStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	if redisClient != nil {
		limitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(metrics)
	}
	globalLimit := middleware.RateLimitConfig{RequestsPerWindow: cfg.GlobalRateLimit, WindowDuration: time.Minute}
	loginLimit := middleware.RateLimitConfig{RequestsPerWindow: cfg.LoginRateLimit, WindowDuration: time.Minute}

	authenticated := middleware.Authenticate(tokens)

	mux := http.NewServeMux()

	checkers := map[string]health.Checker{"database": health.NewDBChecker(conn)}
	if redisClient != nil {
		checkers["redis"] = health.NewRedisChecker(redisClient)
	}
	api.NewHealthHandlers(checkers).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authHandlers := api.NewAuthHandlers(users, tokens, logins, respond, logger)
	loginMux := http.NewServeMux()
	authHandlers.Register(loginMux)
	mux.Handle("/auth/login", middleware.RateLimiter(limitStore, loginLimit, middleware.IPKeyFunc())(loginMux))
	mux.Handle("/auth/refresh", loginMux)

	// Everything below requires a valid access token.
	protected := http.NewServeMux()
	api.NewSubjectHandlers(subjects, history, respond).Register(protected)
	api.NewClassHandlers(classes, history, teachers, respond).Register(protected)
	api.NewTeacherHandlers(teachers, history, respond).Register(protected)
	api.NewStudentHandlers(students, classes, respond).Register(protected)
	api.NewScoreHandlers(scores, students, classes, respond).Register(protected)
	api.NewHistoryHandlers(history, auditRepo, map[string]audit.StateResolver{
		class.EntityName:   class.HistoryResolver(teachers),
		student.EntityName: student.HistoryResolver(classes),
	}, respond).Register(protected)
	mux.Handle("/", authenticated(protected))

	// Account management and login history stay admin-only.
	adminMux := http.NewServeMux()
	api.NewUserHandlers(users, respond).Register(adminMux)
	authHandlers.RegisterLoginHistory(adminMux)
	admin := authenticated(middleware.RequireRole(user.RoleAdmin)(adminMux))
	mux.Handle("/users", admin)
	mux.Handle("/users/", admin)
	mux.Handle("/auth/login-history", admin)

	var handler http.Handler = mux
	if cfg.Debug && !cfg.IsProduction() {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}

	handler = middleware.RequestID(
		middleware.Tracing("schooldesk-api")(
			middleware.Logging(logger)(
				middleware.HTTPMetrics(metrics)(
					middleware.CORS(middleware.CORSConfig{
						AllowedOrigins:   cfg.CORSAllowedOrigins,
						AllowCredentials: true,
						MaxAge:           300,
					})(
						middleware.RateLimiter(limitStore, globalLimit, middleware.IPKeyFunc())(handler),
					),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// tracingConfig derives the tracer setup from the environment. Tracing stays
// off unless OTEL_EXPORTER_OTLP_ENDPOINT is set.
func tracingConfig(cfg *config.Config) tracing.Config {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	samplingRate := 1.0
	if raw := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			samplingRate = parsed
		}
	}
	return tracing.Config{
		ServiceName:  "schooldesk-api",
		Enabled:      endpoint != "",
		Environment:  cfg.Env,
		ExporterType: "otlp-http",
		OTLPEndpoint: endpoint,
		SamplingRate: samplingRate,
		InsecureMode: !cfg.IsProduction(),
	}
}
