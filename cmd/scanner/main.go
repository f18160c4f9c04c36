package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/config"
	"github.com/promptguard/promptguard/pkg/detectors"
	handlers "github.com/promptguard/promptguard/pkg/handlers/http"
	"github.com/promptguard/promptguard/pkg/infra/audit"
	"github.com/promptguard/promptguard/pkg/infra/contentsafety"
	infraLogger "github.com/promptguard/promptguard/pkg/infra/logger"
	"github.com/promptguard/promptguard/pkg/infra/prometheus"
	"github.com/promptguard/promptguard/pkg/infra/ratelimit"
	"github.com/promptguard/promptguard/pkg/infra/recognizer"
	"github.com/promptguard/promptguard/pkg/scanner"
	"github.com/promptguard/promptguard/pkg/server"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	if err := config.Load("./config"); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	logger := infraLogger.NewLogger("scanner", cfg.Server.LogLevel)

	prometheus.Initialize(prometheus.MetricsConfig{
		EnableLatency: cfg.Metrics.EnableLatency,
	})

	httpClient := &http.Client{Timeout: 10 * time.Second}

	registryDI := detectors.RegistryDI{
		Logger:     logger,
		Recognizer: buildRecognizer(httpClient, logger, &cfg.Scanner),
	}
	if cfg.Scanner.ContentFilter.Enabled {
		registryDI.Classifier = contentsafety.NewClient(
			httpClient, logger, cfg.Scanner.ContentSafety.Endpoint, cfg.Scanner.ContentSafety.APIKey,
		)
	}

	var limiter *ratelimit.Limiter
	if cfg.Scanner.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = ratelimit.NewLimiter(redisClient, logger, nil)
	}

	sink, err := buildAuditSink(logger, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize audit sink: %v", err)
	}
	dispatcher := audit.NewDispatcher(sink, logger, cfg.Audit.QueueSize, prometheus.AuditDroppedTotal)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logger.WithError(err).Error("failed to close audit dispatcher")
		}
	}()

	sc, err := scanner.New(&cfg.Scanner, scanner.DI{
		Logger:   logger,
		Registry: registryDI,
		Limiter:  limiter,
		Audit:    dispatcher,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize scanner: %v", err)
	}

	handlerTransport := &handlers.HandlerTransport{
		ScanHandler:         handlers.NewScanHandler(logger, sc),
		ReloadPolicyHandler: handlers.NewReloadPolicyHandler(logger, sc),
	}

	srv := server.NewScannerServer(server.ScannerServerDI{
		HandlerTransport: handlerTransport,
		Config:           cfg,
		Logger:           logger,
	})

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	fmt.Println("shutting down server...")
	if err := srv.Shutdown(); err != nil {
		fmt.Println("error shutting down server:", err)
		os.Exit(1)
	}
	fmt.Println("server gracefully stopped")
}

func buildRecognizer(client *http.Client, logger *logrus.Logger, policy *config.PolicyConfig) recognizer.Recognizer {
	if !policy.PII.Enabled {
		return nil
	}
	if policy.Recognizer.Endpoint != "" {
		return recognizer.NewHTTPRecognizer(client, logger, policy.Recognizer.Endpoint)
	}
	return recognizer.NewRegexRecognizer()
}

func buildAuditSink(logger *logrus.Logger, cfg *config.Config) (audit.Sink, error) {
	switch cfg.Audit.Sink {
	case "postgres":
		return audit.NewPostgresSink(logger, &cfg.Database)
	case "kafka":
		return audit.NewKafkaSink(&cfg.Kafka)
	case "log", "":
		return audit.NewLogSink(logger), nil
	default:
		return nil, fmt.Errorf("unknown audit sink: %s", cfg.Audit.Sink)
	}
}
