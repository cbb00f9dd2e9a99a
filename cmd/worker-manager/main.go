// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/026iFly/foam-sub000/internal/assignment"
	"github.com/026iFly/foam-sub000/internal/availability"
	awsclients "github.com/026iFly/foam-sub000/internal/common/aws"
	"github.com/026iFly/foam-sub000/internal/common/camunda"
	"github.com/026iFly/foam-sub000/internal/common/config"
	"github.com/026iFly/foam-sub000/internal/common/database"
	"github.com/026iFly/foam-sub000/internal/common/discord"
	"github.com/026iFly/foam-sub000/internal/common/logger"
	"github.com/026iFly/foam-sub000/internal/common/observability"

	// Quote Workers (1)
	rq "github.com/026iFly/foam-sub000/internal/workers/quote/recalculate-quote"

	// Booking Workers (3)
	aai "github.com/026iFly/foam-sub000/internal/workers/booking/auto-assign-installers"
	ca "github.com/026iFly/foam-sub000/internal/workers/booking/confirm-assignment"
	ec "github.com/026iFly/foam-sub000/internal/workers/booking/expire-confirmations"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.Timeout),
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// Test the connection
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Notification Clients ---
	var emailSender assignment.EmailSender
	if cfg.Notifications.Email.Enabled {
		ses, err := awsclients.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		emailSender = ses
	}

	var discordSender assignment.DiscordSender
	if cfg.Notifications.Discord.Enabled {
		discordSender = discord.NewWebhookClient(cfg.Notifications.Discord.WebhookURL)
	}

	var topicPublisher assignment.TopicPublisher
	if cfg.Notifications.Admin.Enabled {
		sns, err := awsclients.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		topicPublisher = sns
	}

	notifier := assignment.NewMultiNotifier(emailSender, discordSender, topicPublisher,
		assignment.NotifierConfig{
			FromEmail:      cfg.Notifications.Email.FromEmail,
			ConfirmBaseURL: cfg.Booking.ConfirmBaseURL,
			AdminTopicARN:  cfg.Notifications.Admin.TopicARN,
		}, log)

	zapLog.Info("All notification clients initialized")

	// --- Init Assignment Engine ---
	lookup := availability.NewLookup(pg.DB, log)
	store := assignment.NewPostgresStore(pg.DB)
	engine := assignment.NewEngine(store, lookup, notifier,
		time.Duration(cfg.Booking.ConfirmationTTLHours)*time.Hour, log)

	// --- START: Register ALL 4 Workers ---
	var jobWorkers []*camunda.CamundaWorker
	register := func(w *camunda.CamundaWorker) {
		if w != nil {
			jobWorkers = append(jobWorkers, w)
		}
	}

	// --- 1. Quote Workers (1) ---
	if cfg.Workers[rq.TaskType].Enabled {
		rqCfg := rq.LoadConfig()
		rqCfg.Timeout = config.GetDuration(cfg.Workers[rq.TaskType].Timeout)
		rqCfg.CacheTTL = time.Duration(cfg.Pricing.VariableCacheTTL) * time.Second
		rqCfg.QuoteIndex = cfg.Database.Elasticsearch.QuoteIndex
		rqCfg.DefaultIndoorTemp = cfg.Climate.DefaultIndoorTemp
		rqCfg.DefaultIndoorRH = cfg.Climate.DefaultIndoorRH
		rqCfg.DefaultZone = cfg.Climate.DefaultZone
		rqCfg.ZoneOutdoorTemp = map[string]float64{}
		for name, zone := range cfg.Climate.Zones {
			rqCfg.ZoneOutdoorTemp[name] = zone.OutdoorDesignTemp
		}
		rqCfg.DefaultCrewSize = cfg.Pricing.DefaultCrewSize
		rqCfg.RotPercent = cfg.Pricing.RotPercent

		handler := rq.NewHandler(rqCfg, pg.DB, redis.Client, esClient.Client, log)
		register(startWorker(zeebeClient, rq.TaskType, cfg.Workers[rq.TaskType], handler.Handle, zapLog))
	}

	// --- 2. Booking Workers (3) ---
	if cfg.Workers[aai.TaskType].Enabled {
		handler := aai.NewHandler(
			&aai.Config{
				Timeout: config.GetDuration(cfg.Workers[aai.TaskType].Timeout),
			},
			engine, log,
		)
		register(startWorker(zeebeClient, aai.TaskType, cfg.Workers[aai.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[ca.TaskType].Enabled {
		handler := ca.NewHandler(
			&ca.Config{
				Timeout: config.GetDuration(cfg.Workers[ca.TaskType].Timeout),
			},
			engine, log,
		)
		register(startWorker(zeebeClient, ca.TaskType, cfg.Workers[ca.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[ec.TaskType].Enabled {
		handler := ec.NewHandler(
			&ec.Config{
				Timeout: config.GetDuration(cfg.Workers[ec.TaskType].Timeout),
			},
			engine, log,
		)
		register(startWorker(zeebeClient, ec.TaskType, cfg.Workers[ec.TaskType], handler.Handle, zapLog))
	}
	zapLog.Info("All 4 workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := camundaClient.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "degraded",
					"error":  err.Error(),
					"time":   time.Now().Format(time.RFC3339),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	for _, w := range jobWorkers {
		w.Close()
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc camunda.HandlerFunc, log *zap.Logger) *camunda.CamundaWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return nil
	}

	return camunda.NewWorker(client, taskType, wcfg.MaxJobsActive,
		time.Duration(wcfg.Timeout)*time.Millisecond, handlerFunc, log)
}
