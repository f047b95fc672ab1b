package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"

	"github.com/mediswift/intake-platform/cmd/mainconfig"
	"github.com/mediswift/intake-platform/internal/api/router"
	"github.com/mediswift/intake-platform/internal/audio"
	"github.com/mediswift/intake-platform/internal/channels/telegram"
	"github.com/mediswift/intake-platform/internal/channels/whatsapp"
	appconfig "github.com/mediswift/intake-platform/internal/config"
	"github.com/mediswift/intake-platform/internal/conversation"
	"github.com/mediswift/intake-platform/internal/diarize"
	"github.com/mediswift/intake-platform/internal/llm"
	"github.com/mediswift/intake-platform/internal/observability/metrics"
	"github.com/mediswift/intake-platform/internal/registry"
	"github.com/mediswift/intake-platform/internal/session"
	"github.com/mediswift/intake-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting intake platform",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	promReg := prometheus.NewRegistry()
	intakeMetrics := metrics.NewIntakeMetrics(promReg)

	// Session layer
	store := session.NewStore(logger)
	defer store.Close()

	var archive *session.Archive
	if cfg.RedisAddr != "" {
		redisOpts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		archive = session.NewArchive(redis.NewClient(redisOpts), otel.Tracer("mediswift.internal.session.archive"))
	}

	// Patient registry
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	reg := registry.NewStore(db, logger)
	if reg == nil {
		logger.Error("database is required")
		os.Exit(1)
	}

	// AWS clients
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Dialogue backend
	var dialogue conversation.DialogueClient
	var transcriber audio.Transcriber
	openaiClient := openai.NewClient(cfg.OpenAIAPIKey)
	switch strings.ToLower(cfg.LLMProvider) {
	case "bedrock":
		dialogue = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID, logger)
	case "openai":
		dialogue = llm.NewOpenAIClient(openaiClient, cfg.OpenAIChatModel, cfg.OpenAISummaryModel, logger)
	default: // auto
		if cfg.BedrockModelID != "" {
			dialogue = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID, logger)
		} else {
			dialogue = llm.NewOpenAIClient(openaiClient, cfg.OpenAIChatModel, cfg.OpenAISummaryModel, logger)
		}
	}
	// Whisper transcription always goes through OpenAI.
	transcriber = llm.NewOpenAIClient(openaiClient, cfg.OpenAIChatModel, cfg.OpenAISummaryModel, logger)

	// Channel clients
	waClient := whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppMediaAPIURL, cfg.WhatsAppBearerToken)
	tgClient := telegram.NewClient(cfg.TelegramBotToken)
	senders := map[string]conversation.Sender{
		conversation.ChannelWhatsApp: waClient,
		conversation.ChannelTelegram: tgClient,
	}
	fetchers := map[string]audio.MediaFetcher{
		conversation.ChannelWhatsApp: waClient,
		conversation.ChannelTelegram: tgClient,
	}

	// Audio pipeline; diarization is optional and degrades to plain
	// transcripts when unconfigured.
	var uploader audio.Uploader
	var diarizer audio.Diarizer
	if cfg.DiarizationAPIURL != "" && cfg.MediaUploadBucket != "" {
		uploader = diarize.NewS3Uploader(s3.NewFromConfig(awsCfg), cfg.MediaUploadBucket, "", logger)
		diarizer = diarize.NewClient(cfg.DiarizationAPIURL, cfg.DiarizationAPIToken, logger)
	}
	coordinator := audio.NewCoordinator(
		fetchers,
		transcriber,
		uploader,
		diarizer,
		audio.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath),
		intakeMetrics,
		logger,
		audio.CoordinatorConfig{
			DurationThreshold:  cfg.AudioDurationThreshold,
			DiarizationTimeout: cfg.DiarizationTimeout,
			CallbackURL:        cfg.PublicBaseURL + "/webhooks/diarization",
		},
	)

	lifecycle := conversation.NewLifecycleManager(
		store, archive, dialogue, reg, reg, senders,
		intakeMetrics, logger,
		cfg.SessionDuration, cfg.SessionEndedMarkerTTL,
	)
	defer lifecycle.Close()

	engine := conversation.NewEngine(conversation.EngineDeps{
		Store:      store,
		Archive:    archive,
		Membership: reg,
		Directory:  reg,
		Registry:   reg,
		Dialogue:   dialogue,
		Audio:      coordinator,
		Senders:    senders,
		Lifecycle:  lifecycle,
		Metrics:    intakeMetrics,
		Logger:     logger,
	}, conversation.EngineConfig{
		DefaultLanguage:       cfg.DefaultLanguage,
		ShortMessageThreshold: cfg.ShortMessageThreshold,
		InactivityFlushDelay:  cfg.InactivityFlushDelay,
		MonitoringWindow:      cfg.MonitoringWindow,
	})

	// Inbound queue: SQS in production, in-memory for single-node setups.
	var dispatcher *conversation.Dispatcher
	if cfg.UseMemoryQueue || cfg.InboundQueueURL == "" {
		dispatcher = conversation.NewDispatcher(conversation.NewMemoryQueue(256), engine, logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	} else {
		dispatcher = conversation.NewDispatcher(conversation.NewSQSQueue(awssqs.NewFromConfig(awsCfg), cfg.InboundQueueURL), engine, logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	}

	dispatchCtx, stopWorkers := context.WithCancel(ctx)
	dispatcher.Start(dispatchCtx)

	publish := func(in conversation.Inbound) {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := dispatcher.Publish(pubCtx, in); err != nil {
			logger.Error("failed to publish inbound message",
				"identity", in.Identity,
				"channel", in.Channel,
				"error", err,
			)
		}
	}

	waWebhook := whatsapp.NewWebhookHandler(cfg.WhatsAppVerifyToken, publish, logger)
	tgWebhook := telegram.NewWebhookHandler(publish, logger)

	r := router.New(&router.Config{
		Logger:               logger,
		WhatsAppVerification: waWebhook.HandleVerification,
		WhatsAppWebhook:      waWebhook.HandleInbound,
		TelegramWebhook:      tgWebhook.HandleInbound,
		DiarizationCallback:  router.DiarizationCallback(coordinator, logger),
		MetricsHandler:       promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		WebhookRateLimit:     20,
		WebhookBurst:         40,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	stopWorkers()
	dispatcher.Wait()
	logger.Info("server stopped")
}
