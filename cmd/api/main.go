package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/urbanstyle/supportbot/cmd/mainconfig"
	"github.com/urbanstyle/supportbot/internal/api/router"
	"github.com/urbanstyle/supportbot/internal/app/bootstrap"
	"github.com/urbanstyle/supportbot/internal/channels/discord"
	"github.com/urbanstyle/supportbot/internal/channels/twilio"
	"github.com/urbanstyle/supportbot/internal/channels/whatsapp"
	appconfig "github.com/urbanstyle/supportbot/internal/config"
	"github.com/urbanstyle/supportbot/internal/conversation"
	"github.com/urbanstyle/supportbot/internal/delivery"
	"github.com/urbanstyle/supportbot/internal/observability/metrics"
	"github.com/urbanstyle/supportbot/internal/webchat"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting supportbot API server", "env", cfg.Env, "port", cfg.Port)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	metricsHandler, pipelineMetrics := setupPipelineMetrics()

	sessions := bootstrap.BuildSessionStore(cfg, awsCfg, logger)
	generator := bootstrap.BuildGenerator(ctx, cfg, awsCfg, logger)

	service := conversation.NewService(generator, sessions, cfg.DenylistTerms, pipelineMetrics, logger)
	if notifier := bootstrap.BuildEscalationNotifier(cfg, awsCfg, logger); notifier != nil {
		service = service.WithEscalationNotifier(notifier)
	}

	retry := delivery.Policy{
		BaseDelay:   cfg.DeliveryRetryBaseDelay,
		MaxAttempts: cfg.DeliveryRetryMaxAttempts,
	}

	routerCfg := &router.Config{
		Logger:             logger,
		WebChat:            webchat.NewHandler(service, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: []string{"*"},
		ChatRateLimit:      2,
		ChatRateBurst:      10,
	}

	if cfg.TwilioAccountSID != "" {
		sender := twilio.NewSender(twilio.SenderConfig{
			AccountSID:          cfg.TwilioAccountSID,
			AuthToken:           cfg.TwilioAuthToken,
			MessagingServiceSID: cfg.TwilioMessagingServiceSID,
			From:                cfg.TwilioWhatsAppFrom,
			Retry:               retry,
		}, logger)
		routerCfg.TwilioWebhook = twilio.NewWebhookHandler(service, sender, cfg.TwilioAuthToken, cfg.TwilioValidateSignature, pipelineMetrics, logger)
	}

	if cfg.WhatsAppPhoneNumberID != "" {
		secrets, err := appconfig.LoadWhatsAppSecrets(ctx, cfg, secretsmanager.NewFromConfig(awsCfg))
		if err != nil {
			logger.Error("failed to load WhatsApp credentials", "error", err)
			os.Exit(1)
		}
		sender := whatsapp.NewSender(whatsapp.SenderConfig{
			AccessToken:   secrets.AccessToken,
			PhoneNumberID: cfg.WhatsAppPhoneNumberID,
			GraphBase:     cfg.WhatsAppGraphBase,
			GraphVersion:  cfg.WhatsAppGraphVersion,
			Retry:         retry,
		}, nil, logger)
		routerCfg.WhatsAppWebhook = whatsapp.NewWebhookHandler(service, sender, secrets.VerifyToken, pipelineMetrics, logger)
	}

	if cfg.DiscordPublicKey != "" {
		publisher := buildDiscordPublisher(ctx, cfg, awsCfg, service, logger)
		routerCfg.DiscordWebhook = discord.NewWebhookHandler(publisher, cfg.DiscordAppID, cfg.DiscordPublicKey, cfg.DiscordValidateSignature, pipelineMetrics, logger)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
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
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func setupPipelineMetrics() (http.Handler, *metrics.PipelineMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.NewPipelineMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), pipelineMetrics
}

// buildDiscordPublisher wires Phase 2 delivery. With the memory queue the
// follow-up worker runs in-process; with SQS a separate worker binary
// consumes the queue.
func buildDiscordPublisher(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, service *conversation.Service, logger *logging.Logger) *conversation.Publisher {
	if cfg.UseMemoryQueue || cfg.FollowupQueueURL == "" {
		queue := conversation.NewMemoryQueue(64)
		worker := conversation.NewWorker(service, queue, discord.NewFollowupClient(nil, logger), logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
		worker.Start(ctx)
		return conversation.NewPublisher(queue, logger)
	}
	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.FollowupQueueURL)
	return conversation.NewPublisher(queue, logger)
}
