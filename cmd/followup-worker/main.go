package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/urbanstyle/supportbot/cmd/mainconfig"
	"github.com/urbanstyle/supportbot/internal/app/bootstrap"
	"github.com/urbanstyle/supportbot/internal/channels/discord"
	appconfig "github.com/urbanstyle/supportbot/internal/config"
	"github.com/urbanstyle/supportbot/internal/conversation"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.FollowupQueueURL == "" {
		logger.Error("FOLLOWUP_QUEUE_URL is required")
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	generator := bootstrap.BuildGenerator(context.Background(), cfg, awsCfg, logger)
	sessions := bootstrap.BuildSessionStore(cfg, awsCfg, logger)
	service := conversation.NewService(generator, sessions, cfg.DenylistTerms, nil, logger)
	if notifier := bootstrap.BuildEscalationNotifier(cfg, awsCfg, logger); notifier != nil {
		service = service.WithEscalationNotifier(notifier)
	}

	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.FollowupQueueURL)
	poster := discord.NewFollowupClient(nil, logger)
	worker := conversation.NewWorker(
		service,
		queue,
		poster,
		logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down follow-up worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("follow-up worker stopped")
	case <-doneCtx.Done():
		logger.Error("follow-up worker shutdown timed out", "error", doneCtx.Err())
	}
}
