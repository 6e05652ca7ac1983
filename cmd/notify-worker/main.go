package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/inlane-funnel/internal/app/bootstrap"
	appconfig "github.com/wolfman30/inlane-funnel/internal/config"
	"github.com/wolfman30/inlane-funnel/internal/events"
	"github.com/wolfman30/inlane-funnel/internal/notify"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

const consumerName = "notify-worker"

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.LeadEventsQueueURL == "" {
		logger.Error("LEAD_EVENTS_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := bootstrap.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue := events.NewSQSQueue(bootstrap.BuildSQSClient(awsConfig, cfg), cfg.LeadEventsQueueURL)

	sender, provider := bootstrap.BuildEmailSender(ctx, cfg, logger)
	recipients := bootstrap.NotifyRecipients(cfg)
	if len(recipients) == 0 {
		logger.Warn("LEAD_NOTIFY_EMAIL empty; events will be consumed without email")
	}
	logger.Info("notify worker starting", "email_provider", provider, "recipients", len(recipients))

	opts := []events.WorkerOption{events.WithWorkerCount(2)}
	pool, _, err := bootstrap.BuildDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		opts = append(opts, events.WithProcessedStore(consumerName, events.NewProcessedStore(pool)))
	} else {
		logger.Warn("DATABASE_URL not set; duplicate deliveries will not be suppressed")
	}

	worker := events.NewWorker(queue, notify.NewService(sender, recipients, logger), logger, opts...)
	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down notify worker...")
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
		logger.Info("notify worker stopped")
	case <-doneCtx.Done():
		logger.Error("notify worker shutdown timed out", "error", doneCtx.Err())
	}
}
