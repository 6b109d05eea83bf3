package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rollcall/internal/config"
	"rollcall/internal/queue"
	"rollcall/internal/sheets"
	"rollcall/internal/store"
)

const maxAttempts = 5

// Worker drains the audit retry queue and re-attempts log sheet appends.
// Delivery stays best-effort: a row that keeps failing is dropped after
// maxAttempts with a diagnostic, never blocking the queue.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	var tokens sheets.TokenSource
	if cfg.ServiceAccountMail != "" && cfg.ServiceAccountKey != "" {
		sa, err := sheets.NewServiceAccountTokens(cfg.TokenURL, cfg.ServiceAccountMail, cfg.ServiceAccountKey)
		if err != nil {
			logger.Fatal("service account init failed", zap.Error(err))
		}
		tokens = sa
	}
	sheetsClient := sheets.New(cfg.SheetsBaseURL, tokens)

	redisClient := store.NewRedis(cfg.RedisAddr)
	if !redisClient.Healthy(ctx) {
		logger.Fatal("redis not reachable; the retry worker needs the shared queue")
	}
	q := queue.NewRedisQueue(redisClient.Client, "")

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}

	logger.Info("audit retry worker started")
	for msg := range messages {
		if msg.LogSheetID == "" || len(msg.Row) == 0 {
			continue
		}

		err := sheetsClient.Append(ctx, msg.LogSheetID, "A1:G1", [][]string{msg.Row})
		if err == nil {
			logger.Info("audit row delivered",
				zap.String("log_sheet", msg.LogSheetID),
				zap.Int("attempts", msg.Attempts))
			continue
		}

		logger.Warn("audit retry failed",
			zap.String("log_sheet", msg.LogSheetID),
			zap.Int("attempts", msg.Attempts),
			zap.Error(err))

		if msg.Attempts >= maxAttempts {
			logger.Error("audit row dropped after max attempts",
				zap.String("log_sheet", msg.LogSheetID),
				zap.Strings("row", msg.Row))
			continue
		}

		msg.Attempts++
		if err := q.Publish(ctx, msg); err != nil {
			logger.Error("audit requeue failed", zap.Error(err))
		}

		// Back off between retries; quota errors clear in seconds.
		select {
		case <-time.After(cfg.AuditRetryInterval):
		case <-ctx.Done():
		}
	}

	logger.Info("worker stopped")
}
