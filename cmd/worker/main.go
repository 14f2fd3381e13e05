package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/openpayflow/orchestrator/internal/config"
	"github.com/openpayflow/orchestrator/internal/deadletter"
	"github.com/openpayflow/orchestrator/internal/events"
	"github.com/openpayflow/orchestrator/internal/housekeeper"
	"github.com/openpayflow/orchestrator/internal/outbox"
	"github.com/openpayflow/orchestrator/internal/queue"
	"github.com/openpayflow/orchestrator/internal/scheduler"
	"github.com/openpayflow/orchestrator/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg := config.Load()

	db, err := services.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	redisCache, err := services.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	workQueue := queue.NewWorkQueue(redisCache.Client())
	hub := events.NewHub()

	deadLetter := buildDeadLetterPublisher(cfg, redisCache)

	drainer := outbox.NewDrainer(db, workQueue, hub)
	sched := scheduler.NewScheduler(db, workQueue, deadLetter)
	keeper := housekeeper.New(db)

	log.Println("Worker started: outbox drainer, webhook scheduler, housekeeper")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{}, 3)
	go func() { drainer.Run(ctx); done <- struct{}{} }()
	go func() { sched.Run(ctx); done <- struct{}{} }()
	go func() { keeper.Run(ctx); done <- struct{}{} }()

	<-ctx.Done()
	log.Println("Shutting down worker...")
	<-done
	<-done
	<-done
}

// buildDeadLetterPublisher wires the Redis dead:letter list as the
// record of truth, fanning out to SQS when enabled — a mirror, never a
// replacement, per SPEC_FULL.md §6.5.
func buildDeadLetterPublisher(cfg *config.Config, redisCache *services.RedisCache) deadletter.Publisher {
	primary := deadletter.NewRedisPublisher(redisCache.Client())
	if !cfg.EnableSQSDeadLetter {
		return primary
	}
	sqsPublisher, err := deadletter.NewSQSPublisher(context.Background(), cfg.SQSDeadLetterQueueURL, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey)
	if err != nil {
		log.Printf("worker: SQS dead-letter mirror disabled, failed to initialize: %v", err)
		return primary
	}
	return deadletter.NewFanOut(primary, sqsPublisher)
}
