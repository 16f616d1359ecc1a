package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/c4designer/internal/bootstrap"
	"github.com/OFFIS-RIT/c4designer/internal/queue"
	"github.com/OFFIS-RIT/c4designer/internal/storage"
	"github.com/OFFIS-RIT/c4designer/internal/util"
	"github.com/OFFIS-RIT/c4designer/pkg/leaselock"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"
	storepgx "github.com/OFFIS-RIT/c4designer/pkg/store/pgx"

	_ "github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

func main() {
	util.LoadEnv()
	bootstrap.InitLogger("worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Could not create S3 client", "err", err)
	}

	pgConn, err := bootstrap.NewDatabase(ctx)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	conn, err := queue.Init()
	if err != nil {
		logger.Fatal("Unable to connect to queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	worker := &queue.ExtractWorker{
		Store:     storepgx.NewProjectDBStorageWithConnection(pgConn),
		Pipeline:  bootstrap.NewPipeline(),
		Objects:   client,
		Locker:    leaselock.New(pgConn),
		LockTTL:   util.GetEnvDuration("WORKER_LOCK_TTL", 5*time.Minute),
		Uploads:   util.GetEnvInt("WORKER_UPLOAD_TRIES", 3),
		UploadGap: time.Second,
	}
	maxRetries := util.GetEnvInt("WORKER_MAX_RETRIES", 3)
	consumers := max(util.GetEnvInt("WORKER_CONSUMERS", 1), 1)

	logger.Info("Listening for messages", "queue", queue.ExtractQueue, "consumers", consumers)

	g, gctx := errgroup.WithContext(ctx)
	for i := range consumers {
		g.Go(func() error {
			return consume(gctx, conn, worker, fmt.Sprintf("%s_consumer_%d", queue.ExtractQueue, i), maxRetries)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Consumer stopped", "err", err)
	}
	logger.Info("Shutdown signal received, exiting...")
}

// consume handles deliveries one at a time on its own channel until ctx is
// done or the broker closes the channel.
func consume(ctx context.Context, conn *amqp.Connection, worker *queue.ExtractWorker, tag string, maxRetries int) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		queue.ExtractQueue,
		tag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping consumer", "consumer", tag)
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel of %s closed", tag)
			}
			handle(ctx, ch, worker, msg, maxRetries)
		}
	}
}

func handle(ctx context.Context, ch *amqp.Channel, worker *queue.ExtractWorker, msg amqp.Delivery, maxRetries int) {
	startTime := time.Now()
	logger.Info("Received message", "queue", queue.ExtractQueue, "retries", queue.Retries(msg))

	if err := worker.ProcessExtractMessage(ctx, msg.Body); err != nil {
		logger.Error("Error processing message", "queue", queue.ExtractQueue, "err", err)
		queue.HandleProcessingError(ch, msg, queue.ExtractQueue, maxRetries)
	} else {
		if err := msg.Ack(false); err != nil {
			logger.Error("Failed to ack message", "err", err)
		}
		logger.Info("Message processed successfully", "queue", queue.ExtractQueue)
	}

	d := time.Since(startTime)
	logger.Info(
		"Processing time",
		"duration", fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60),
	)
}
