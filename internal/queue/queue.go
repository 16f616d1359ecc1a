// Package queue carries extraction jobs from the API to the worker over
// RabbitMQ.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/c4designer/internal/util"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"
)

const (
	ExtractQueue = "extract_queue"

	retryDelayMs = int32(10000)
)

// Channel is the part of an AMQP channel used for declaring and publishing.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// ExtractJobMsg asks the worker to extract the diagram of a project.
type ExtractJobMsg struct {
	ProjectID     int64  `json:"project_id"`
	CorrelationID string `json:"correlation_id"`
}

func DLQName(queue string) string {
	return queue + "_dlq"
}

func RetryName(queue string) string {
	return queue + "_retry"
}

func Init() (*amqp091.Connection, error) {
	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnvString("RABBITMQ_USER", "guest"),
		util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
		util.GetEnvString("RABBITMQ_HOST", "localhost"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares the extraction queue with its dead letter queue and
// a retry queue that re-delivers to the main queue after a delay.
func SetupQueues(ch Channel) error {
	declare := func(name string, args amqp091.Table) error {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			args,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
		return nil
	}

	if err := declare(ExtractQueue, nil); err != nil {
		return err
	}
	if err := declare(DLQName(ExtractQueue), nil); err != nil {
		return err
	}
	return declare(RetryName(ExtractQueue), amqp091.Table{
		"x-message-ttl":             retryDelayMs,
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": ExtractQueue,
	})
}

func publish(ch Channel, queueName string, body []byte, headers amqp091.Table) error {
	return ch.Publish(
		"",
		queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// PublishExtract enqueues an extraction job. A correlation id is generated
// when msg has none; the published message is returned.
func PublishExtract(ch Channel, msg ExtractJobMsg) (ExtractJobMsg, error) {
	if msg.CorrelationID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return msg, err
		}
		msg.CorrelationID = id
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return msg, err
	}
	if err := publish(ch, ExtractQueue, body, nil); err != nil {
		return msg, fmt.Errorf("publish extract job: %w", err)
	}

	logger.Debug("[Queue] Published extract job", "project_id", msg.ProjectID, "correlation_id", msg.CorrelationID)
	return msg, nil
}

// HandleProcessingError moves a failed delivery to the retry queue, or to
// the dead letter queue once it has been retried maxRetries times. The
// delivery is acked after the copy is published and requeued if publishing
// fails.
func HandleProcessingError(ch Channel, msg amqp091.Delivery, queueName string, maxRetries int) {
	retries := Retries(msg)

	target := RetryName(queueName)
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if retries >= maxRetries {
		target = DLQName(queueName)
	} else {
		headers["x-retries"] = int32(retries + 1)
	}

	if err := publish(ch, target, msg.Body, headers); err != nil {
		logger.Error("[Queue] Failed to publish failed message", "queue", target, "err", err)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("[Queue] Failed to nack message", "err", err)
		}
		return
	}
	logger.Info("[Queue] Moved failed message", "queue", target, "retries", retries)
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}

// Retries reads the retry counter of a delivery.
func Retries(msg amqp091.Delivery) int {
	switch v := msg.Headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
