package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/order-collab/internal/model"
)

const metricsQueueName = "metrics.changed"

// Submitter receives metric deltas scoped to one user's room. The broadcast
// throttler satisfies it.
type Submitter interface {
	Submit(userID string, delta model.MetricsDelta)
}

// StartMetricsConsumer connects to RabbitMQ, declares the metrics.changed
// queue (durable), and starts consuming messages. Each message is submitted
// to the throttler, which owns rate limiting toward the dashboards. The
// function runs a reconnect loop with capped backoff and keeps running across
// broker restarts; processing errors are logged and the offending message is
// rejected so the server continues operating.
func StartMetricsConsumer(url string, sink Submitter) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("metrics-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, sink); err != nil {
			log.Printf("metrics-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, sink Submitter) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("metrics-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(metricsQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(metricsQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, sink); err != nil {
			log.Printf("metrics-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, sink Submitter) error {
	var ev MetricsChangedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.UserID == "" {
		return errors.New("missing user_id")
	}
	sink.Submit(ev.UserID, ev.Metrics)
	return nil
}
