package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/mercadoartesano/orders/internal/infrastructure/observability"
	"github.com/mercadoartesano/orders/pkg/retry"
)

// Publisher writes domain events onto Redis Streams, one stream per topic.
// It implements the saga.EventBus port. XAdd calls run behind a circuit
// breaker so a Redis outage fails fast instead of piling up handlers.
type Publisher struct {
	client   *redis.Client
	breaker  *gobreaker.CircuitBreaker[string]
	metrics  *observability.Metrics
	retryCfg retry.Config
}

// NewPublisher creates a stream publisher with bounded publish retries.
func NewPublisher(client *redis.Client, metrics *observability.Metrics, publishRetries uint) *Publisher {
	if publishRetries == 0 {
		publishRetries = 3
	}

	const breakerName = "redis-publisher"
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			}
		},
	})

	return &Publisher{
		client:  client,
		breaker: breaker,
		metrics: metrics,
		retryCfg: retry.Config{
			MaxAttempts:  publishRetries,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     1 * time.Second,
		},
	}
}

// Emit publishes a JSON-encoded payload to the stream named by topic.
func (p *Publisher) Emit(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	err = retry.Do(ctx, p.retryCfg, func() error {
		_, err := p.breaker.Execute(func() (string, error) {
			return p.client.XAdd(ctx, &redis.XAddArgs{
				Stream: topic,
				Values: map[string]any{
					"payload":   string(body),
					"timestamp": time.Now().Unix(),
				},
			}).Result()
		})
		p.recordBreakerResult(err)
		return err
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) recordBreakerResult(err error) {
	if p.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	p.metrics.CircuitBreakerRequests.WithLabelValues(p.breaker.Name(), result).Inc()
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// StreamConsumer reads one topic stream through a consumer group.
type StreamConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) Stream() string {
	return c.stream
}

func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	// Create stream if it doesn't exist
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XStream, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			// No new messages
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	return streams, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	err := c.client.XAck(ctx, c.stream, c.group, messageID).Err()
	if err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}
