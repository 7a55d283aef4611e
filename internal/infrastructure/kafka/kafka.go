package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"user-registry/internal/infrastructure/config"
	"user-registry/internal/infrastructure/telemetry"
)

// records still buffered after this long fail instead of waiting for the broker
const recordDeliveryTimeout = 5 * time.Second

// Producer wraps kgo.Client for producing messages
type Producer struct {
	*kgo.Client
	tracer trace.Tracer
}

// Consumer wraps kgo.Client for consuming messages
type Consumer struct {
	*kgo.Client
	tracer trace.Tracer
}

func hooks() kgo.Opt {
	k := kotel.NewKotel(
		kotel.WithTracer(kotel.NewTracer()),
		kotel.WithMeter(kotel.NewMeter()),
	)
	return kgo.WithHooks(k.Hooks()...)
}

// NewProducer creates a Kafka producer that writes to cfg.Topic by default
func NewProducer(cfg config.KafkaConfig, tel *telemetry.Telemetry) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		hooks(),
		kgo.ProducerBatchMaxBytes(1048576), // 1MB
		kgo.ProducerBatchCompression(kgo.GzipCompression()),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.RequestTimeoutOverhead(10 * time.Second),
		kgo.RecordDeliveryTimeout(recordDeliveryTimeout),
		kgo.ConnIdleTimeout(time.Duration(cfg.ConnIdleTime) * time.Second),
		kgo.DialTimeout(time.Duration(cfg.DialTimeout) * time.Second),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	telemetry.Log(context.Background(), telemetry.LevelInfo, "Successfully created Kafka producer", nil,
		attribute.StringSlice("kafka.brokers", cfg.Brokers),
		attribute.String("kafka.topic", cfg.Topic),
	)

	return &Producer{
		Client: client,
		tracer: tel.Tracer,
	}, nil
}

// NewConsumer creates a Kafka consumer in cfg.GroupID reading cfg.Topic
func NewConsumer(cfg config.KafkaConfig, tel *telemetry.Telemetry) (*Consumer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		hooks(),
		kgo.FetchMaxBytes(52428800), // 50MB
		kgo.FetchMinBytes(1),
		kgo.FetchMaxWait(500 * time.Millisecond),
		kgo.SessionTimeout(30 * time.Second),
		kgo.HeartbeatInterval(3 * time.Second),
		kgo.RebalanceTimeout(30 * time.Second),
		kgo.ConnIdleTimeout(time.Duration(cfg.ConnIdleTime) * time.Second),
		kgo.DialTimeout(time.Duration(cfg.DialTimeout) * time.Second),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	telemetry.Log(context.Background(), telemetry.LevelInfo, "Successfully created Kafka consumer", nil,
		attribute.StringSlice("kafka.brokers", cfg.Brokers),
		attribute.String("kafka.topic", cfg.Topic),
		attribute.String("kafka.consumer_group", cfg.GroupID),
	)

	return &Consumer{
		Client: client,
		tracer: tel.Tracer,
	}, nil
}

// ProduceWithTracing produces a message and waits for the broker ack
func (p *Producer) ProduceWithTracing(ctx context.Context, topic string, key, value []byte) error {
	ctx, span := p.tracer.Start(ctx, "kafka.produce")
	defer span.End()

	span.SetAttributes(
		attribute.String("kafka.topic", topic),
		attribute.String("kafka.operation", "produce"),
		attribute.Int("kafka.message_size", len(value)),
	)

	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}

	if err := p.ProduceSync(ctx, record).FirstErr(); err != nil {
		span.SetAttributes(attribute.Bool("kafka.error", true))
		return fmt.Errorf("failed to produce message: %w", err)
	}

	span.SetAttributes(attribute.Bool("kafka.success", true))
	telemetry.Log(ctx, telemetry.LevelInfo, "Message produced successfully", nil,
		attribute.String("kafka.topic", topic),
		attribute.Int("kafka.message_size", len(value)),
	)

	return nil
}

// ConsumeWithTracing polls until ctx is done or the client is closed,
// handing every record to handler inside its own span. Handler errors are
// logged and the record is skipped.
func (c *Consumer) ConsumeWithTracing(ctx context.Context, handler func(ctx context.Context, record *kgo.Record) error) error {
	for {
		fetches := c.PollFetches(ctx)

		if fetches.IsClientClosed() {
			telemetry.Log(ctx, telemetry.LevelInfo, "Kafka client closed, consumer stopping", nil)
			return nil
		}
		if ctx.Err() != nil {
			telemetry.Log(ctx, telemetry.LevelInfo, "Kafka consumer shutting down", nil)
			return ctx.Err()
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			telemetry.Log(ctx, telemetry.LevelWarn, "Kafka fetch error", err,
				attribute.String("kafka.topic", topic),
				attribute.Int("kafka.partition", int(partition)),
			)
		})

		var processedCount int
		fetches.EachRecord(func(record *kgo.Record) {
			recordCtx, recordSpan := c.tracer.Start(ctx, "kafka.process_record")
			recordSpan.SetAttributes(
				attribute.String("kafka.topic", record.Topic),
				attribute.Int64("kafka.offset", record.Offset),
				attribute.Int("kafka.partition", int(record.Partition)),
			)

			if err := handler(recordCtx, record); err != nil {
				recordSpan.SetAttributes(attribute.Bool("kafka.processing_error", true))
				telemetry.Log(recordCtx, telemetry.LevelError, "Failed to process Kafka message", err,
					attribute.Int64("kafka.offset", record.Offset),
				)
			} else {
				processedCount++
			}

			recordSpan.End()
		})

		if processedCount > 0 {
			telemetry.Log(ctx, telemetry.LevelInfo, "Processed Kafka messages", nil,
				attribute.Int("kafka.processed_count", processedCount),
			)
		}
	}
}

// HealthCheck pings the seed brokers
func (p *Producer) HealthCheck(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "kafka.health_check")
	defer span.End()

	if err := p.Ping(ctx); err != nil {
		span.SetAttributes(attribute.Bool("kafka.healthy", false))
		return fmt.Errorf("kafka health check failed: %w", err)
	}

	span.SetAttributes(attribute.Bool("kafka.healthy", true))
	return nil
}

// Close flushes pending records and closes the Kafka client
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.Flush(ctx)
	p.Client.Close()
}

// Close closes the Kafka client
func (c *Consumer) Close() {
	c.Client.Close()
}
