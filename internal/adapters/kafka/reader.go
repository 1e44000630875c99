// Package kafka consumes incident records from a Kafka topic and hands them to
// the ingest pipeline.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/okian/covergap/internal/domain/model"
	logging "github.com/okian/covergap/pkg/logger"
	"github.com/okian/covergap/pkg/metrics"
)

const (
	defaultRetryBackoff = 250 * time.Millisecond
	defaultMinBytes     = 1
	defaultMaxBytes     = 10e6
)

// Message outcomes reported to metrics.
const (
	OutcomeAccepted  = "accepted"
	OutcomeMalformed = "malformed"
	OutcomeRejected  = "rejected"
	OutcomeRetried   = "retried"
)

// Handler receives one decoded incident. Returning an error the consumer
// considers retryable leaves the offset uncommitted and redelivers after a
// backoff; any other error is logged and the message is committed.
type Handler func(ctx context.Context, inc model.Incident) error

// messageReader is the subset of *kafkago.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads incidents from a topic within a consumer group.
type Consumer struct {
	reader    messageReader
	handle    Handler
	retryable func(error) bool
	backoff   time.Duration
	log       logging.Logger
}

// NewConsumer creates a group consumer for the given brokers and topic.
func NewConsumer(brokers []string, topic, groupID string, handle Handler, opts ...Option) (*Consumer, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("%w: brokers and topic are required", ErrInvalidConfig)
	}
	if handle == nil {
		return nil, fmt.Errorf("%w: handler is required", ErrInvalidConfig)
	}
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: defaultMinBytes,
		MaxBytes: defaultMaxBytes,
	})
	return newConsumer(r, handle, opts...), nil
}

func newConsumer(r messageReader, handle Handler, opts ...Option) *Consumer {
	c := &Consumer{
		reader:    r,
		handle:    handle,
		retryable: func(error) bool { return false },
		backoff:   defaultRetryBackoff,
		log:       logging.Get().Named("kafka"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run fetches messages until ctx is canceled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info(ctx, "kafka consumer started")
	defer c.log.Info(ctx, "kafka consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.RecordErrorByComponent("kafka", "fetch")
			return fmt.Errorf("%w: %w", ErrFetch, err)
		}
		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// process delivers one message and commits it unless delivery should be retried.
func (c *Consumer) process(ctx context.Context, msg kafkago.Message) error { //nolint:gocritic // hugeParam: kafkago.Message is passed by value throughout kafka-go
	inc, err := decodeIncident(msg)
	if err != nil {
		metrics.RecordKafkaMessage(OutcomeMalformed)
		c.log.Warn(ctx, "dropping malformed incident message",
			logging.Int("partition", msg.Partition),
			logging.Any("offset", msg.Offset),
			logging.Error(err))
		return c.commit(ctx, msg)
	}

	for {
		err = c.handle(ctx, inc)
		if err == nil || !c.retryable(err) {
			break
		}
		metrics.RecordKafkaMessage(OutcomeRetried)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}

	if err != nil {
		metrics.RecordKafkaMessage(OutcomeRejected)
		c.log.Debug(ctx, "incident message rejected", logging.String("incident_id", inc.ID), logging.Error(err))
	} else {
		metrics.RecordKafkaMessage(OutcomeAccepted)
	}
	return c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafkago.Message) error { //nolint:gocritic // hugeParam
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		metrics.RecordErrorByComponent("kafka", "commit")
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}
	return nil
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// decodeIncident maps a message onto an incident. The message key stands in
// for a missing ID and an "incident_type" header for a missing type.
func decodeIncident(msg kafkago.Message) (model.Incident, error) { //nolint:gocritic // hugeParam
	var inc model.Incident
	if err := json.Unmarshal(msg.Value, &inc); err != nil {
		return model.Incident{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if inc.ID == "" && len(msg.Key) > 0 {
		inc.ID = string(msg.Key)
	}
	if inc.Type == "" {
		for _, h := range msg.Headers {
			if h.Key == "incident_type" {
				inc.Type = string(h.Value)
				break
			}
		}
	}
	if !inc.Valid() {
		return model.Incident{}, fmt.Errorf("%w: coordinates (%g, %g) out of range", ErrMalformedMessage, inc.Lat, inc.Lon)
	}
	return inc, nil
}
