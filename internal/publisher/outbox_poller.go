// Package publisher drains the order outbox table into Kafka.
package publisher

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/brechodofuturo/marketplace/internal/repository"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "marketplace-orders"

type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	batchSize int
	store     OutboxStore
	writer    MessageWriter
	log       *slog.Logger
}

func NewOutboxPoller(store OutboxStore, log *slog.Logger, topic string, brokers ...string) *OutboxPoller {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		batchSize: 100,
		store:     store,
		writer:    w,
		log:       log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	p.log.InfoContext(ctx, "outbox poller started", "tick", p.eventTick)
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			p.log.Info("outbox poller stopped")
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

// processUnpublishedEvents publishes pending events in id order. The first
// failure ends the batch so a later event of the same order is never
// published ahead of an earlier one.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.store.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.ErrorContext(ctx, "failed to publish outbox event",
				"event_id", event.ID, "event_type", event.EventType, "error", err)
			return published
		}

		if err := p.store.MarkEventAsProcessed(ctx, event.ID); err != nil {
			// it will be published again on the next tick; consumers dedupe by event id
			p.log.ErrorContext(ctx, "failed to mark outbox event as processed", "event_id", event.ID, "error", err)
			return published
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps one order's events on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(strconv.FormatInt(event.ID, 10))},
		},
		Time: event.CreatedAt,
	}
	return p.writer.WriteMessages(ctx, msg)
}
