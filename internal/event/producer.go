package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/sixty60/internal/domain"
	pkgkafka "github.com/utafrali/sixty60/pkg/kafka"
	"github.com/utafrali/sixty60/pkg/logger"
)

// Topic suffixes; the configured prefix is prepended.
const (
	TopicSessionAuthenticated = "session.authenticated"
	TopicBasketUpdated        = "basket.updated"
)

// SourceCLI identifies events originating from this client.
const SourceCLI = "sixty60-cli"

// SessionAuthenticatedData is the payload for a session.authenticated event.
type SessionAuthenticatedData struct {
	CustomerID string   `json:"customer_id"`
	UserID     string   `json:"user_id"`
	StoreIDs   []string `json:"store_ids"`
}

// BasketUpdatedData is the payload for a basket.updated event.
type BasketUpdatedData struct {
	CustomerID        string   `json:"customer_id"`
	TargetCartID      string   `json:"target_cart_id"`
	ProductID         string   `json:"product_id"`
	Quantity          float64  `json:"quantity"`
	CartIDs           []string `json:"cart_ids"`
	PromotionFailures []string `json:"promotion_failures,omitempty"`
}

// Publisher is the subset of pkg/kafka.Producer this package depends on.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes session and basket events. A Producer without a
// publisher drops every event, which is how publishing is switched off.
type Producer struct {
	kafka    Publisher
	prefix   string
	deviceID string
	logger   *slog.Logger
}

// NewProducer creates a new event producer stamping every event with
// deviceID. kafka may be nil.
func NewProducer(kafka Publisher, topicPrefix, deviceID string, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:    kafka,
		prefix:   topicPrefix,
		deviceID: deviceID,
		logger:   logger,
	}
}

// Topic returns the full topic name for suffix.
func (p *Producer) Topic(suffix string) string {
	if p.prefix == "" {
		return suffix
	}
	return p.prefix + "." + suffix
}

// PublishSessionAuthenticated publishes a session.authenticated event.
func (p *Producer) PublishSessionAuthenticated(ctx context.Context, session domain.Session) error {
	data := SessionAuthenticatedData{
		CustomerID: session.CustomerID,
		UserID:     session.UserID,
		StoreIDs:   session.StoreIDs,
	}
	return p.publish(ctx, TopicSessionAuthenticated, session.CustomerID, session.UserID, data)
}

// PublishBasketUpdated publishes a basket.updated event keyed by the customer,
// or by the target cart when the customer is unknown.
func (p *Producer) PublishBasketUpdated(ctx context.Context, data BasketUpdatedData) error {
	key := data.CustomerID
	if key == "" {
		key = data.TargetCartID
	}
	return p.publish(ctx, TopicBasketUpdated, key, logger.UserIDFromContext(ctx), data)
}

func (p *Producer) publish(ctx context.Context, suffix, key, userID string, data any) error {
	if p == nil || p.kafka == nil {
		return nil
	}
	topic := p.Topic(suffix)

	event, err := pkgkafka.NewEvent(topic, key, pkgkafka.Origin{
		Source:        SourceCLI,
		DeviceID:      p.deviceID,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		UserID:        userID,
	}, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", suffix, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", suffix, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("key", key),
	)
	return nil
}
