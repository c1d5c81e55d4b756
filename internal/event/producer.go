package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/websync-digital/sunlit-blue-spark/internal/domain"
	pkgkafka "github.com/websync-digital/sunlit-blue-spark/pkg/kafka"
)

// Kafka topics for catalog events.
const (
	TopicProductCreated = "storefront.product.created"
	TopicProductUpdated = "storefront.product.updated"
	TopicProductDeleted = "storefront.product.deleted"
)

// AggregateTypeProduct names the aggregate of every catalog event.
const AggregateTypeProduct = "product"

// SourceStorefront identifies events published by this service.
const SourceStorefront = "storefront"

// ProductData is the payload of product.created and product.updated.
type ProductData struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ShortDescription string `json:"short_description"`
	PriceMinor       int64  `json:"price_minor"`
	ImageURL         string `json:"image_url"`
}

// ProductDeletedData is the payload of product.deleted.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// publisher is the part of *pkgkafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes catalog events after successful admin mutations.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a catalog event producer.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// ProductCreated publishes a product.created event.
func (p *Producer) ProductCreated(ctx context.Context, product domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, productData(product))
}

// ProductUpdated publishes a product.updated event.
func (p *Producer) ProductUpdated(ctx context.Context, product domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, product.ID, productData(product))
}

// ProductDeleted publishes a product.deleted event.
func (p *Producer) ProductDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicProductDeleted, id, ProductDeletedData{ID: id})
}

func (p *Producer) publish(ctx context.Context, topic, id string, data any) error {
	event, err := pkgkafka.NewEvent(ctx, topic, AggregateTypeProduct, id, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published catalog event",
		slog.String("topic", topic),
		slog.String("product_id", id),
	)
	return nil
}

func productData(p domain.Product) ProductData {
	return ProductData{
		ID:               p.ID,
		Name:             p.Name,
		ShortDescription: p.ShortDescription,
		PriceMinor:       p.PriceMinor,
		ImageURL:         p.ImageURL,
	}
}

// Discard drops every event. It is used when no brokers are configured.
type Discard struct{}

func (Discard) ProductCreated(context.Context, domain.Product) error { return nil }
func (Discard) ProductUpdated(context.Context, domain.Product) error { return nil }
func (Discard) ProductDeleted(context.Context, string) error         { return nil }
