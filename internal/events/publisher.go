package events

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"catalog-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Actor identifies who triggered a catalog change
type Actor struct {
	ID        string
	Name      string
	Email     string
	ClientIP  string
	UserAgent string
}

// Publisher wraps the go-shared events publisher for catalog events
type Publisher struct {
	publisher *events.Publisher
	storeID   string
	logger    *logrus.Entry
}

// NewPublisher creates a new catalog events publisher. storeID is sent as
// the tenant of every event.
func NewPublisher(storeID string, logger *logrus.Logger) (*Publisher, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "catalog-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	// Ensure the products stream exists
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamProducts, []string{"product.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure products stream (may already exist)")
	}

	return &Publisher{
		publisher: publisher,
		storeID:   storeID,
		logger:    logger.WithField("component", "catalog-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.publisher != nil {
		p.publisher.Close()
	}
}

// PublishProductCreated publishes a product.created event for a product
// created through the API
func (p *Publisher) PublishProductCreated(ctx context.Context, product *models.Product, actor Actor) error {
	event := p.buildProductEvent(events.ProductCreated, product.ID, product.Name, product.SKU, string(product.Status), product.Category)
	p.applyActor(event, actor)
	event.ChangeType = "created"
	return p.publish(ctx, event)
}

// PublishProductImported publishes a product.created event for a row stored
// by a bulk import
func (p *Publisher) PublishProductImported(ctx context.Context, product models.ImportSuccess, jobID string) error {
	event := p.buildProductEvent(events.ProductCreated, product.ID, product.Name, product.SKU, product.Status, product.Category)
	event.ChangeType = "imported"
	event.NewValue = map[string]interface{}{
		"importJobId": jobID,
		"rowNumber":   product.RowNumber,
	}
	return p.publish(ctx, event)
}

// PublishProductDeleted publishes a product.deleted event
func (p *Publisher) PublishProductDeleted(ctx context.Context, product *models.Product, actor Actor) error {
	event := p.buildProductEvent(events.ProductDeleted, product.ID, product.Name, product.SKU, string(product.Status), product.Category)
	p.applyActor(event, actor)
	event.ChangeType = "deleted"
	return p.publish(ctx, event)
}

func (p *Publisher) buildProductEvent(eventType string, id uint, name string, sku *string, status, category string) *events.ProductEvent {
	event := events.NewProductEvent(eventType, p.storeID)
	event.SourceID = uuid.New().String()
	event.ProductID = strconv.FormatUint(uint64(id), 10)
	event.ProductName = name
	if sku != nil {
		event.SKU = *sku
	}
	event.Status = status
	event.CategoryID = category
	return event
}

func (p *Publisher) applyActor(event *events.ProductEvent, actor Actor) {
	event.ActorID = actor.ID
	event.ActorName = actor.Name
	event.ActorEmail = actor.Email
	event.ClientIP = actor.ClientIP
	event.UserAgent = actor.UserAgent
}

// publish sends the event in the background so callers never wait on NATS
func (p *Publisher) publish(ctx context.Context, event *events.ProductEvent) error {
	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := p.publisher.PublishProduct(pubCtx, event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"productID": event.ProductID,
				"storeID":   event.TenantID,
			}).WithError(err).Error("Failed to publish product event")
		} else {
			p.logger.WithFields(logrus.Fields{
				"eventType":   event.EventType,
				"productID":   event.ProductID,
				"productName": event.ProductName,
			}).Debug("Product event published")
		}
	}()

	return nil
}
