package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/tarla/storefront/internal/models"
)

func TestProducerAgainstBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.8.0",
		tckafka.WithClusterID("storefront-test"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}()

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("failed to get kafka brokers: %v", err)
	}

	const topic = "storefront.orders.test"
	producer := NewProducer(brokers, topic)
	defer func() { _ = producer.Close() }()

	order := &models.Order{
		ID:          7,
		OrderNumber: "TL202603201230000007",
		FinalPrice:  185000,
		Status:      models.OrderStatusPaid,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := producer.PublishOrderStatusChanged(ctx, order, models.OrderStatusPending); err != nil {
		t.Fatalf("publish: %v", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MaxWait:   500 * time.Millisecond,
	})
	defer func() { _ = reader.Close() }()

	msg, err := reader.ReadMessage(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(msg.Key) != "7" {
		t.Errorf("expected key 7, got %q", msg.Key)
	}

	var event OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Type != TypeOrderStatusChanged || event.PreviousStatus != models.OrderStatusPending || event.Status != models.OrderStatusPaid {
		t.Errorf("unexpected event: %+v", event)
	}
}
