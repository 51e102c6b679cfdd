package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Notifier delivers alerts to one channel.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log channel.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the alert.
func (n *LogNotifier) Notify(_ context.Context, a Alert) error {
	n.logger.Warn("alert",
		zap.String("id", a.ID),
		zap.Time("timestamp", a.Timestamp),
		zap.String("equipment", a.EquipmentID),
		zap.String("metric", a.Metric),
		zap.Float64("value", a.Value),
		zap.String("type", a.Type),
		zap.String("severity", a.Severity),
		zap.String("message", a.Message),
	)
	return nil
}

// WebhookNotifier POSTs alert JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook channel.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts the alert and fails on a non-2xx response.
func (n *WebhookNotifier) Notify(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("alerting: marshal alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerting: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("alerting: post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alerting: webhook returned %d", resp.StatusCode)
	}
	return nil
}

// KafkaNotifier publishes alert JSON to a Kafka topic, keyed by
// equipment so one machine's alerts stay ordered within a partition.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier creates a Kafka channel.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Notify publishes the alert.
func (n *KafkaNotifier) Notify(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("alerting: marshal alert: %w", err)
	}
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(a.EquipmentID),
		Value: body,
	})
	if err != nil {
		return fmt.Errorf("alerting: publish alert: %w", err)
	}
	return nil
}

// Close releases the Kafka writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// Fanout delivers each alert to every channel, collecting failures so
// one broken channel does not silence the rest.
type Fanout struct {
	channels []Notifier
}

// NewFanout creates a fan-out over the given channels.
func NewFanout(channels ...Notifier) *Fanout {
	return &Fanout{channels: channels}
}

// Notify delivers to all channels and joins their errors.
func (f *Fanout) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, ch := range f.channels {
		if err := ch.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyAll delivers every alert through the fan-out.
func (f *Fanout) NotifyAll(ctx context.Context, alerts []Alert) error {
	var errs []error
	for _, a := range alerts {
		if err := f.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
