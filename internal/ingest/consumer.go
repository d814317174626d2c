// Package ingest streams dataset rows from Kafka. Rows accumulate in a
// staging batch; a commit event closes the batch, stages it on the
// analysis service and triggers a pass.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/engine"
	"github.com/opensource-finance/talon/internal/metrics"
)

// Topic carries every ingest event. Rows and their commit share one
// topic and one partition key so partition ordering guarantees the
// commit arrives after its rows.
const Topic = "talon.ingest"

// Event types on the ingest topic.
const (
	EventAccount  = "account"
	EventDevice   = "device"
	EventLink     = "link"
	EventTransfer = "transfer"
	EventCommit   = "commit"
)

// Event is the envelope for one ingest message. Row events carry the
// row in Payload; commit events carry only the batch id.
type Event struct {
	Type    string          `json:"type"`
	BatchID string          `json:"batch_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// stage accumulates rows until a commit closes the batch.
type stage struct {
	accounts  []domain.Account
	devices   []domain.Device
	links     []domain.DeviceLink
	transfers []domain.Transfer
}

func (s *stage) apply(ev Event) error {
	switch ev.Type {
	case EventAccount:
		var row domain.Account
		if err := json.Unmarshal(ev.Payload, &row); err != nil {
			return fmt.Errorf("decode account row: %w", err)
		}
		s.accounts = append(s.accounts, row)
	case EventDevice:
		var row domain.Device
		if err := json.Unmarshal(ev.Payload, &row); err != nil {
			return fmt.Errorf("decode device row: %w", err)
		}
		s.devices = append(s.devices, row)
	case EventLink:
		var row domain.DeviceLink
		if err := json.Unmarshal(ev.Payload, &row); err != nil {
			return fmt.Errorf("decode link row: %w", err)
		}
		s.links = append(s.links, row)
	case EventTransfer:
		var row domain.Transfer
		if err := json.Unmarshal(ev.Payload, &row); err != nil {
			return fmt.Errorf("decode transfer row: %w", err)
		}
		s.transfers = append(s.transfers, row)
	default:
		return fmt.Errorf("unknown event type: %s", ev.Type)
	}
	return nil
}

func (s *stage) dataset() *domain.Dataset {
	return &domain.Dataset{
		Accounts:  s.accounts,
		Devices:   s.devices,
		Links:     s.links,
		Transfers: s.transfers,
	}
}

func (s *stage) size() int {
	return len(s.accounts) + len(s.devices) + len(s.links) + len(s.transfers)
}

// Consumer handles Kafka message consumption.
type Consumer struct {
	consumer  sarama.ConsumerGroup
	service   *engine.Service
	collector *metrics.Collector
	topics    []string
	ctx       context.Context
	cancel    context.CancelFunc

	mu    sync.Mutex
	stage stage
}

// NewConsumer creates a new Kafka consumer group for the ingest topic.
func NewConsumer(cfg domain.IngestConfig, service *engine.Service, collector *metrics.Collector) (*Consumer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	kafkaConfig.Consumer.Group.Session.Timeout = 10 * time.Second
	kafkaConfig.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	kafkaConfig.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		consumer:  consumer,
		service:   service,
		collector: collector,
		topics:    []string{Topic},
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start begins consuming messages.
func (c *Consumer) Start() error {
	slog.Info("starting Kafka consumer", "topics", c.topics)

	go func() {
		for {
			select {
			case <-c.ctx.Done():
				return
			default:
				if err := c.consumer.Consume(c.ctx, c.topics, c); err != nil {
					slog.Error("error consuming from Kafka", "error", err)
					time.Sleep(5 * time.Second) // Wait before retrying
				}
			}
		}
	}()

	// Monitor consumer errors
	go func() {
		for {
			select {
			case err := <-c.consumer.Errors():
				slog.Error("Kafka consumer error", "error", err)
			case <-c.ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the consumer.
func (c *Consumer) Stop() error {
	slog.Info("stopping Kafka consumer")
	c.cancel()
	return c.consumer.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	slog.Info("Kafka consumer group session setup")
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	slog.Info("Kafka consumer group session cleanup")
	return nil
}

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			if err := c.handleMessage(message.Value); err != nil {
				slog.Error("failed to handle message",
					"topic", message.Topic,
					"partition", message.Partition,
					"offset", message.Offset,
					"error", err)
			} else {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessage processes one ingest event. Malformed events and bad
// rows are logged and skipped; only retryable failures return an error
// so the message stays unmarked and gets redelivered.
func (c *Consumer) handleMessage(value []byte) error {
	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		slog.Warn("skipping malformed ingest event", "error", err)
		return nil
	}

	if ev.Type == EventCommit {
		return c.commitBatch(ev.BatchID)
	}

	c.mu.Lock()
	err := c.stage.apply(ev)
	c.mu.Unlock()
	if err != nil {
		slog.Warn("skipping bad ingest row", "type", ev.Type, "error", err)
		return nil
	}

	c.collector.IncrementIngestRows(ev.Type)
	return nil
}

// commitBatch closes the staged batch and runs a pass over it. The
// stage is kept intact while the backend is unreachable so a redelivered
// commit retries the same batch; any other failure drops the batch.
func (c *Consumer) commitBatch(batchID string) error {
	c.mu.Lock()
	ds := c.stage.dataset()
	size := c.stage.size()
	c.mu.Unlock()

	if size == 0 {
		slog.Warn("ignoring commit for empty batch", "batch_id", batchID)
		return nil
	}

	slog.Info("ingest batch committed",
		"batch_id", batchID,
		"accounts", len(ds.Accounts),
		"devices", len(ds.Devices),
		"links", len(ds.Links),
		"transfers", len(ds.Transfers),
	)

	c.service.Stage(c.ctx, ds, "kafka")
	if _, err := c.service.Analyze(c.ctx, ds); err != nil {
		if errors.Is(err, domain.ErrBackendUnavailable) {
			return fmt.Errorf("analyze batch %s: %w", batchID, err)
		}
		slog.Error("dropping batch after failed pass", "batch_id", batchID, "error", err)
	}

	c.mu.Lock()
	c.stage = stage{}
	c.mu.Unlock()
	c.collector.IncrementIngestBatches()
	return nil
}
