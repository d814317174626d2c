package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/opensource-finance/talon/internal/domain"
)

// Publisher streams datasets into the ingest topic, one row per message
// plus a terminating commit. Messages are keyed by batch id so a whole
// batch lands on one partition and stays ordered.
type Publisher struct {
	producer sarama.SyncProducer
}

// NewPublisher creates a new Kafka producer for the ingest topic.
func NewPublisher(brokers []string) (*Publisher, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 5
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return &Publisher{producer: producer}, nil
}

// PublishDataset sends every row of the dataset followed by the commit
// event that triggers analysis on the consumer side.
func (p *Publisher) PublishDataset(ds *domain.Dataset, batchID string) error {
	for _, row := range ds.Accounts {
		if err := p.sendRow(EventAccount, batchID, row); err != nil {
			return err
		}
	}
	for _, row := range ds.Devices {
		if err := p.sendRow(EventDevice, batchID, row); err != nil {
			return err
		}
	}
	for _, row := range ds.Links {
		if err := p.sendRow(EventLink, batchID, row); err != nil {
			return err
		}
	}
	for _, row := range ds.Transfers {
		if err := p.sendRow(EventTransfer, batchID, row); err != nil {
			return err
		}
	}

	if err := p.send(Event{Type: EventCommit, BatchID: batchID}); err != nil {
		return err
	}

	slog.Info("dataset published",
		"batch_id", batchID,
		"accounts", len(ds.Accounts),
		"devices", len(ds.Devices),
		"links", len(ds.Links),
		"transfers", len(ds.Transfers),
	)
	return nil
}

// Close shuts down the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}

func (p *Publisher) sendRow(eventType, batchID string, row any) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal %s row: %w", eventType, err)
	}
	return p.send(Event{Type: eventType, BatchID: batchID, Payload: payload})
}

func (p *Publisher) send(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: Topic,
		Key:   sarama.StringEncoder(ev.BatchID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("send %s event: %w", ev.Type, err)
	}
	return nil
}
