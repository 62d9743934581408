// Package kafka provides the catalog ingestion queue and the catalog
// state-transition event stream.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/database"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/tasks"
	"github.com/segmentio/kafka-go"
)

// TaskProcessor defines the interface for any service that can process an
// ingestion task. This decouples the Kafka consumer from the concrete
// pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.CatalogIngestTask) error
}

var (
	ingestProducer *kafka.Writer
	eventProducer  *kafka.Writer
)

// InitProducers initializes the Kafka writers for ingestion tasks and
// catalog events.
func InitProducers(cfg config.KafkaConfig) {
	ingestProducer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.IngestTopic,
		Balancer: &kafka.LeastBytes{},
	}
	eventProducer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.EventTopic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka producers initialized successfully")
}

// ProduceIngestTask enqueues a catalog ingestion task.
func ProduceIngestTask(task tasks.CatalogIngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return ingestProducer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(task.VersionID),
			Value: taskBytes,
		},
	)
}

// PublishCatalogEvent emits a catalog state-transition event. Publishing is
// best-effort: a broker outage must not block a state transition that has
// already been committed.
func PublishCatalogEvent(event model.CatalogEvent) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		log.Errorf("failed to marshal catalog event: %v", err)
		return
	}
	err = eventProducer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(event.VersionID),
			Value: eventBytes,
		},
	)
	if err != nil {
		log.Errorf("failed to publish catalog event for version %s: %v", event.VersionID, err)
	}
}

// StartConsumer runs a Kafka consumer processing catalog ingestion tasks.
// Failed tasks are retried by Kafka until the Redis attempt counter reaches
// three, at which point the offset is committed and the version stays FAILED.
func StartConsumer(cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.IngestTopic,
		GroupID:  "codification-engine-consumer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka consumer started, listening on topic '%s'", cfg.IngestTopic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("failed to read message from Kafka", err)
			break
		}

		log.Infof("received Kafka message: offset %d", m.Offset)

		var task tasks.CatalogIngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("failed to parse Kafka message: %v, value: %s", err, string(m.Value))
			// Malformed message: commit so it does not block the queue.
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("failed to commit malformed message: %v", err)
			}
			continue
		}

		log.Infof("processing catalog ingest task: version=%s, object=%s", task.VersionID, task.ObjectName)
		if err := processor.Process(context.Background(), task); err != nil {
			log.Errorf("catalog ingest task failed: version=%s, error: %v", task.VersionID, err)
			attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.VersionID)
			attempts, incErr := database.RDB.Incr(context.Background(), attemptsKey).Result()
			if incErr == nil {
				_ = database.RDB.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
			}
			if incErr != nil {
				// Redis unavailable: do not commit, let Kafka redeliver.
				continue
			}
			if attempts >= 3 {
				log.Errorf("catalog ingest task failed %d times, committing offset to stop retries: version=%s", attempts, task.VersionID)
				if err := r.CommitMessages(context.Background(), m); err != nil {
					log.Errorf("failed to commit Kafka offset: %v", err)
				}
			}
		} else {
			log.Infof("catalog ingest task succeeded: version=%s", task.VersionID)
			_ = database.RDB.Del(context.Background(), fmt.Sprintf("kafka:attempts:%s", task.VersionID)).Err()
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("failed to commit Kafka offset: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("failed to close Kafka consumer: %v", err)
	}
}
