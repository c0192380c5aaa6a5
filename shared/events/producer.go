package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/dbifleet/go-tire-fleet-system/shared/models"
)

// TireEventsTopic carries every lifecycle event record.
const TireEventsTopic = "tire-events"

// Producer publishes tire lifecycle events to Kafka through a buffered worker
// pool, so a slow broker never blocks a lifecycle transition handler.
type Producer struct {
	writer       *kafka.Writer
	eventChan    chan models.TireEvent
	workerCount  int
	shutdownChan chan struct{}
	wg           sync.WaitGroup
}

// NewProducer creates a producer and starts its worker pool.
func NewProducer(broker string) (*Producer, error) {
	if broker == "" {
		return nil, fmt.Errorf("kafka broker address required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	p := &Producer{
		writer:       writer,
		eventChan:    make(chan models.TireEvent, 1000),
		workerCount:  4,
		shutdownChan: make(chan struct{}),
	}
	p.startWorkers()
	return p, nil
}

func (p *Producer) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.eventWorker(i)
	}
	logrus.Infof("[Kafka] Started %d tire event workers", p.workerCount)
}

func (p *Producer) eventWorker(id int) {
	defer p.wg.Done()

	for {
		select {
		case event := <-p.eventChan:
			if err := p.sendEventSync(event); err != nil {
				logrus.Warnf("[Kafka Worker %d] Failed to send tire event: %v", id, err)
			}
		case <-p.shutdownChan:
			return
		}
	}
}

// PublishTireEvent queues a tire event asynchronously (non-blocking). A full
// queue drops the event rather than stalling the caller.
func (p *Producer) PublishTireEvent(event models.TireEvent) error {
	select {
	case p.eventChan <- event:
		return nil
	default:
		return fmt.Errorf("tire event queue full, event dropped")
	}
}

// sendEventSync writes a tire event to Kafka synchronously (called by workers).
// Events are keyed by tenant so a tenant's alerts stay ordered.
func (p *Producer) sendEventSync(event models.TireEvent) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal tire event: %w", err)
	}

	msg := kafka.Message{
		Topic: TireEventsTopic,
		Key:   []byte(event.TenantID.String()),
		Value: message,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID.String())},
			{Key: "tire_id", Value: []byte(event.TireID.String())},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write tire event to Kafka: %w", err)
	}
	return nil
}

// Close gracefully shuts down the producer and its workers.
func (p *Producer) Close() error {
	close(p.shutdownChan)
	p.wg.Wait()
	close(p.eventChan)

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}
