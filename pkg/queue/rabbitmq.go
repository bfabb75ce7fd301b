package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jsonify/vox/pkg/models"
)

// publishTimeout bounds a single Enqueue against a stalled broker.
const publishTimeout = 5 * time.Second

// RabbitMQQueue is the durable broker-backed queue. All workers share one
// consumer; concurrency is governed by the QoS prefetch count, and manual
// Ack/Nack gives at-least-once delivery.
type RabbitMQQueue struct {
	url       string
	queueName string
	prefetch  int
	logger    hclog.Logger

	closed chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	// Publishing and consuming use separate connections so a blocked
	// consumer never stalls the API's Enqueue path.
	publishConn    *amqp.Connection
	publishChannel *amqp.Channel
	publishMu      sync.Mutex

	consumeConn    *amqp.Connection
	consumeChannel *amqp.Channel
	deliveries     <-chan amqp.Delivery

	// The amqp channel is not safe for concurrent Ack/Nack.
	ackMu sync.Mutex
}

// NewRabbitMQQueue connects, declares the durable queue, and starts the
// consumer. prefetch caps how many unacked jobs workers hold at once.
func NewRabbitMQQueue(url, queueName string, prefetch int, logger hclog.Logger) (*RabbitMQQueue, error) {
	if prefetch <= 0 {
		prefetch = 3
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	q := &RabbitMQQueue{
		url:       url,
		queueName: queueName,
		prefetch:  prefetch,
		logger:    logger,
		closed:    make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}

	if err := q.setupPublisher(); err != nil {
		cancel()
		return nil, fmt.Errorf("initializing publisher: %w", err)
	}
	if err := q.setupConsumer(); err != nil {
		cancel()
		q.closePublisher()
		return nil, fmt.Errorf("initializing consumer: %w", err)
	}

	logger.Info("rabbitmq queue ready", "queue", queueName, "prefetch", prefetch)
	return q, nil
}

func (q *RabbitMQQueue) setupPublisher() error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("dialing broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening channel: %w", err)
	}

	// Durable queue; declaration is idempotent.
	if _, err := ch.QueueDeclare(q.queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declaring queue %s: %w", q.queueName, err)
	}

	q.publishConn = conn
	q.publishChannel = ch
	return nil
}

func (q *RabbitMQQueue) setupConsumer() error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("dialing broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening channel: %w", err)
	}

	if err := ch.Qos(q.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("setting QoS: %w", err)
	}

	deliveries, err := ch.Consume(q.queueName, "vox-worker", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("starting consumer: %w", err)
	}

	q.consumeConn = conn
	q.consumeChannel = ch
	q.deliveries = deliveries
	return nil
}

// Enqueue publishes the job as persistent JSON.
func (q *RabbitMQQueue) Enqueue(job *models.TranscriptionJob) error {
	q.publishMu.Lock()
	defer q.publishMu.Unlock()

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.JobID, err)
	}

	ctx, cancel := context.WithTimeout(q.ctx, publishTimeout)
	defer cancel()

	err = q.publishChannel.PublishWithContext(ctx,
		"", q.queueName, false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("publishing job %s: %w", job.JobID, err)
	}
	return nil
}

// Dequeue blocks on the shared delivery channel. The channel guarantees each
// delivery reaches exactly one worker.
func (q *RabbitMQQueue) Dequeue() (*models.TranscriptionJob, error) {
	select {
	case <-q.closed:
		return nil, ErrQueueClosed
	case <-q.ctx.Done():
		return nil, ErrQueueClosed
	case delivery, ok := <-q.deliveries:
		if !ok {
			return nil, ErrQueueClosed
		}
		var job models.TranscriptionJob
		if err := json.Unmarshal(delivery.Body, &job); err != nil {
			// Undecodable payloads are dropped, not requeued; they would
			// fail the same way forever.
			q.nack(delivery.DeliveryTag, false)
			return nil, fmt.Errorf("decoding job payload: %w", err)
		}
		job.DeliveryTag = delivery.DeliveryTag
		job.Delivery = &delivery
		return &job, nil
	}
}

// Ack confirms a processed job. Jobs that did not come from this broker are
// ignored.
func (q *RabbitMQQueue) Ack(job *models.TranscriptionJob) error {
	delivery, ok := job.Delivery.(*amqp.Delivery)
	if !ok {
		return nil
	}
	q.ackMu.Lock()
	defer q.ackMu.Unlock()
	return q.consumeChannel.Ack(delivery.DeliveryTag, false)
}

// Nack rejects a failed job, optionally requeueing it.
func (q *RabbitMQQueue) Nack(job *models.TranscriptionJob, requeue bool) error {
	delivery, ok := job.Delivery.(*amqp.Delivery)
	if !ok {
		return nil
	}
	return q.nack(delivery.DeliveryTag, requeue)
}

func (q *RabbitMQQueue) nack(tag uint64, requeue bool) error {
	q.ackMu.Lock()
	defer q.ackMu.Unlock()
	return q.consumeChannel.Nack(tag, false, requeue)
}

// Close tears down both connections. Idempotent.
func (q *RabbitMQQueue) Close() error {
	select {
	case <-q.closed:
		return nil
	default:
		close(q.closed)
		q.cancel()

		if q.consumeChannel != nil {
			q.consumeChannel.Close()
		}
		if q.consumeConn != nil {
			q.consumeConn.Close()
		}
		q.closePublisher()

		q.logger.Info("rabbitmq queue closed", "queue", q.queueName)
		return nil
	}
}

func (q *RabbitMQQueue) closePublisher() {
	if q.publishChannel != nil {
		q.publishChannel.Close()
	}
	if q.publishConn != nil {
		q.publishConn.Close()
	}
}

// Depth reports queued messages and attached consumers, for diagnostics.
func (q *RabbitMQQueue) Depth() (messages, consumers int, err error) {
	state, err := q.publishChannel.QueueInspect(q.queueName)
	if err != nil {
		return 0, 0, err
	}
	return state.Messages, state.Consumers, nil
}
