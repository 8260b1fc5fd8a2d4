package publish

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lkmninja/aaflbot/internal/config"
	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/event"
	"github.com/lkmninja/aaflbot/internal/logging"
)

// Types are the event types forwarded to Kafka.
var Types = []string{
	event.TypeTradeFinished,
	event.TypeSigningFinished,
	event.TypeRosterChanged,
	event.TypeCapExceeded,
}

const (
	defaultQueueSize = 256
	defaultBatchSize = 50
	writeTimeout     = 10 * time.Second
)

// Writer is the part of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a writer for the configured brokers and topic.
func NewKafkaWriter(cfg config.KafkaConfig) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.NewValidationError("at least one broker is required").WithField("kafka.brokers")
	}
	if cfg.Topic == "" {
		return nil, errors.NewValidationError("topic must not be empty").WithField("kafka.topic")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 100 * time.Millisecond,
	}, nil
}

// Record is the JSON envelope written for each event.
type Record struct {
	Type string      `json:"type"`
	Time time.Time   `json:"time"`
	Data event.Event `json:"data"`
}

// Publisher queues bus events and writes them to Kafka.
type Publisher struct {
	w         Writer
	logger    *logging.Logger
	queue     chan kafka.Message
	batchSize int

	dropped   atomic.Int64
	published atomic.Int64
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithQueueSize bounds the number of records waiting to be written.
func WithQueueSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan kafka.Message, n)
		}
	}
}

// WithBatchSize caps the number of records per write.
func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// New creates a Publisher writing to w.
func New(w Writer, logger *logging.Logger, opts ...Option) *Publisher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	p := &Publisher{
		w:         w,
		logger:    logger.WithComponent("publish"),
		queue:     make(chan kafka.Message, defaultQueueSize),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Attach subscribes the publisher to bus and returns a function that
// removes the subscriptions.
func (p *Publisher) Attach(bus *event.Bus) (detach func()) {
	ids := make([]string, 0, len(Types))
	for _, t := range Types {
		ids = append(ids, bus.Subscribe(t, p.Handle))
	}
	return func() {
		for _, id := range ids {
			bus.Unsubscribe(id)
		}
	}
}

// Handle encodes e and queues it for writing.
func (p *Publisher) Handle(e event.Event) {
	value, err := json.Marshal(Record{Type: e.EventType(), Time: e.Timestamp(), Data: e})
	if err != nil {
		p.logger.Error("failed to encode event", "type", e.EventType(), "error", err)
		return
	}
	msg := kafka.Message{Key: []byte(KeyOf(e)), Value: value, Time: e.Timestamp()}
	select {
	case p.queue <- msg:
	default:
		if p.dropped.Add(1) == 1 {
			p.logger.Warn("publish queue full; dropping events")
		}
	}
}

// KeyOf returns the partition key for an event: the team it concerns.
func KeyOf(e event.Event) string {
	switch ev := e.(type) {
	case event.TradeFinishedEvent:
		if ev.TeamA != "" {
			return ev.TeamA
		}
		return ev.ProposalID
	case event.SigningFinishedEvent:
		return ev.Team
	case event.RosterChangedEvent:
		return ev.Team
	case event.CapExceededEvent:
		return ev.Team
	case event.TeamCreatedEvent:
		return ev.Team
	default:
		return e.EventType()
	}
}

// Run writes queued records until ctx is done, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.flush(context.WithoutCancel(ctx))
			return
		case msg := <-p.queue:
			p.write(ctx, p.drain(msg))
		}
	}
}

// drain collects first plus whatever else is queued, up to the batch size.
func (p *Publisher) drain(first kafka.Message) []kafka.Message {
	batch := []kafka.Message{first}
	for len(batch) < p.batchSize {
		select {
		case msg := <-p.queue:
			batch = append(batch, msg)
		default:
			return batch
		}
	}
	return batch
}

func (p *Publisher) flush(ctx context.Context) {
	for {
		select {
		case msg := <-p.queue:
			p.write(ctx, p.drain(msg))
		default:
			return
		}
	}
}

func (p *Publisher) write(ctx context.Context, batch []kafka.Message) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.w.WriteMessages(ctx, batch...); err != nil {
		p.logger.Warn("failed to publish events", "count", len(batch), "error", err)
		return
	}
	p.published.Add(int64(len(batch)))
	p.logger.Debug("published events", "count", len(batch))
}

// Stats returns how many records were written and dropped.
func (p *Publisher) Stats() (published, dropped int64) {
	return p.published.Load(), p.dropped.Load()
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
