package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultPublishBuffer is how many events may wait for the broker.
	DefaultPublishBuffer = 256
	// DefaultDialTimeout bounds the TCP connect and AMQP handshake.
	DefaultDialTimeout = 3 * time.Second

	maxRedialBackoff = 30 * time.Second
	flushTimeout     = 2 * time.Second
)

// ErrPublishBufferFull is returned by Publish when the broker has fallen
// behind and the event was dropped.
var ErrPublishBufferFull = errors.New("queue: publish buffer full")

// Publisher sends ReservationEvents to RabbitMQ.  Publish only enqueues;
// Run owns the connection and delivers events in order.  A broker outage
// never blocks callers: events that cannot be delivered are logged and
// dropped, and redials back off up to 30s.
type Publisher struct {
	url         string
	queue       string
	log         *zap.Logger
	dialTimeout time.Duration
	events      chan ReservationEvent

	// owned by Run
	conn      *amqp.Connection
	ch        *amqp.Channel
	nextDial  time.Time
	backoff   time.Duration
	dialCount int
}

// NewPublisher returns a Publisher for the broker at url.  Nothing is
// delivered until Run is started.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	return newPublisher(url, log, DefaultPublishBuffer, DefaultDialTimeout)
}

func newPublisher(url string, log *zap.Logger, buffer int, dialTimeout time.Duration) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		url:         url,
		queue:       ReservationQueue,
		log:         log,
		dialTimeout: dialTimeout,
		events:      make(chan ReservationEvent, buffer),
	}
}

// Publish queues ev for delivery and returns immediately.
func (p *Publisher) Publish(_ context.Context, ev ReservationEvent) error {
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrPublishBufferFull
	}
}

// Run delivers queued events until ctx is done, then makes one bounded
// attempt to flush what is still buffered and closes the connection.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.close()
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return ctx.Err()
		case ev := <-p.events:
			_ = p.send(ctx, ev)
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case ev := <-p.events:
			if err := p.send(ctx, ev); err != nil {
				p.log.Warn("dropping undelivered events on shutdown", zap.Int("pending", len(p.events)))
				return
			}
		default:
			return
		}
	}
}

// send delivers one event.  Failures are logged and the event is dropped.
func (p *Publisher) send(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ch, err := p.channel()
	if err != nil {
		p.log.Warn("rabbitmq unavailable, event dropped",
			zap.String("event_type", string(ev.Type)),
			zap.Uint64("reservation_id", ev.ReservationID),
			zap.Error(err))
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(pubCtx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed",
			zap.String("event_type", string(ev.Type)),
			zap.Uint64("reservation_id", ev.ReservationID),
			zap.Error(err))
		_ = ch.Close()
		p.ch = nil
		return err
	}
	return nil
}

var errRedialBackoff = errors.New("broker redial backing off")

// channel returns an open channel with the queue declared.  Dialing is
// bounded by dialTimeout and skipped while a previous failure is backing
// off.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		if time.Now().Before(p.nextDial) {
			return nil, errRedialBackoff
		}
		p.dialCount++
		conn, err := amqp.DialConfig(p.url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(p.dialTimeout),
		})
		if err != nil {
			p.failDial()
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		p.conn = conn
		p.backoff = 0
	}
	ch, err := p.conn.Channel()
	if err != nil {
		p.close()
		p.failDial()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// durable, not auto-deleted, not exclusive
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		p.close()
		p.failDial()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.ch = ch
	return ch, nil
}

func (p *Publisher) failDial() {
	if p.backoff == 0 {
		p.backoff = time.Second
	} else {
		p.backoff *= 2
	}
	if p.backoff > maxRedialBackoff {
		p.backoff = maxRedialBackoff
	}
	p.nextDial = time.Now().Add(p.backoff)
}

func (p *Publisher) close() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
