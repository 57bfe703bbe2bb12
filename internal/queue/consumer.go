package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AuditLogName is the file, inside the consumer's directory, that receives
// one line per reservation event.
const AuditLogName = "reservation.log"

// Consumer reads ReservationQueue and appends each event to
// <Dir>/reservation.log.
type Consumer struct {
	URL string
	Dir string
	Log *zap.Logger
}

// Run connects to the broker and consumes until ctx is cancelled.  Dial
// failures are retried with exponential backoff capped at 30s; a dropped
// connection triggers a reconnect.  Run returns ctx.Err() on shutdown.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("reservation-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("reservation-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("reservation-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(ReservationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ReservationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(c.Dir, d.Body); err != nil {
				log.Error("reservation-consumer: handle message failed",
					zap.String("message_id", d.MessageId), zap.Error(err))
				_ = d.Nack(false, false) // no requeue, avoids a poison-message loop
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage decodes one event and appends it to the audit log in dir.
func handleMessage(dir string, body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ReservationID == 0 {
		return errors.New("event missing type or reservation_id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, AuditLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(ev ReservationEvent) string {
	return fmt.Sprintf("[%s] %s | event_id=%s | reservation_id=%d | user_id=%d | room_id=%d | title=%q | start=%s | end=%s\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.EventID, ev.ReservationID, ev.UserID, ev.RoomID,
		ev.Title, ev.StartTime.UTC().Format(time.RFC3339), ev.EndTime.UTC().Format(time.RFC3339))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
