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
	"github.com/rs/zerolog/log"
)

// Log file names written by the audit consumer, relative to its directory.
const (
	issuanceLogFile = "issuance.log"
	checkinLogFile  = "checkin.log"
)

// AuditConsumer listens on the ticket queues and appends one line per
// message to a log file under Dir.
type AuditConsumer struct {
	URL string
	Dir string
}

// NewAuditConsumer returns a consumer for url writing into dir.
func NewAuditConsumer(url, dir string) *AuditConsumer {
	if url == "" {
		url = DefaultURL
	}
	if dir == "" {
		dir = "logs"
	}
	return &AuditConsumer{URL: url, Dir: dir}
}

// Run connects to the broker and consumes until ctx is cancelled. Broken
// connections are re-established with exponential backoff capped at 30s;
// messages that cannot be handled are rejected without requeue so the
// loop keeps moving.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("audit-consumer: failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("audit-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("audit-consumer: set QoS failed")
	}

	issued, err := c.subscribe(ch, TicketIssuedQueue)
	if err != nil {
		return err
	}
	checked, err := c.subscribe(ch, TicketCheckedInQueue)
	if err != nil {
		return err
	}

	for {
		var (
			d     amqp.Delivery
			ok    bool
			queue string
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-issued:
			queue = TicketIssuedQueue
		case d, ok = <-checked:
			queue = TicketCheckedInQueue
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := handleMessage(c.Dir, queue, d.Body); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("audit-consumer: handle message failed")
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
}

func (c *AuditConsumer) subscribe(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", queue, err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", queue, err)
	}
	return msgs, nil
}

// handleMessage formats one delivery and appends it to the log file that
// belongs to queue.
func handleMessage(dir, queue string, body []byte) error {
	var (
		file string
		line string
	)
	switch queue {
	case TicketIssuedQueue:
		var ev TicketIssuedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		file = issuanceLogFile
		line = fmt.Sprintf("[%s] Ticket issued | ticket_id=%s | number=%s | event=%q | issued_by=%d\n",
			ev.IssuedAt, ev.TicketID, ev.TicketNumber, ev.Event, ev.IssuedBy)
	case TicketCheckedInQueue:
		var ev TicketCheckedInEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		file = checkinLogFile
		line = fmt.Sprintf("[%s] Ticket checked in | ticket_id=%s | number=%s | event=%q | scanned_by=%d\n",
			ev.ScannedAt, ev.TicketID, ev.TicketNumber, ev.Event, ev.ScannedBy)
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
