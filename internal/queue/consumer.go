package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Sender delivers one outbound text. Satisfied by notify.ATSmsSender;
// kept local so this package does not import the producing side.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// Consumer drains the booking.confirmed and sms.outbound queues:
// confirmed bookings become SMS receipts plus a line in the audit log,
// outbound messages are sent as-is.
type Consumer struct {
	url     string
	sms     Sender
	logPath string
}

// NewConsumer builds a consumer. logPath is the audit log file for
// confirmed bookings, typically logs/booking.log.
func NewConsumer(url string, sms Sender, logPath string) *Consumer {
	return &Consumer{url: url, sms: sms, logPath: logPath}
}

// Run connects to RabbitMQ and consumes until the broker connection
// drops, then reconnects with exponential backoff. It returns only
// when ctx is cancelled. Intended to run in its own goroutine.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Printf("consumer: dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := c.consumeLoop(ctx, conn); err != nil {
			log.Printf("consumer: consume loop ended: %v; reconnecting", err)
		}
		_ = conn.Close()
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("consumer: set QoS failed: %v", err)
	}

	for _, name := range []string{BookingConfirmedQueue, SmsOutboundQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	confirmed, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", BookingConfirmedQueue, err)
	}
	outbound, err := ch.Consume(SmsOutboundQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", SmsOutboundQueue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-confirmed:
			if !ok {
				return errors.New("booking.confirmed channel closed")
			}
			c.settle(d, c.handleConfirmed(ctx, d.Body))
		case d, ok := <-outbound:
			if !ok {
				return errors.New("sms.outbound channel closed")
			}
			c.settle(d, c.handleOutbound(ctx, d.Body))
		}
	}
}

// settle acks on success and rejects without requeue on failure so a
// poison message cannot wedge the queue.
func (c *Consumer) settle(d amqp.Delivery, err error) {
	if err != nil {
		log.Printf("consumer: handle message failed: %v", err)
		_ = d.Reject(false)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) handleConfirmed(ctx context.Context, body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode booking.confirmed: %w", err)
	}
	if err := c.appendLog(ev); err != nil {
		log.Printf("consumer: append booking log: %v", err)
	}
	if c.sms == nil || ev.PhoneNumber == "" {
		return nil
	}
	return c.sms.Send(ctx, ev.PhoneNumber, receiptMessage(ev))
}

func (c *Consumer) handleOutbound(ctx context.Context, body []byte) error {
	var msg SmsMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode sms.outbound: %w", err)
	}
	if c.sms == nil {
		return nil
	}
	return c.sms.Send(ctx, msg.PhoneNumber, msg.Message)
}

// receiptMessage composes the confirmation SMS.
func receiptMessage(ev BookingConfirmedEvent) string {
	when := ev.BookingDate
	if ev.StartTime != "" {
		when = fmt.Sprintf("%s %s-%s", ev.BookingDate, ev.StartTime, ev.EndTime)
	}
	return fmt.Sprintf("Booking confirmed! Ref: %s. %s on %s. Amount: FCFA %d. Keep this reference for entry.",
		ev.ReferenceCode, ev.ResourceName, when, ev.AmountCents/100)
}

// appendLog writes one line per confirmed booking to the audit log.
func (c *Consumer) appendLog(ev BookingConfirmedEvent) error {
	if c.logPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	line := fmt.Sprintf("%s booking=%d ref=%s user=%d type=%s resource=%q date=%s amount_cents=%d\n",
		time.Now().UTC().Format(time.RFC3339), ev.BookingID, ev.ReferenceCode, ev.UserID,
		ev.ResourceType, ev.ResourceName, ev.BookingDate, ev.AmountCents)
	_, err = f.WriteString(line)
	return err
}
