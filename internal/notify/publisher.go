// Package notify fans booking events out of the request path: a
// RabbitMQ publisher on the producing side and SMS composition for the
// consuming side. Errors are logged and returned so callers can ignore
// failures without interrupting the main request flow.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tanefack/community-booking/internal/model"
	"github.com/tanefack/community-booking/internal/queue"
	"github.com/tanefack/community-booking/internal/repository"
)

// Publisher publishes domain events to RabbitMQ. A fresh connection is
// dialed per publish; publish volume here is a handful of messages per
// booking, so connection reuse is not worth the reconnect bookkeeping.
type Publisher struct {
	url    string
	users  *repository.UserRepo
	halls  *repository.HallRepo
	events *repository.EventRepo
}

// NewPublisher builds a publisher. The repositories resolve the phone
// number and resource name that go into the message payloads.
func NewPublisher(url string, users *repository.UserRepo, halls *repository.HallRepo, events *repository.EventRepo) *Publisher {
	return &Publisher{url: url, users: users, halls: halls, events: events}
}

// PublishBookingConfirmed emits a BookingConfirmedEvent for a booking
// that just reached confirmed status.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, b *model.Booking) error {
	ev := queue.BookingConfirmedEvent{
		BookingID:     b.ID,
		ReferenceCode: b.ReferenceCode,
		UserID:        b.UserID,
		ResourceType:  string(b.ResourceType),
		BookingDate:   b.BookingDate,
		Quantity:      b.Quantity,
		AmountCents:   b.AmountCents,
	}
	if b.StartTime != nil {
		ev.StartTime = *b.StartTime
	}
	if b.EndTime != nil {
		ev.EndTime = *b.EndTime
	}
	if b.ConfirmedAt != nil {
		ev.ConfirmedAt = b.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	if u, err := p.users.GetByID(ctx, b.UserID); err == nil {
		ev.PhoneNumber = u.PhoneNumber
	} else {
		log.Printf("notify: resolve user %d: %v", b.UserID, err)
	}
	switch b.ResourceType {
	case model.ResourceHall:
		if h, err := p.halls.GetByID(ctx, b.ResourceID); err == nil {
			ev.ResourceName = h.Name
		}
	case model.ResourceEvent:
		if e, err := p.events.GetByID(ctx, b.ResourceID); err == nil {
			ev.ResourceName = e.Name
		}
	}
	return p.publish(ctx, queue.BookingConfirmedQueue, ev)
}

// PublishSms queues a generic outbound text.
func (p *Publisher) PublishSms(ctx context.Context, phone, message string) error {
	return p.publish(ctx, queue.SmsOutboundQueue, queue.SmsMessage{PhoneNumber: phone, Message: message})
}

// publish declares the durable queue (idempotent) and publishes one
// persistent JSON message to it.
func (p *Publisher) publish(ctx context.Context, queueName string, payload any) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", queueName, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish to %s failed: %v", queueName, err)
		return err
	}
	return nil
}
