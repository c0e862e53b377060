// Package service implements the reservation manager, the webhook event
// processor and the notification dispatcher on top of the repository
// layer.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lectorium/ticketing/internal/queue"
)

// Notifier dispatches ticket notifications for the email subsystem.
// Dispatch is fire-and-forget everywhere it is called: failures are logged
// and never block or roll back a reservation or confirmation.
type Notifier interface {
	Publish(ctx context.Context, n queue.TicketNotification) error
}

// AMQPNotifier publishes notifications to the durable ticket.notifications
// queue on RabbitMQ.  A connection is opened per publish; notification
// volume is a handful per reservation, not a throughput concern.
type AMQPNotifier struct {
	URL string
}

// NewAMQPNotifier returns a notifier publishing to the given broker URL.
func NewAMQPNotifier(url string) *AMQPNotifier { return &AMQPNotifier{URL: url} }

// Publish sends the notification as a persistent JSON message.  Any error
// is logged and returned so the caller can choose to ignore it.
func (p *AMQPNotifier) Publish(ctx context.Context, n queue.TicketNotification) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("notifier: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("notifier: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.NotificationQueueName, true, false, false, false, nil); err != nil {
		log.Printf("notifier: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("notifier: marshal notification failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", queue.NotificationQueueName, false, false, pub); err != nil {
		log.Printf("notifier: publish failed: %v", err)
		return err
	}
	return nil
}
