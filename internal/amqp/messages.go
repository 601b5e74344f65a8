package amqp

import (
	"github.com/rabbitmq/amqp091-go"

	"finbits/internal/events"
)

// BoundTypes lists the event types the queue receives. The routing key of a
// message is its event type.
var BoundTypes = []events.Type{
	events.TypeBitFullyCompleted,
	events.TypeSpendingRecorded,
}

func routingKey(t events.Type) string {
	return string(t)
}

// newPublishing wraps an encoded envelope into a persistent AMQP message.
func newPublishing(e events.Envelope) (amqp091.Publishing, error) {
	body, err := e.ToJSON()
	if err != nil {
		return amqp091.Publishing{}, err
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    e.ID,
		Type:         string(e.Type),
		Timestamp:    e.OccurredAt,
		Body:         body,
	}, nil
}

// decodeDelivery parses the envelope carried by a delivery.
func decodeDelivery(d amqp091.Delivery) (events.Envelope, error) {
	return events.EnvelopeFromJSON(d.Body)
}
