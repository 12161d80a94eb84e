package processor

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"dispatchq/internal/queue"
)

// BrokerPublisher hands queued payloads to RabbitMQ, for deployments where a
// downstream consumer does the actual work. Its Process method satisfies
// queue.ProcessFunc[json.RawMessage, struct{}].
type BrokerPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queueName  string
	exchange   string
	routingKey string
}

func NewBrokerPublisher(url, exchange, queueName, routingKey string) (*BrokerPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.QueueBind(
		queueName,
		routingKey,
		exchange,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &BrokerPublisher{
		conn:       conn,
		channel:    ch,
		queueName:  queueName,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

func (b *BrokerPublisher) Process(ctx context.Context, item *queue.Item[json.RawMessage]) (struct{}, error) {
	err := b.channel.PublishWithContext(ctx,
		b.exchange,
		b.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   item.ID,
			Priority:    clampPriority(item.Priority),
			Body:        item.Payload,
		},
	)
	return struct{}{}, err
}

// Consume streams delivered payloads until ctx is done.
func (b *BrokerPublisher) Consume(ctx context.Context) (<-chan []byte, error) {
	msgs, err := b.channel.Consume(
		b.queueName,
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte, 1000)

	go func() {
		defer close(out)

		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Body:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (b *BrokerPublisher) Close() error {
	if err := b.channel.Close(); err != nil {
		_ = b.conn.Close()
		return err
	}
	return b.conn.Close()
}

// AMQP priorities are a single byte; queue priorities are arbitrary ints.
func clampPriority(p int) uint8 {
	if p < 0 {
		return 0
	}
	if p > 255 {
		return 255
	}
	return uint8(p)
}
