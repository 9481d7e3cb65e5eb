package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"token_auth/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrChannelClosed = errors.New("rabbitmq: delivery channel closed")

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func New(urlForConn string, queueName string) (*RabbitMQClient, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(urlForConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		queueName, true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

// * Send публикует письмо в очередь, его отправкой занимается cmd/mail_sender
func (r *RabbitMQClient) Send(ctx context.Context, msg models.Message) error {
	const op = "rabbitmq.Send"

	body, err := encode(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		"",
		r.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * StartReading блокируется до отмены ctx или закрытия канала.
// Сообщение подтверждается только если handler вернул nil, иначе оно уходит обратно в очередь.
func (r *RabbitMQClient) StartReading(ctx context.Context, handler func(context.Context, models.Message) error) error {
	const op = "rabbitmq.StartReading"

	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	deliveries, err := r.channel.ConsumeWithContext(ctx, r.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: %w", op, ErrChannelClosed)
			}

			msg, err := decode(d.Body)
			if err != nil {
				// битое сообщение повторять бессмысленно
				_ = d.Reject(false)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				_ = d.Nack(false, !d.Redelivered)
				continue
			}

			_ = d.Ack(false)
		}
	}
}

func encode(msg models.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func decode(body []byte) (models.Message, error) {
	var msg models.Message

	if err := json.Unmarshal(body, &msg); err != nil {
		return models.Message{}, err
	}

	if msg.Email == "" {
		return models.Message{}, errors.New("message without recipient")
	}

	return msg, nil
}

func (r *RabbitMQClient) Close() {
	_ = r.channel.Close()
	_ = r.conn.Close()
}
