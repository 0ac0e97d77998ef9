package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"unimarket/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const RabbitMQActionHeader string = "x-action"

type RabbitMQ struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	queue      string
	log        *zap.SugaredLogger
}

func RabbitMQConnect(cfg config.RabbitMQ, log *zap.SugaredLogger) (*RabbitMQ, error) {
	// Connect to RabbitMQ server
	conn, err := amqp.Dial(fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	log.Info("connection opened to RabbitMQ server")

	// Open a RabbitMQ channel
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a RabbitMQ channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare RabbitMQ queue %s: %w", cfg.Queue, err)
	}
	log.Infow("declared RabbitMQ queue", "queue", cfg.Queue)

	return &RabbitMQ{connection: conn, channel: ch, queue: cfg.Queue, log: log}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, action string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.channel.PublishWithContext(
		ctx,
		"",      // exchange
		r.queue, // routing key
		false,   // mandatory
		false,   // immediate
		Publishing(action, body),
	)
}

// Publishing builds the broker message for an action.
func Publishing(action string, body []byte) amqp.Publishing {
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			RabbitMQActionHeader: action,
		},
		Body: body,
	}
}

// Subscribe forwards every delivery on the queue to out until ctx ends.
func (r *RabbitMQ) Subscribe(ctx context.Context, out chan<- Event) error {
	msgs, err := r.channel.ConsumeWithContext(
		ctx,
		r.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}
	r.log.Infow("subscribed to RabbitMQ queue", "queue", r.queue)

	go func() {
		defer close(out)
		for msg := range msgs {
			out <- FromDelivery(msg)
			if err := msg.Ack(false); err != nil {
				r.log.Warnw("failed to ack event", "err", err)
			}
		}
	}()
	return nil
}

func FromDelivery(msg amqp.Delivery) Event {
	action, _ := msg.Headers[RabbitMQActionHeader].(string)
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Event{Action: action, Time: ts, Data: msg.Body}
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	return r.connection.Close()
}
