package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// AMQPConnection abstracts the subset of *amqp.Connection the archiver
// needs, so tests can inject a fake dialer instead of a live broker.
type AMQPConnection interface {
	Channel() (AMQPChannel, error)
	Close() error
}

// AMQPChannel abstracts the subset of *amqp.Channel the archiver needs.
type AMQPChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPDialer dials an AMQP broker, abstracted for dependency injection.
type AMQPDialer interface {
	Dial(url string) (AMQPConnection, error)
}

type realAMQPConnection struct{ conn *amqp.Connection }

func (r *realAMQPConnection) Channel() (AMQPChannel, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, err
	}
	return &realAMQPChannel{ch: ch}, nil
}

func (r *realAMQPConnection) Close() error { return r.conn.Close() }

type realAMQPChannel struct{ ch *amqp.Channel }

func (r *realAMQPChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	return r.ch.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
}

func (r *realAMQPChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return r.ch.Publish(exchange, key, mandatory, immediate, msg)
}

func (r *realAMQPChannel) Close() error { return r.ch.Close() }

// RealAMQPDialer dials a live broker via github.com/streadway/amqp.
type RealAMQPDialer struct{}

func (RealAMQPDialer) Dial(url string) (AMQPConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &realAMQPConnection{conn: conn}, nil
}

// amqpArchiveMessage is the JSON envelope published for every archived
// feed send.
type amqpArchiveMessage struct {
	Source    string    `json:"source"`
	FeedType  string    `json:"feedType"`
	Payload   string    `json:"payload"`
	Succeeded bool      `json:"succeeded"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AMQPArchiver publishes archived feed payloads to a durable queue on a
// RabbitMQ broker.
type AMQPArchiver struct {
	conn      AMQPConnection
	channel   AMQPChannel
	queueName string
}

// NewAMQPArchiver dials url with dialer and declares queueName as a
// durable queue.
func NewAMQPArchiver(dialer AMQPDialer, url, queueName string) (*AMQPArchiver, error) {
	conn, err := dialer.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("feed: amqp archiver: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("feed: amqp archiver: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("feed: amqp archiver: declare queue: %w", err)
	}
	return &AMQPArchiver{conn: conn, channel: ch, queueName: queueName}, nil
}

// Archive publishes the feed payload and outcome to the configured queue.
func (a *AMQPArchiver) Archive(ctx context.Context, source string, feedType FeedType, payload []byte, sendErr error) error {
	msg := amqpArchiveMessage{
		Source:    source,
		FeedType:  string(feedType),
		Payload:   string(payload),
		Succeeded: sendErr == nil,
		Timestamp: time.Now(),
	}
	if sendErr != nil {
		msg.Error = sendErr.Error()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("feed: amqp archiver: marshal message: %w", err)
	}

	err = a.channel.Publish("", a.queueName, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("feed: amqp archiver: publish: %w", err)
	}
	return nil
}

// Close releases the archiver's channel and connection.
func (a *AMQPArchiver) Close() error {
	_ = a.channel.Close()
	return a.conn.Close()
}
