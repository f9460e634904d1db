package clients

import (
	"fmt"

	"quizhub-subscription-svc/src/internal/config"

	"github.com/streadway/amqp"
)

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	cfg     *config.QueueConfig
}

func NewRabbitMQ(cfg *config.QueueConfig) (*RabbitMQ, error) {
	log.WithField("url", "url:"+cfg.RabbitMQ.Url).Info("Connecting to RabbitMQ...")
	conn, err := amqp.Dial(cfg.RabbitMQ.Url)
	if err != nil {
		log.WithError(err).Errorf("Failed to connect to RabbitMQ: %v", err)
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		log.WithError(err).Errorf("Failed to open a channel: %v", err)
		return nil, err
	}

	log.Infof("Connected to RabbitMQ at %s", cfg.RabbitMQ.Url)

	return &RabbitMQ{
		Conn:    conn,
		Channel: channel,
		cfg:     cfg,
	}, nil
}

// Close shuts down the channel and then the connection. A channel close
// failure is reported but never skips the connection close.
func (r *RabbitMQ) Close() error {
	var firstErr error

	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			log.WithError(err).Error("Failed to close RabbitMQ channel")
			firstErr = err
		} else {
			log.Info("RabbitMQ channel closed")
		}
	}

	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			log.WithError(err).Error("Failed to close RabbitMQ connection")
			if firstErr == nil {
				firstErr = err
			}
		} else {
			log.Info("RabbitMQ connection closed")
		}
	}

	return firstErr
}

// SetupQueue declares the notification exchange and binds the email queue to it.
func (r *RabbitMQ) SetupQueue() error {
	mq := r.cfg.RabbitMQ

	err := r.Channel.ExchangeDeclare(
		mq.Exchange,
		mq.ExchangeType,
		mq.Durable,
		mq.AutoDelete,
		mq.Internal,
		mq.NoWait,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %v", err)
	}

	_, err = r.Channel.QueueDeclare(
		mq.EmailQueue,
		mq.Durable,
		mq.AutoDelete,
		mq.Exclusive,
		mq.NoWait,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare email queue: %v", err)
	}

	err = r.Channel.QueueBind(
		mq.EmailQueue,
		mq.RoutingKey,
		mq.Exchange,
		mq.NoWait,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind email queue: %v", err)
	}

	return nil
}
