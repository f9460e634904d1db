package mailer

import (
	"encoding/json"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Publisher hands email messages to the notification queue. Sending is
// best-effort: a publish failure is logged and never propagated, so a lost
// email can not fail the business operation that triggered it.
type Publisher interface {
	Send(msg *models.EmailMessage)
}

type publisher struct {
	channel *amqp.Channel
	cfg     *config.RabbitMQConfig
}

func NewPublisher(channel *amqp.Channel, cfg *config.Configuration) Publisher {
	return &publisher{
		channel: channel,
		cfg:     &cfg.Queue.RabbitMQ,
	}
}

func (p *publisher) Send(msg *models.EmailMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).WithField("kind", msg.Kind).Error("Failed to marshal email message")
		return
	}

	err = p.channel.Publish(
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   msg.Timestamp,
		},
	)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"to":   msg.To,
			"kind": msg.Kind,
		}).Error("Failed to publish email message")
		return
	}

	logrus.WithFields(logrus.Fields{
		"to":          msg.To,
		"kind":        msg.Kind,
		"exchange":    p.cfg.Exchange,
		"routing_key": p.cfg.RoutingKey,
	}).Debug("Email message published")
}
