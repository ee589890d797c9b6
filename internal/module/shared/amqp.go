package shared

import (
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	amqplib "github.com/streadway/amqp"
)

type Amqp struct {
	Conn             *amqplib.Connection
	Channel          *amqplib.Channel
	Exchange         string
	ExchangeType     string
	Enabled          bool
	url              string
	logger           zerolog.Logger
	keepliveInterval time.Duration
	retryCount       int
}

func NewRabbitMQ(cfg *koanf.Koanf, logger zerolog.Logger) *Amqp {
	amqp := Amqp{
		Exchange:         cfg.String("amqp.exchange"),
		ExchangeType:     cfg.String("amqp.exchange-type"),
		Enabled:          cfg.Bool("amqp.enable"),
		url:              cfg.String("amqp.url"),
		logger:           logger,
		retryCount:       cfg.Int("amqp.retry-count"),
		keepliveInterval: cfg.Duration("amqp.keeplive-interval"),
	}

	return &amqp
}

func (a *Amqp) keeplive() {
	var err error
	for {
		for i := 1; i <= a.retryCount; i++ {
			if a.Conn == nil || a.Conn.IsClosed() {
				a.Conn, err = amqplib.Dial(a.url)
				if err != nil {
					if i == a.retryCount {
						a.Close()
						a.logger.Panic().Msgf("Failed to connect to Amqp: %v. Retrying in %v...\n", err, i)
						return
					} else {
						a.logger.Warn().Msgf("Failed to connect to Amqp: %v. Retrying in %v...\n", err, i)
					}
				}
			}

			if a.Conn != nil && a.Channel != nil {
				break
			}

			a.Channel, err = a.Conn.Channel()
			if err != nil {
				a.logger.Warn().Msgf("Failed to create Channel to Amqp: %v. Retrying in %v...\n", err, i)
			} else {
				err = a.Channel.ExchangeDeclare(
					a.Exchange,
					a.ExchangeType,
					true,
					false,
					false,
					false,
					nil,
				)
				if err != nil {
					a.logger.Warn().Msgf("Failed to create Exchange to Amqp: %v. Retrying in %v...\n", err, i)
				}
				break
			}
		}

		time.Sleep(a.keepliveInterval)
	}
}

func (a *Amqp) Connect() {
	if !a.Enabled {
		a.logger.Info().Msg("Amqp disabled, verification events will not be published")
		return
	}

	var err error
	a.Conn, err = amqplib.Dial(a.url)
	if err != nil {
		a.logger.Error().Msgf("%s:%s\n", "amqp dial failed", err)
		return
	}

	a.Channel, err = a.Conn.Channel()
	if err != nil {
		a.logger.Error().Msgf("%s:%s\n", "amqp channel failed", err)
		return
	}

	err = a.Channel.ExchangeDeclare(
		a.Exchange,
		a.ExchangeType,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		a.logger.Error().Msgf("%s:%s\n", "amqp exchange declare failed", err)
		return
	}

	go a.keeplive()
}

// Publish sends a JSON payload on the configured exchange. A nil channel
// (disabled or still reconnecting) drops the event silently; events are
// best-effort by contract.
func (a *Amqp) Publish(routingKey string, body []byte) error {
	if !a.Enabled || a.Channel == nil {
		return nil
	}
	return a.Channel.Publish(
		a.Exchange,
		routingKey,
		false,
		false,
		amqplib.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (a *Amqp) Close() {
	if a.Conn != nil {
		a.Conn.Close()
	}
	if a.Channel != nil {
		a.Channel.Close()
	}
}
