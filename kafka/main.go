package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brave-intl/bat-ads-redeemer/metrics"
	"github.com/brave-intl/bat-ads-redeemer/redemption"
	"github.com/brave-intl/bat-ads-redeemer/utils"
	batgo_kafka "github.com/brave-intl/bat-go/utils/kafka"
	uuid "github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoBrokers = errors.New("no kafka brokers configured")
	ErrNoTopic   = errors.New("no kafka topic configured")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes built redemption requests to a topic for another service
// to send.
type Publisher struct {
	producer messageWriter
	topic    string
	logger   *zerolog.Logger
}

// BrokersFromEnv reads the comma separated KAFKA_BROKERS variable.
func BrokersFromEnv() []string {
	var brokers []string
	for _, broker := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// NewPublisher returns a Publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string, logger *zerolog.Logger) (*Publisher, error) {
	if len(brokers) < 1 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, ErrNoTopic
	}

	kafkaLogger := logrus.New()
	kafkaLogger.SetLevel(logrus.WarnLevel)

	logger.Info().Msg(fmt.Sprintf("Publishing redemption requests to kafka topic %s using brokers %s", topic, brokers))
	producer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Dialer:       getDialer(logger),
		ErrorLogger:  kafkaLogger,
		BatchTimeout: 50 * time.Millisecond,
	})
	return newPublisher(producer, topic, logger), nil
}

func newPublisher(producer messageWriter, topic string, logger *zerolog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish encodes request as JSON and emits it. Failures are returned as a
// *utils.ProcessingError.
func (p *Publisher) Publish(ctx context.Context, request *redemption.URLRequest) error {
	message, err := json.Marshal(request)
	if err != nil {
		return utils.ProcessingErrorFromErrorWithMessage(err, "Failed to encode redemption request", p.logger)
	}

	if err := Emit(ctx, p.producer, p.topic, message, p.logger); err != nil {
		metrics.CounterPublishErrors.Inc()
		return utils.ProcessingErrorFromErrorWithMessage(
			err,
			fmt.Sprintf("Failed to emit redemption request to topic %s", p.topic),
			p.logger,
		)
	}
	metrics.CounterPublished.Inc()
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}

// Emit sends a message over the Kafka interface.
func Emit(ctx context.Context, producer messageWriter, topic string, message []byte, logger *zerolog.Logger) error {
	logger.Info().Msg(fmt.Sprintf("Beginning data emission for topic %s", topic))

	messageKey := uuid.New()
	marshaledMessageKey, err := messageKey.MarshalBinary()
	if err != nil {
		logger.Error().Msg(fmt.Sprintf("Failed to marshal UUID into binary. Using default key value. %e", err))
		marshaledMessageKey = []byte("default")
	}

	err = producer.WriteMessages(
		ctx,
		kafka.Message{
			Value: message,
			Key:   marshaledMessageKey,
		},
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to write messages")
		return err
	}

	logger.Info().Msg("Data emitted")
	return nil
}

func getDialer(logger *zerolog.Logger) *kafka.Dialer {
	var dialer *kafka.Dialer
	if os.Getenv("ENV") != "local" {
		tlsDialer, _, err := batgo_kafka.TLSDialer()
		dialer = tlsDialer
		if err != nil {
			logger.Error().Msg(fmt.Sprintf("Failed to initialize TLS dialer: %e", err))
		}
	}
	return dialer
}
