package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/brave-intl/bat-ads-redeemer/redemption"
	"github.com/brave-intl/bat-ads-redeemer/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	logger := zerolog.Nop()
	writer := &fakeWriter{}
	publisher := newPublisher(writer, "redemptions", &logger)

	request := &redemption.URLRequest{
		URL:         "https://ads-serve.brave.com/v2/confirmation/payment/abc123",
		Headers:     []string{"accept: application/json"},
		Content:     `{"payload":"{\"paymentId\":\"abc123\"}"}`,
		ContentType: redemption.ContentTypeJSON,
		Method:      redemption.MethodPut,
	}
	require.NoError(t, publisher.Publish(context.Background(), request))
	require.Len(t, writer.messages, 1)

	var published redemption.URLRequest
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &published))
	assert.Equal(t, *request, published)

	_, err := uuid.FromBytes(writer.messages[0].Key)
	assert.NoError(t, err, "messages are keyed by a random uuid")

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestPublishTemporaryFailure(t *testing.T) {
	logger := zerolog.Nop()
	publisher := newPublisher(&fakeWriter{err: kafka.LeaderNotAvailable}, "redemptions", &logger)

	err := publisher.Publish(context.Background(), &redemption.URLRequest{})

	var processingErr *utils.ProcessingError
	require.True(t, errors.As(err, &processingErr))
	assert.True(t, processingErr.Temporary)
	assert.ErrorIs(t, err, kafka.LeaderNotAvailable)
}

func TestNewPublisherConfig(t *testing.T) {
	logger := zerolog.Nop()

	_, err := NewPublisher(nil, "redemptions", &logger)
	assert.ErrorIs(t, err, ErrNoBrokers)

	_, err = NewPublisher([]string{"localhost:9092"}, "", &logger)
	assert.ErrorIs(t, err, ErrNoTopic)
}

func TestBrokersFromEnv(t *testing.T) {
	original := os.Getenv("KAFKA_BROKERS")
	defer os.Setenv("KAFKA_BROKERS", original)

	os.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, BrokersFromEnv())
}
