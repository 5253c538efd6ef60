package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// ProcessingError records why handing a redemption request to a downstream
// system failed, and whether trying again later could help.
type ProcessingError struct {
	Cause          error
	FailureMessage string
	Temporary      bool
	Backoff        time.Duration
}

// Error makes ProcessingError an error
func (e ProcessingError) Error() string {
	msg := fmt.Sprintf("error: %s", e.FailureMessage)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause)
	}
	return msg
}

func (e ProcessingError) Unwrap() error {
	return e.Cause
}

func ProcessingErrorFromErrorWithMessage(
	err error,
	message string,
	logger *zerolog.Logger,
) *ProcessingError {
	temporary, backoff := ErrorIsTemporary(err, logger)
	return &ProcessingError{
		Cause:          err,
		FailureMessage: message,
		Temporary:      temporary,
		Backoff:        backoff,
	}
}

// ErrorIsTemporary reports whether err is transient, with a suggested backoff.
func ErrorIsTemporary(err error, logger *zerolog.Logger) (bool, time.Duration) {
	var kafkaErr kafka.Error
	if errors.As(err, &kafkaErr) && kafkaErr.Temporary() {
		logger.Error().Err(err).Msg("Temporary message processing failure")
		return true, 1 * time.Minute
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Error().Err(err).Msg("Temporary message processing failure")
		return true, 10 * time.Second
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logger.Error().Err(err).Msg("Temporary message processing failure")
		return true, 10 * time.Second
	}

	return false, 1 * time.Millisecond
}
