package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brave-intl/bat-ads-redeemer/metrics"
	"github.com/brave-intl/bat-ads-redeemer/redemption"
	"github.com/rs/zerolog"
)

var (
	maxResponseSize = int64(1024 * 1024)

	ErrNilRequest       = errors.New("no redemption request to send")
	ErrMalformedHeader  = errors.New("header is not of the form \"name: value\"")
	ErrResponseTooLarge = errors.New("response body too large")
)

// StatusError is returned for any non 2xx response. The body is kept raw.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("confirmations server responded with %d", e.StatusCode)
}

// Response is what came back; parsing it is left to the caller.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client sends redemption requests once each. It does not retry.
type Client struct {
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// New returns a Client with the given request timeout.
func New(timeout time.Duration, logger *zerolog.Logger) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// NewHTTPRequest converts the descriptor into an *http.Request.
func NewHTTPRequest(ctx context.Context, request *redemption.URLRequest) (*http.Request, error) {
	if request == nil {
		return nil, ErrNilRequest
	}

	req, err := http.NewRequestWithContext(ctx, request.Method, request.URL, strings.NewReader(request.Content))
	if err != nil {
		return nil, err
	}

	for _, header := range request.Headers {
		name, value, err := splitHeader(header)
		if err != nil {
			return nil, err
		}
		req.Header.Add(name, value)
	}
	if request.ContentType != "" {
		req.Header.Set("Content-Type", request.ContentType)
	}
	return req, nil
}

func splitHeader(header string) (string, string, error) {
	i := strings.Index(header, ":")
	if i <= 0 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedHeader, header)
	}
	return strings.TrimSpace(header[:i]), strings.TrimSpace(header[i+1:]), nil
}

// Send performs the request described by request.
func (c *Client) Send(ctx context.Context, request *redemption.URLRequest) (*Response, error) {
	logger := c.logger()

	req, err := NewHTTPRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("Sending redemption request")
	resp, err := httpClient.Do(req)
	if err != nil {
		metrics.CounterSendErrors.Inc()
		logger.Error().Err(err).Msg("Failed to send redemption request")
		return nil, err
	}
	defer resp.Body.Close()

	metrics.CounterRequestsSent.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body, err := ioutil.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read response body")
		return nil, err
	}
	if int64(len(body)) > maxResponseSize {
		return nil, ErrResponseTooLarge
	}

	response := &Response{StatusCode: resp.StatusCode, Body: body}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn().Int("status", resp.StatusCode).Msg("Redemption request was not accepted")
		return response, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	logger.Info().Int("status", resp.StatusCode).Msg("Redemption request accepted")
	return response, nil
}

func (c *Client) logger() *zerolog.Logger {
	if c.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return c.Logger
}
