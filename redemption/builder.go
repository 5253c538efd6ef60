package redemption

import (
	"fmt"

	"github.com/brave-intl/bat-ads-redeemer/btd"
	"github.com/brave-intl/bat-ads-redeemer/metrics"
)

const acceptHeader = "accept: application/json"

// Endpoint supplies the confirmations server host and the via header sent
// with every request to it.
type Endpoint interface {
	Host() string
	ViaHeader() string
}

// URLRequestBuilder builds the request that redeems a batch of unblinded
// payment tokens for a wallet:
//
//	PUT /v2/confirmation/payment/{paymentId}
type URLRequestBuilder struct {
	endpoint  Endpoint
	primitive btd.Primitive
	wallet    Wallet
	tokens    []UnblindedPaymentToken
	userData  UserData
}

// NewURLRequestBuilder checks the wallet and token batch before any other
// work is done. The token slice is copied and userData is snapshotted, so user
// data that cannot be encoded is rejected here.
func NewURLRequestBuilder(endpoint Endpoint, wallet Wallet, tokens []UnblindedPaymentToken, userData UserData) (*URLRequestBuilder, error) {
	if endpoint == nil {
		return nil, ErrNoEndpoint
	}
	if !wallet.IsValid() {
		return nil, ErrInvalidWallet
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyTokenBatch
	}
	for i, token := range tokens {
		if token.Value == nil || token.PublicKey == nil {
			return nil, &TokenError{Index: i, Err: ErrInvalidToken}
		}
	}

	snapshot, err := userData.Clone()
	if err != nil {
		return nil, err
	}

	return &URLRequestBuilder{
		endpoint:  endpoint,
		primitive: btd.DefaultPrimitive,
		wallet:    wallet,
		tokens:    append([]UnblindedPaymentToken(nil), tokens...),
		userData:  snapshot,
	}, nil
}

// WithPrimitive replaces the cryptographic primitive used to build
// credentials.
func (b *URLRequestBuilder) WithPrimitive(p btd.Primitive) *URLRequestBuilder {
	if p != nil {
		b.primitive = p
	}
	return b
}

// Build returns the complete request or an error; it never returns a partial
// request. It does not modify the builder and may be called concurrently.
func (b *URLRequestBuilder) Build() (*URLRequest, error) {
	payload, err := CreatePayload(b.wallet)
	if err != nil {
		return nil, err
	}
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	content, err := BuildBody(b.primitive, b.tokens, payload, b.userData)
	if err != nil {
		return nil, err
	}

	metrics.CounterRequestsBuilt.Inc()

	return &URLRequest{
		URL:         b.buildURL(),
		Headers:     b.buildHeaders(),
		Content:     content,
		ContentType: ContentTypeJSON,
		Method:      MethodPut,
	}, nil
}

func (b *URLRequestBuilder) buildURL() string {
	return fmt.Sprintf("%s/v2/confirmation/payment/%s", b.endpoint.Host(), b.wallet.ID)
}

func (b *URLRequestBuilder) buildHeaders() []string {
	return []string{
		b.endpoint.ViaHeader(),
		acceptHeader,
	}
}
