package redemption

import (
	"errors"

	"github.com/brave-intl/bat-ads-redeemer/btd"
	"github.com/brave-intl/bat-ads-redeemer/metrics"
)

// CreatePaymentCredentials builds one PaymentCredential per token, in input
// order, all signing the same payload. Any token that fails is reported in a
// CredentialErrors and no credentials are returned.
func CreatePaymentCredentials(p btd.Primitive, tokens []UnblindedPaymentToken, payload string) ([]PaymentCredential, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	if p == nil {
		p = btd.DefaultPrimitive
	}

	var failed CredentialErrors
	paymentCredentials := make([]PaymentCredential, 0, len(tokens))
	for i, token := range tokens {
		paymentCredential, err := createPaymentCredential(p, token, payload)
		if err != nil {
			var cryptoErr *btd.CryptoError
			if errors.As(err, &cryptoErr) {
				metrics.CounterCredentialErrors.WithLabelValues(cryptoErr.Op).Inc()
			}
			failed = append(failed, &CredentialError{
				Index:            i,
				ConfirmationType: token.ConfirmationType,
				Err:              err,
			})
			continue
		}
		paymentCredentials = append(paymentCredentials, paymentCredential)
	}

	if len(failed) > 0 {
		return nil, failed
	}
	return paymentCredentials, nil
}

func createPaymentCredential(p btd.Primitive, token UnblindedPaymentToken, payload string) (PaymentCredential, error) {
	if token.PublicKey == nil {
		return PaymentCredential{}, ErrInvalidToken
	}

	credential, err := btd.BuildCredential(p, token.Value, payload)
	if err != nil {
		return PaymentCredential{}, err
	}

	publicKey, err := p.EncodeBase64(token.PublicKey)
	if err != nil {
		var cryptoErr *btd.CryptoError
		if !errors.As(err, &cryptoErr) {
			err = &btd.CryptoError{Op: btd.OpEncodeBase64, Err: err}
		}
		return PaymentCredential{}, err
	}

	return PaymentCredential{
		ConfirmationType: token.ConfirmationType,
		Credential:       credential,
		PublicKey:        publicKey,
	}, nil
}

// BuildBody returns the JSON request body: the payment credentials, the
// payload, and every top level key of userData. userData is merged last.
func BuildBody(p btd.Primitive, tokens []UnblindedPaymentToken, payload string, userData UserData) (string, error) {
	paymentCredentials, err := CreatePaymentCredentials(p, tokens, payload)
	if err != nil {
		return "", err
	}

	body := make(map[string]interface{}, len(userData)+2)
	body["paymentCredentials"] = paymentCredentials
	body["payload"] = payload
	for k, v := range userData {
		body[k] = v
	}

	content, err := marshalJSON(body)
	if err != nil {
		return "", &SerializationError{What: "body", Err: err}
	}
	return content, nil
}
