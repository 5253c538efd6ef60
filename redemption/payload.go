package redemption

import (
	"bytes"
	"encoding/json"
)

type payload struct {
	PaymentID string `json:"paymentId"`
}

// CreatePayload returns the message every token in a batch signs. The same
// string is embedded in the request body under "payload".
func CreatePayload(wallet Wallet) (string, error) {
	if !wallet.IsValid() {
		return "", ErrInvalidWallet
	}

	encoded, err := marshalJSON(payload{PaymentID: wallet.ID})
	if err != nil {
		return "", &SerializationError{What: "payload", Err: err}
	}
	return encoded, nil
}

// marshalJSON encodes v compactly without HTML escaping and without the
// trailing newline json.Encoder adds.
func marshalJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}
