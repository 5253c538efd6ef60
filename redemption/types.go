package redemption

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/brave-intl/bat-ads-redeemer/btd"
	crypto "github.com/brave-intl/challenge-bypass-ristretto-ffi"
)

const (
	ContentTypeJSON = "application/json"
	MethodPut       = "PUT"
)

// Wallet identifies the account that payment tokens are redeemed for.
type Wallet struct {
	ID        string `json:"paymentId"`
	SecretKey string `json:"secretKey,omitempty"`
}

// IsValid reports whether the wallet id can be used as a single path segment
// of the redemption url.
func (w Wallet) IsValid() bool {
	if w.ID == "" {
		return false
	}
	return !strings.ContainsAny(w.ID, "/?#%") && strings.IndexFunc(w.ID, unicode.IsSpace) == -1
}

// ConfirmationType is the ad event a payment token was earned for.
type ConfirmationType string

const (
	ConfirmationTypeClicked    ConfirmationType = "click"
	ConfirmationTypeDismissed  ConfirmationType = "dismiss"
	ConfirmationTypeViewed     ConfirmationType = "view"
	ConfirmationTypeLanded     ConfirmationType = "landed"
	ConfirmationTypeFlagged    ConfirmationType = "flag"
	ConfirmationTypeUpvoted    ConfirmationType = "upvote"
	ConfirmationTypeDownvoted  ConfirmationType = "downvote"
	ConfirmationTypeSaved      ConfirmationType = "saved"
	ConfirmationTypeConversion ConfirmationType = "conversion"
)

func (c ConfirmationType) String() string {
	return string(c)
}

// UnblindedPaymentToken is a token the client holds after issuance, together
// with the public key of the issuer that signed it.
type UnblindedPaymentToken struct {
	Value            *crypto.UnblindedToken `json:"unblindedToken"`
	PublicKey        *crypto.PublicKey      `json:"publicKey"`
	ConfirmationType ConfirmationType       `json:"confirmationType"`
}

// UserData is caller supplied metadata merged into the top level of the
// request body. It must not use the keys "paymentCredentials" or "payload".
type UserData map[string]interface{}

// Clone returns an independent snapshot of u taken through its JSON encoding,
// which is the only form in which user data reaches a request. Numbers are
// kept as json.Number so they encode again unchanged. Values that cannot be
// encoded fail here with a *SerializationError.
func (u UserData) Clone() (UserData, error) {
	clone := UserData{}
	if len(u) == 0 {
		return clone, nil
	}

	encoded, err := marshalJSON(u)
	if err != nil {
		return nil, &SerializationError{What: "user data", Err: err}
	}

	decoder := json.NewDecoder(strings.NewReader(encoded))
	decoder.UseNumber()
	if err := decoder.Decode(&clone); err != nil {
		return nil, &SerializationError{What: "user data", Err: err}
	}
	return clone, nil
}

// PaymentCredential is one entry of the "paymentCredentials" list. Fields are
// declared in key order so the encoded object has sorted keys.
type PaymentCredential struct {
	ConfirmationType ConfirmationType `json:"confirmationType"`
	Credential       *btd.Credential  `json:"credential"`
	PublicKey        string           `json:"publicKey"`
}

// URLRequest describes the outbound redemption request. It is handed to a
// transport and not used afterwards.
type URLRequest struct {
	URL         string   `json:"url"`
	Headers     []string `json:"headers"`
	Content     string   `json:"content"`
	ContentType string   `json:"content_type"`
	Method      string   `json:"method"`
}
