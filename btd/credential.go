package btd

import (
	"errors"

	crypto "github.com/brave-intl/challenge-bypass-ristretto-ffi"
)

var ErrEmptyPayload = errors.New("redemption payload is empty")

// Credential proves ownership of one unblinded token: a signature over the
// redemption payload made with the token's verification key, and the token
// preimage so the server can rederive that key.
type Credential struct {
	Signature     string `json:"signature"`
	TokenPreimage string `json:"t"`
}

// BuildCredential signs payload with the verification key derived from token.
// It stops at the first failing step and returns the error; a partially
// built credential is never returned.
func BuildCredential(p Primitive, token *crypto.UnblindedToken, payload string) (*Credential, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	if p == nil {
		p = DefaultPrimitive
	}

	verificationKey, err := p.DeriveVerificationKey(token)
	if err != nil {
		return nil, asCryptoError(OpDeriveVerificationKey, err)
	}

	signature, err := p.Sign(verificationKey, payload)
	if err != nil {
		return nil, asCryptoError(OpSign, err)
	}

	signatureBase64, err := p.EncodeBase64(signature)
	if err != nil {
		return nil, asCryptoError(OpEncodeBase64, err)
	}

	preimage, err := p.Preimage(token)
	if err != nil {
		return nil, asCryptoError(OpPreimage, err)
	}

	preimageBase64, err := p.EncodeBase64(preimage)
	if err != nil {
		return nil, asCryptoError(OpEncodeBase64, err)
	}

	return &Credential{
		Signature:     signatureBase64,
		TokenPreimage: preimageBase64,
	}, nil
}

// asCryptoError keeps errors from other Primitive implementations inside the
// cryptographic failure taxonomy.
func asCryptoError(op string, err error) error {
	var cryptoErr *CryptoError
	if errors.As(err, &cryptoErr) {
		return err
	}
	return &CryptoError{Op: op, Err: err}
}
