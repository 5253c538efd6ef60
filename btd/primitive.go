package btd

import (
	"encoding"
	"errors"
	"fmt"

	crypto "github.com/brave-intl/challenge-bypass-ristretto-ffi"
)

var (
	ErrCryptographicFailure = errors.New("blind signature library reported an internal error")
	ErrNilToken             = errors.New("unblinded token is nil")
)

// Operations reported in a CryptoError.
const (
	OpDeriveVerificationKey = "derive_verification_key"
	OpSign                  = "sign"
	OpPreimage              = "preimage"
	OpEncodeBase64          = "encode_base64"
)

// CryptoError is returned when one step of credential construction fails
// inside the blind signature library.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, ErrCryptographicFailure)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrCryptographicFailure, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// Is reports every CryptoError as an ErrCryptographicFailure.
func (e *CryptoError) Is(target error) bool {
	return target == ErrCryptographicFailure
}

// Primitive is the set of token operations needed to redeem an unblinded
// token. Every call returns its own error; nothing is signalled out of band.
type Primitive interface {
	DeriveVerificationKey(token *crypto.UnblindedToken) (*crypto.VerificationKey, error)
	Sign(key *crypto.VerificationKey, message string) (*crypto.VerificationSignature, error)
	Preimage(token *crypto.UnblindedToken) (*crypto.TokenPreimage, error)
	EncodeBase64(value encoding.TextMarshaler) (string, error)
}

// Ristretto implements Primitive with challenge-bypass-ristretto. It holds no
// state and is safe for concurrent use.
type Ristretto struct{}

// DefaultPrimitive is used when no other Primitive is configured.
var DefaultPrimitive Primitive = Ristretto{}

func (Ristretto) DeriveVerificationKey(token *crypto.UnblindedToken) (*crypto.VerificationKey, error) {
	if token == nil {
		return nil, &CryptoError{Op: OpDeriveVerificationKey, Err: ErrNilToken}
	}
	// Derivation cannot fail on its own; a bad token surfaces in Sign.
	return token.DeriveVerificationKey(), nil
}

func (Ristretto) Sign(key *crypto.VerificationKey, message string) (*crypto.VerificationSignature, error) {
	if key == nil {
		return nil, &CryptoError{Op: OpSign, Err: errors.New("verification key is nil")}
	}
	sig, err := key.Sign(message)
	if err != nil {
		return nil, &CryptoError{Op: OpSign, Err: err}
	}
	if sig == nil {
		return nil, &CryptoError{Op: OpSign}
	}
	return sig, nil
}

func (Ristretto) Preimage(token *crypto.UnblindedToken) (*crypto.TokenPreimage, error) {
	if token == nil {
		return nil, &CryptoError{Op: OpPreimage, Err: ErrNilToken}
	}
	// A bad preimage surfaces when it is encoded.
	return token.Preimage(), nil
}

// EncodeBase64 relies on the library's text marshalers, which emit standard
// base64.
func (Ristretto) EncodeBase64(value encoding.TextMarshaler) (string, error) {
	text, err := value.MarshalText()
	if err != nil {
		return "", &CryptoError{Op: OpEncodeBase64, Err: err}
	}
	if len(text) == 0 {
		return "", &CryptoError{Op: OpEncodeBase64, Err: errors.New("empty encoding")}
	}
	return string(text), nil
}
