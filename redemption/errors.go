package redemption

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brave-intl/bat-ads-redeemer/btd"
)

var (
	ErrInvalidWallet        = errors.New("wallet is not valid")
	ErrEmptyTokenBatch      = errors.New("no unblinded payment tokens to redeem")
	ErrInvalidToken         = errors.New("unblinded payment token is missing its value or public key")
	ErrSerializationFailure = errors.New("could not serialize redemption request")
	ErrNoEndpoint           = errors.New("no confirmations endpoint configured")

	ErrEmptyPayload         = btd.ErrEmptyPayload
	ErrCryptographicFailure = btd.ErrCryptographicFailure
)

// TokenError attributes a precondition failure to one token of the batch.
type TokenError struct {
	Index int
	Err   error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token %d: %s", e.Index, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// CredentialError is a failure while building the credential of the token at
// Index.
type CredentialError struct {
	Index            int
	ConfirmationType ConfirmationType
	Err              error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential for token %d (%s): %s", e.Index, e.ConfirmationType, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// CredentialErrors lists every token of a batch whose credential could not be
// built. The whole request is abandoned when it is returned; callers may drop
// the listed tokens and build again with the rest.
type CredentialErrors []*CredentialError

func (e CredentialErrors) Error() string {
	messages := make([]string, len(e))
	for i, err := range e {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("%d of the payment credentials failed: %s", len(e), strings.Join(messages, "; "))
}

// Indexes returns the batch positions of the failed tokens.
func (e CredentialErrors) Indexes() []int {
	indexes := make([]int, len(e))
	for i, err := range e {
		indexes[i] = err.Index
	}
	return indexes
}

// Is reports whether any of the failures matches target.
func (e CredentialErrors) Is(target error) bool {
	for _, err := range e {
		if errors.Is(err.Err, target) {
			return true
		}
	}
	return false
}

// As finds the first failure assignable to target.
func (e CredentialErrors) As(target interface{}) bool {
	for _, err := range e {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}

// SerializationError wraps a JSON encoding failure.
type SerializationError struct {
	What string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrSerializationFailure, e.What, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func (e *SerializationError) Is(target error) bool {
	return target == ErrSerializationFailure
}
