package btd

import (
	"errors"
	"fmt"

	crypto "github.com/brave-intl/challenge-bypass-ristretto-ffi"
)

var (
	ErrInvalidMAC          = errors.New("binding MAC didn't match derived MAC")
	ErrInvalidBatchProof   = errors.New("new batch proof for signed tokens is invalid")
	ErrMalformedCredential = errors.New("credential is missing a signature or preimage")
)

// ApproveTokens applies the issuer's secret key to each blinded token.
// It returns the signed tokens along with a batch DLEQ proof.
func ApproveTokens(blindedTokens []*crypto.BlindedToken, key *crypto.SigningKey) ([]*crypto.SignedToken, *crypto.BatchDLEQProof, error) {
	var err error

	signedTokens := make([]*crypto.SignedToken, len(blindedTokens))
	for i, blindedToken := range blindedTokens {
		signedTokens[i], err = key.Sign(blindedToken)
		if err != nil {
			return []*crypto.SignedToken{}, nil, err
		}
	}

	proof, err := crypto.NewBatchDLEQProof(blindedTokens, signedTokens, key)
	if err != nil {
		return []*crypto.SignedToken{}, nil, err
	}

	ok, err := proof.Verify(blindedTokens, signedTokens, key.PublicKey())
	if err != nil {
		return []*crypto.SignedToken{}, nil, err
	}
	if !ok {
		return []*crypto.SignedToken{}, nil, ErrInvalidBatchProof
	}

	return signedTokens, proof, nil
}

// VerifyTokenRedemption checks a preimage and signature over payload against
// each of keys in turn and returns the key that verified. Keeping a list of
// keys lets the issuer rotate without invalidating outstanding tokens.
func VerifyTokenRedemption(preimage *crypto.TokenPreimage, signature *crypto.VerificationSignature, payload string, keys []*crypto.SigningKey) (*crypto.SigningKey, error) {
	for _, key := range keys {
		// the server rederives the unblinded token from the client's preimage
		unblindedToken := key.RederiveUnblindedToken(preimage)

		sharedKey := unblindedToken.DeriveVerificationKey()

		valid, err := sharedKey.Verify(signature, payload)
		if err != nil {
			return nil, err
		}
		if valid {
			return key, nil
		}
	}

	return nil, fmt.Errorf("%w, payload: %s", ErrInvalidMAC, payload)
}

// VerifyCredential decodes the base64 fields of a Credential and verifies it
// with VerifyTokenRedemption.
func VerifyCredential(credential *Credential, payload string, keys []*crypto.SigningKey) (*crypto.SigningKey, *crypto.TokenPreimage, error) {
	if credential == nil || credential.Signature == "" || credential.TokenPreimage == "" {
		return nil, nil, ErrMalformedCredential
	}

	preimage := &crypto.TokenPreimage{}
	if err := preimage.UnmarshalText([]byte(credential.TokenPreimage)); err != nil {
		return nil, nil, fmt.Errorf("could not decode token preimage: %w", err)
	}

	signature := &crypto.VerificationSignature{}
	if err := signature.UnmarshalText([]byte(credential.Signature)); err != nil {
		return nil, nil, fmt.Errorf("could not decode verification signature: %w", err)
	}

	key, err := VerifyTokenRedemption(preimage, signature, payload, keys)
	if err != nil {
		return nil, nil, err
	}
	return key, preimage, nil
}
