package test

import (
	"github.com/brave-intl/bat-ads-redeemer/btd"
	crypto "github.com/brave-intl/challenge-bypass-ristretto-ffi"
)

// UnblindedTokens issues n tokens with key and returns them unblinded, as a
// client would hold them after a successful issuance.
func UnblindedTokens(key *crypto.SigningKey, n int) ([]*crypto.UnblindedToken, error) {
	tokens := make([]*crypto.Token, n)
	blindedTokens := make([]*crypto.BlindedToken, n)
	for i := range tokens {
		token, err := crypto.RandomToken()
		if err != nil {
			return nil, err
		}
		tokens[i] = token
		blindedTokens[i] = token.Blind()
	}

	signedTokens, proof, err := btd.ApproveTokens(blindedTokens, key)
	if err != nil {
		return nil, err
	}

	return proof.VerifyAndUnblind(tokens, blindedTokens, signedTokens, key.PublicKey())
}
