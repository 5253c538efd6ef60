package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/brave-intl/bat-ads-redeemer/btd"
	"github.com/brave-intl/bat-ads-redeemer/metrics"
	"github.com/brave-intl/bat-ads-redeemer/redemption"
	"github.com/brave-intl/bat-go/middleware"
	"github.com/brave-intl/bat-go/utils/handlers"
	crypto "github.com/brave-intl/challenge-bypass-ristretto-ffi"
	"github.com/go-chi/chi"
	uuid "github.com/satori/go.uuid"
)

var errDuplicateRedemption = errors.New("duplicate redemption")

type paymentCredential struct {
	ConfirmationType string            `json:"confirmationType"`
	Credential       *btd.Credential   `json:"credential"`
	PublicKey        *crypto.PublicKey `json:"publicKey"`
}

type paymentRedeemRequest struct {
	PaymentCredentials []paymentCredential `json:"paymentCredentials"`
	Payload            string              `json:"payload"`
}

type paymentRedeemResponse struct {
	PaymentID string `json:"paymentId"`
	Redeemed  int    `json:"redeemed"`
}

func (c *Server) paymentRedeemHandler(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	paymentID := chi.URLParam(r, "paymentId")
	if paymentID == "" {
		return &handlers.AppError{
			Message: "Missing payment id",
			Code:    http.StatusBadRequest,
		}
	}

	var request paymentRedeemRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize)).Decode(&request); err != nil {
		metrics.CounterRedeemErrorFormat.Inc()
		c.Logger.Debug("Could not parse the request body")
		return handlers.WrapError(err, "Could not parse the request body", http.StatusBadRequest)
	}

	if len(request.PaymentCredentials) == 0 {
		metrics.CounterRedeemErrorFormat.Inc()
		c.Logger.Debug("Empty request")
		return &handlers.AppError{
			Message: "Empty request",
			Code:    http.StatusBadRequest,
		}
	}

	if c.MaxTokens > 0 && len(request.PaymentCredentials) > c.MaxTokens {
		metrics.CounterRedeemErrorFormat.Inc()
		return &handlers.AppError{
			Message: fmt.Sprintf("Too many payment credentials, at most %d are accepted", c.MaxTokens),
			Code:    http.StatusBadRequest,
		}
	}

	expectedPayload, err := redemption.CreatePayload(redemption.Wallet{ID: paymentID})
	if err != nil || request.Payload != expectedPayload {
		metrics.CounterRedeemErrorFormat.Inc()
		c.Logger.Debugf("Payload does not match payment id %s", paymentID)
		return &handlers.AppError{
			Message: "Payload does not match payment id",
			Code:    http.StatusBadRequest,
		}
	}

	redemptionIDs := make([]string, 0, len(request.PaymentCredentials))
	for i, paymentCredential := range request.PaymentCredentials {
		metrics.CounterRedeemTotal.Inc()

		keys, err := c.keysForPublicKey(paymentCredential.PublicKey)
		if err != nil {
			metrics.CounterRedeemErrorVerify.Inc()
			c.Logger.Errorf("Payment credential %d: %s", i, err)
			return &handlers.AppError{
				Message: fmt.Sprintf("Payment credential %d: unknown issuer", i),
				Code:    http.StatusBadRequest,
			}
		}

		_, preimage, err := btd.VerifyCredential(paymentCredential.Credential, request.Payload, keys)
		if err != nil {
			metrics.CounterRedeemErrorVerify.Inc()
			c.Logger.Debugf("Payment credential %d: could not verify: %s", i, err)
			return &handlers.AppError{
				Message: fmt.Sprintf("Payment credential %d: could not verify that token redemption is valid", i),
				Code:    http.StatusBadRequest,
			}
		}

		id, err := redemptionID(paymentCredential.PublicKey, preimage)
		if err != nil {
			return &handlers.AppError{
				Cause:   err,
				Message: "Could not mark token redemption",
				Code:    http.StatusInternalServerError,
			}
		}
		redemptionIDs = append(redemptionIDs, id)
	}

	if err := c.redeemTokens(paymentID, redemptionIDs); err != nil {
		if errors.Is(err, errDuplicateRedemption) {
			metrics.CounterDoubleSpend.Inc()
			return &handlers.AppError{
				Message: err.Error(),
				Code:    http.StatusConflict,
			}
		}
		return &handlers.AppError{
			Cause:   err,
			Message: "Could not mark token redemption",
			Code:    http.StatusInternalServerError,
		}
	}

	metrics.CounterRedeemSuccess.Add(float64(len(redemptionIDs)))
	c.Logger.Infof("Redeemed %d payment tokens for %s", len(redemptionIDs), paymentID)

	response := paymentRedeemResponse{PaymentID: paymentID, Redeemed: len(redemptionIDs)}
	return handlers.RenderContent(r.Context(), response, w, http.StatusOK)
}

// keysForPublicKey returns the signing keys whose public key matches.
func (c *Server) keysForPublicKey(publicKey *crypto.PublicKey) ([]*crypto.SigningKey, error) {
	if publicKey == nil {
		return nil, errors.New("missing public key")
	}
	wanted, err := publicKey.MarshalText()
	if err != nil {
		return nil, err
	}

	var keys []*crypto.SigningKey
	for _, key := range c.keys {
		encoded, err := key.PublicKey().MarshalText()
		if err != nil {
			return nil, err
		}
		if string(encoded) == string(wanted) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no signing key for public key %s", wanted)
	}
	return keys, nil
}

// redemptionID is a UUIDv5 of the preimage in a namespace derived from the
// issuer's public key.
func redemptionID(publicKey *crypto.PublicKey, preimage *crypto.TokenPreimage) (string, error) {
	publicKeyText, err := publicKey.MarshalText()
	if err != nil {
		return "", err
	}
	preimageText, err := preimage.MarshalText()
	if err != nil {
		return "", err
	}
	issuerNamespace := uuid.NewV5(uuid.NamespaceOID, string(publicKeyText))
	return uuid.NewV5(issuerNamespace, string(preimageText)).String(), nil
}

// redeemTokens marks every id as spent, or none of them if any was spent
// already.
func (c *Server) redeemTokens(paymentID string, redemptionIDs []string) error {
	c.redeemLock.Lock()
	defer c.redeemLock.Unlock()

	seen := make(map[string]bool, len(redemptionIDs))
	for _, id := range redemptionIDs {
		if _, found := c.redemptions.Get(id); found || seen[id] {
			c.Logger.Errorf("Duplicate redemption %s", id)
			return fmt.Errorf("%w: %s", errDuplicateRedemption, id)
		}
		seen[id] = true
	}

	for _, id := range redemptionIDs {
		c.redemptions.SetDefault(id, paymentID)
	}
	return nil
}

func (c *Server) paymentRouterV2() chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodPut, "/{paymentId}", middleware.InstrumentHandler("RedeemPaymentTokens", handlers.AppHandler(c.paymentRedeemHandler)))
	return r
}
