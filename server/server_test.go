package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/brave-intl/bat-ads-redeemer/confirmations"
	"github.com/brave-intl/bat-ads-redeemer/redemption"
	"github.com/brave-intl/bat-ads-redeemer/transport"
	"github.com/brave-intl/bat-ads-redeemer/utils/test"
	crypto "github.com/brave-intl/challenge-bypass-ristretto-ffi"
	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var handler http.Handler

var signingKey *crypto.SigningKey

func init() {
	os.Setenv("ENV", "local")

	var err error
	signingKey, err = crypto.RandomSigningKey()
	if err != nil {
		panic(err)
	}

	srv := &Server{MaxTokens: 10}
	srv.AddSigningKey(signingKey)

	handler = chi.ServerBaseContext(srv.setupRouter(SetupLogger(context.Background())))
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(handler)
	defer server.Close()
	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Received non-200 response: %d\n", resp.StatusCode)
	}
	expected := "."
	actual, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if expected != string(actual) {
		t.Errorf("Expected the message '%s'\n", expected)
	}
}

func paymentTokens(t *testing.T, key *crypto.SigningKey, n int) []redemption.UnblindedPaymentToken {
	unblindedTokens, err := test.UnblindedTokens(key, n)
	require.NoError(t, err)

	tokens := make([]redemption.UnblindedPaymentToken, 0, n)
	for _, token := range unblindedTokens {
		tokens = append(tokens, redemption.UnblindedPaymentToken{
			Value:            token,
			PublicKey:        key.PublicKey(),
			ConfirmationType: redemption.ConfirmationTypeViewed,
		})
	}
	return tokens
}

func buildRequest(t *testing.T, host string, walletID string, tokens []redemption.UnblindedPaymentToken) *redemption.URLRequest {
	endpoint := confirmations.Endpoint{HostOverride: host}
	builder, err := redemption.NewURLRequestBuilder(endpoint, redemption.Wallet{ID: walletID}, tokens, redemption.UserData{
		"platform": "linux",
	})
	require.NoError(t, err)

	request, err := builder.Build()
	require.NoError(t, err)
	return request
}

func TestRedeemPaymentTokens(t *testing.T) {
	server := httptest.NewServer(handler)
	defer server.Close()

	client := transport.New(5*time.Second, nil)
	request := buildRequest(t, server.URL, test.RandomString(), paymentTokens(t, signingKey, 3))

	resp, err := client.Send(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var redeemed paymentRedeemResponse
	require.NoError(t, json.Unmarshal(resp.Body, &redeemed))
	assert.Equal(t, 3, redeemed.Redeemed)

	// Sending the same request again is a double spend.
	resp, err = client.Send(context.Background(), request)
	var statusErr *transport.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRedeemPaymentTokensWrongPayment(t *testing.T) {
	server := httptest.NewServer(handler)
	defer server.Close()

	request := buildRequest(t, server.URL, "wallet-a", paymentTokens(t, signingKey, 1))
	request.URL = server.URL + "/v2/confirmation/payment/wallet-b"

	resp, err := transport.New(5*time.Second, nil).Send(context.Background(), request)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRedeemPaymentTokensUnknownIssuer(t *testing.T) {
	server := httptest.NewServer(handler)
	defer server.Close()

	otherKey, err := crypto.RandomSigningKey()
	require.NoError(t, err)

	request := buildRequest(t, server.URL, test.RandomString(), paymentTokens(t, otherKey, 1))
	resp, err := transport.New(5*time.Second, nil).Send(context.Background(), request)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRedeemPaymentTokensDuplicateInBatch(t *testing.T) {
	server := httptest.NewServer(handler)
	defer server.Close()

	tokens := paymentTokens(t, signingKey, 1)
	tokens = append(tokens, tokens[0])

	request := buildRequest(t, server.URL, test.RandomString(), tokens)
	resp, err := transport.New(5*time.Second, nil).Send(context.Background(), request)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRedeemPaymentTokensMalformed(t *testing.T) {
	server := httptest.NewServer(handler)
	defer server.Close()

	url := server.URL + "/v2/confirmation/payment/abc123"
	for _, body := range []string{
		`not json`,
		`{"paymentCredentials":[],"payload":"{\"paymentId\":\"abc123\"}"}`,
	} {
		req, err := http.NewRequest(http.MethodPut, url, bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Add("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestRedeemPaymentTokensTooMany(t *testing.T) {
	server := httptest.NewServer(handler)
	defer server.Close()

	request := buildRequest(t, server.URL, test.RandomString(), paymentTokens(t, signingKey, 11))
	resp, err := transport.New(5*time.Second, nil).Send(context.Background(), request)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoadSigningKeys(t *testing.T) {
	encoded, err := signingKey.MarshalText()
	require.NoError(t, err)

	srv := &Server{SigningKeys: []string{string(encoded)}}
	require.NoError(t, srv.LoadSigningKeys())
	assert.Len(t, srv.keys, 1)

	assert.ErrorIs(t, (&Server{}).LoadSigningKeys(), ErrNoSigningKeys)
	assert.Error(t, (&Server{SigningKeys: []string{"not a key"}}).LoadSigningKeys())
}

func TestRedeemTokensIsAtomic(t *testing.T) {
	srv := &Server{}
	_, logger := SetupLogger(context.Background())
	srv.Logger = logger
	require.NoError(t, srv.initRedemptions())

	require.NoError(t, srv.redeemTokens("p1", []string{"a"}))

	err := srv.redeemTokens("p2", []string{"b", "a"})
	assert.ErrorIs(t, err, errDuplicateRedemption)

	// "b" was not marked since the batch was rejected.
	assert.NoError(t, srv.redeemTokens("p3", []string{"b"}))
}
