package confirmations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHost(t *testing.T) {
	assert.Equal(t, "https://ads-serve.brave.com", Endpoint{Environment: Production}.Host())
	assert.Equal(t, "https://ads-serve.bravesoftware.com", Endpoint{Environment: Staging}.Host())
	assert.Equal(t, "https://ads-serve.brave.software", Endpoint{Environment: Development}.Host())
	assert.Equal(t, "https://ads-serve.brave.com", Endpoint{}.Host())
	assert.Equal(t, "http://127.0.0.1:2416", Endpoint{Environment: Staging, HostOverride: "http://127.0.0.1:2416/"}.Host())
}

func TestViaHeader(t *testing.T) {
	assert.Equal(t, "Via: 1.0 brave, 1.1 ads-serve.brave.com (Apache/1.1)", Endpoint{}.ViaHeader())
	assert.Equal(t, "Via: 1.1 brave, 1.1 ads-serve.brave.com (Apache/1.1)", Endpoint{UncertainFuture: true}.ViaHeader())
}

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment("")
	require.NoError(t, err)
	assert.Equal(t, Production, env)

	env, err = ParseEnvironment(" Staging ")
	require.NoError(t, err)
	assert.Equal(t, Staging, env)

	_, err = ParseEnvironment("local")
	assert.ErrorIs(t, err, ErrUnknownEnvironment)
}
