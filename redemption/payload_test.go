package redemption

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePayload(t *testing.T) {
	payload, err := CreatePayload(Wallet{ID: "abc123", SecretKey: "secret"})
	require.NoError(t, err)
	assert.Equal(t, `{"paymentId":"abc123"}`, payload)
}

func TestCreatePayloadInvalidWallet(t *testing.T) {
	_, err := CreatePayload(Wallet{})
	assert.ErrorIs(t, err, ErrInvalidWallet)
}

func TestWalletIsValid(t *testing.T) {
	assert.True(t, Wallet{ID: "27a39b2f-9b2e-4eb0-bbb2-2f84447496e7"}.IsValid())
	assert.False(t, Wallet{}.IsValid())
	assert.False(t, Wallet{ID: "a/b"}.IsValid())
	assert.False(t, Wallet{ID: "a\tb"}.IsValid())
	assert.False(t, Wallet{ID: "a%2Fb"}.IsValid())
}

func TestUserDataClone(t *testing.T) {
	nested := map[string]interface{}{"k": "v"}
	locale := map[string]string{"locale": "en-US"}
	counts := []int{1, 2}
	weights := []float64{0.5, 2}
	names := []string{"x"}
	original := UserData{
		"list":    []interface{}{nested},
		"nested":  UserData{"inner": "value"},
		"locale":  locale,
		"counts":  counts,
		"weights": weights,
		"names":   names,
		"big":     int64(9007199254740993),
	}

	clone, err := original.Clone()
	require.NoError(t, err)

	nested["k"] = "changed"
	original["nested"].(UserData)["inner"] = "changed"
	locale["locale"] = "changed"
	counts[0] = 99
	weights[0] = 99
	names[0] = "changed"
	original["added"] = true

	encoded, err := marshalJSON(clone)
	require.NoError(t, err)
	assert.Equal(t, `{"big":9007199254740993,"counts":[1,2],"list":[{"k":"v"}],"locale":{"locale":"en-US"},"names":["x"],"nested":{"inner":"value"},"weights":[0.5,2]}`, encoded)

	empty, err := UserData(nil).Clone()
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestUserDataCloneUnencodable(t *testing.T) {
	for name, value := range map[string]interface{}{
		"nan":     math.NaN(),
		"channel": make(chan int),
	} {
		clone, err := UserData{"x": value}.Clone()
		assert.Nil(t, clone, name)
		assert.ErrorIs(t, err, ErrSerializationFailure, name)

		var serializationErr *SerializationError
		require.True(t, errors.As(err, &serializationErr), name)
		assert.Equal(t, "user data", serializationErr.What)
	}
}
