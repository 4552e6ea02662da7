package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-minimum-32-characters-long"

func TestGenerateAndValidateJWT(t *testing.T) {
	token, err := GenerateJWT("cust-1", "Acme", testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", claims.CustomerID)
	assert.Equal(t, "Acme", claims.CustomerName)
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT("cust-1", "Acme", testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "another-secret")
	assert.Error(t, err)
}

func TestValidateJWT_Expired(t *testing.T) {
	token, err := GenerateJWT("cust-1", "Acme", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token, testSecret)
	assert.Error(t, err)
}

func TestValidateJWT_MissingCustomer(t *testing.T) {
	token, err := GenerateJWT("", "Acme", testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT(token, testSecret)
	assert.EqualError(t, err, "token has no customer_id")
}

func TestValidateJWT_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{CustomerID: "cust-1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateJWT(token, testSecret)
	assert.Error(t, err)
}

func TestValidateJWT_Malformed(t *testing.T) {
	_, err := ValidateJWT("not-a-token", testSecret)
	assert.Error(t, err)
}
