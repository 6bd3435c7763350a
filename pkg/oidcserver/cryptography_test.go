package oidcserver

import (
	"net/http"
	"testing"

	"oidcop/pkg/jose"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptographyDocument(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.EncryptingCredentials = []*jose.Credential{
			jose.NewEncryptingCredential(testSigningKey(t), "enc-key"),
		}
	})

	w := env.get(DefaultCryptographyEndpointPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	doc := decodeJSON(t, w.Body.Bytes())
	keys, ok := doc["keys"].([]any)
	require.True(t, ok, "document has no keys array: %s", w.Body.String())
	require.Len(t, keys, 2)

	sig := keys[0].(map[string]any)
	assert.Equal(t, "RSA", sig["kty"])
	assert.Equal(t, "sig", sig["use"])
	assert.Equal(t, "RS256", sig["alg"])
	assert.Equal(t, "test-key", sig["kid"])
	assert.NotEmpty(t, sig["n"])
	assert.NotEmpty(t, sig["e"])
	assert.NotContains(t, sig, "d")

	enc := keys[1].(map[string]any)
	assert.Equal(t, "enc", enc["use"])
	assert.Equal(t, "enc-key", enc["kid"])
}

func TestCryptographySkipsUnsupportedCredentials(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		// An encrypting algorithm on the signing list cannot be published
		// as a signature key and is skipped, not fatal.
		o.SigningCredentials = append(o.SigningCredentials,
			jose.NewEncryptingCredential(testSigningKey(t), "wrong-use"))
	})

	w := env.get(DefaultCryptographyEndpointPath)
	require.Equal(t, http.StatusOK, w.Code)

	doc := decodeJSON(t, w.Body.Bytes())
	keys := doc["keys"].([]any)
	require.Len(t, keys, 1)
	assert.Equal(t, "test-key", keys[0].(map[string]any)["kid"])
}

func TestCryptographyRejectsPost(t *testing.T) {
	env := newTestEnv(t)

	w := env.postForm(DefaultCryptographyEndpointPath, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	doc := decodeJSON(t, w.Body.Bytes())
	assert.Equal(t, "invalid_request", doc["error"])
}
