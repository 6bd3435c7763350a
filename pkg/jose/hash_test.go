package jose

import (
	"crypto"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestForAlgorithm(t *testing.T) {
	tests := []struct {
		alg     string
		want    crypto.Hash
		wantErr bool
	}{
		{alg: "RS256", want: crypto.SHA256},
		{alg: "PS384", want: crypto.SHA384},
		{alg: "ES512", want: crypto.SHA512},
		{alg: "HS256", wantErr: true},
		{alg: "none", wantErr: true},
		{alg: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.alg, func(t *testing.T) {
			got, err := DigestForAlgorithm(tt.alg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLeftmostHalfHash(t *testing.T) {
	code := "SplxlOBeZQQYbYS6WxSbIA"

	got, err := LeftmostHalfHash("RS256", code)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(code))
	want := base64.RawURLEncoding.EncodeToString(sum[:16])
	assert.Equal(t, want, got)
}

func TestLeftmostHalfHashUnknownAlgorithm(t *testing.T) {
	_, err := LeftmostHalfHash("XX999", "value")
	assert.Error(t, err)
}
