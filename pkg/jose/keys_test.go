package jose

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSigningCredential(t *testing.T) {
	key := testRSAKey(t)

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))

	credential, err := LoadSigningCredential(path, "kid-1")
	require.NoError(t, err)

	assert.Equal(t, "kid-1", credential.KeyID)
	assert.Equal(t, AlgRS256, credential.Algorithm)
	assert.True(t, credential.SupportsSigning())
}

func TestLoadSigningCredentialErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.pem")
			},
		},
		{
			name: "not a key",
			path: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "junk.pem")
				require.NoError(t, os.WriteFile(path, []byte("junk"), 0o600))
				return path
			},
		},
		{
			name: "empty file",
			path: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "empty.pem")
				require.NoError(t, os.WriteFile(path, nil, 0o600))
				return path
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSigningCredential(tt.path(t), "kid")
			assert.Error(t, err)
		})
	}
}
