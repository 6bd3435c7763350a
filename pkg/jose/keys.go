package jose

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
)

// LoadSigningCredential reads an RSA private key from a PEM file and wraps
// it as an RS256 signing credential.
func LoadSigningCredential(path, keyID string) (*Credential, error) {
	keyBytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	if len(keyBytes) == 0 {
		return nil, errors.New("private key file is empty")
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return nil, err
	}

	return NewSigningCredential(privateKey, keyID), nil
}
