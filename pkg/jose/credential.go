package jose

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
)

// Signature and key-management algorithm names used by the server.
const (
	AlgRS256 = "RS256"
	AlgRS384 = "RS384"
	AlgRS512 = "RS512"

	AlgRSAOAEP = "RSA-OAEP"
	AlgRSA15   = "RSA1_5"
)

// Credential binds private key material to an algorithm, a key identifier and
// an optional X.509 certificate chain. The certificate, when present, is a
// first-class accessor rather than something dug out of the key type.
type Credential struct {
	PrivateKey  crypto.Signer
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
	KeyID       string
	Algorithm   string
}

// NewSigningCredential creates an RS256 signing credential.
func NewSigningCredential(key *rsa.PrivateKey, keyID string) *Credential {
	return &Credential{PrivateKey: key, KeyID: keyID, Algorithm: AlgRS256}
}

// NewEncryptingCredential creates an RSA-OAEP encrypting credential.
func NewEncryptingCredential(key *rsa.PrivateKey, keyID string) *Credential {
	return &Credential{PrivateKey: key, KeyID: keyID, Algorithm: AlgRSAOAEP}
}

// PublicKey returns the public half of the credential, or nil.
func (c *Credential) PublicKey() crypto.PublicKey {
	if c.PrivateKey == nil {
		return nil
	}
	return c.PrivateKey.Public()
}

// RSAKey returns the private key as *rsa.PrivateKey when it is one.
func (c *Credential) RSAKey() (*rsa.PrivateKey, bool) {
	key, ok := c.PrivateKey.(*rsa.PrivateKey)
	return key, ok
}

// SupportsSigning reports whether the credential can produce RS256 family
// signatures: an asymmetric RSA key with a signing algorithm.
func (c *Credential) SupportsSigning() bool {
	if _, ok := c.RSAKey(); !ok {
		return false
	}
	switch c.Algorithm {
	case AlgRS256, AlgRS384, AlgRS512:
		return true
	}
	return false
}

// SupportsEncryption reports whether the credential can wrap keys with
// RSA-OAEP or RSA1_5.
func (c *Credential) SupportsEncryption() bool {
	if _, ok := c.RSAKey(); !ok {
		return false
	}
	switch c.Algorithm {
	case AlgRSAOAEP, AlgRSA15:
		return true
	}
	return false
}
