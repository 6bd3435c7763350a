package jose

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/cert"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// Key use values published in the JWKS document.
const (
	UseSignature  = "sig"
	UseEncryption = "enc"
)

// ErrUnsupportedKey is returned for credentials whose key shape cannot be
// published: symmetric keys, or asymmetric keys without a supported algorithm.
var ErrUnsupportedKey = errors.New("credential key shape not supported")

// PublicJWK builds the public JWK for a credential. The modulus and exponent
// come from jwk.Import; kid, use and alg are attached, and when the
// credential is bound to an X.509 certificate the x5t thumbprint and x5c
// chain are emitted as well.
func PublicJWK(c *Credential, use string) (jwk.Key, error) {
	switch use {
	case UseSignature:
		if !c.SupportsSigning() {
			return nil, fmt.Errorf("%w: %s signing", ErrUnsupportedKey, c.Algorithm)
		}
	case UseEncryption:
		if !c.SupportsEncryption() {
			return nil, fmt.Errorf("%w: %s encryption", ErrUnsupportedKey, c.Algorithm)
		}
	default:
		return nil, fmt.Errorf("unknown key use %q", use)
	}

	key, err := jwk.Import(c.PublicKey())
	if err != nil {
		return nil, err
	}

	if err := key.Set(jwk.KeyUsageKey, use); err != nil {
		return nil, err
	}
	if c.KeyID != "" {
		if err := key.Set(jwk.KeyIDKey, c.KeyID); err != nil {
			return nil, err
		}
	}
	if err := setAlgorithm(key, c.Algorithm, use); err != nil {
		return nil, err
	}

	if c.Certificate != nil {
		thumbprint := sha1.Sum(c.Certificate.Raw)
		if err := key.Set(jwk.X509CertThumbprintKey, base64.RawURLEncoding.EncodeToString(thumbprint[:])); err != nil {
			return nil, err
		}

		chain := &cert.Chain{}
		if err := chain.AddString(base64.StdEncoding.EncodeToString(c.Certificate.Raw)); err != nil {
			return nil, err
		}
		for _, intermediate := range c.Chain {
			if err := chain.AddString(base64.StdEncoding.EncodeToString(intermediate.Raw)); err != nil {
				return nil, err
			}
		}
		if err := key.Set(jwk.X509CertChainKey, chain); err != nil {
			return nil, err
		}
	}

	return key, nil
}

func setAlgorithm(key jwk.Key, algorithm, use string) error {
	if use == UseSignature {
		alg, ok := jwa.LookupSignatureAlgorithm(algorithm)
		if !ok {
			return fmt.Errorf("%w: unknown signature algorithm %q", ErrUnsupportedKey, algorithm)
		}
		return key.Set(jwk.AlgorithmKey, alg)
	}

	alg, ok := jwa.LookupKeyEncryptionAlgorithm(algorithm)
	if !ok {
		return fmt.Errorf("%w: unknown key encryption algorithm %q", ErrUnsupportedKey, algorithm)
	}
	return key.Set(jwk.AlgorithmKey, alg)
}
