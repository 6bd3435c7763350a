package jose

import (
	"fmt"
	"maps"

	"github.com/golang-jwt/jwt/v5"
)

// MakeJWT creates a signed JWT with the given header, body, signing method,
// and key. The header parameter is merged with default headers set by the
// signing method.
func MakeJWT(header map[string]any, body jwt.MapClaims, signingMethod jwt.SigningMethod, signingKey any) (string, error) {
	token := jwt.NewWithClaims(signingMethod, body)

	maps.Copy(token.Header, header)

	signedToken, err := token.SignedString(signingKey)
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

// SigningMethodForCredential resolves the JWT signing method advertised by a
// credential. Unknown algorithm names are an error rather than a silent
// fallback.
func SigningMethodForCredential(c *Credential) (jwt.SigningMethod, error) {
	method := jwt.GetSigningMethod(c.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("no signing method for algorithm %q", c.Algorithm)
	}
	return method, nil
}

// Sign produces a compact JWT signed by the credential, stamping the key
// identifier into the header when the credential carries one.
func Sign(c *Credential, claims jwt.MapClaims) (string, error) {
	method, err := SigningMethodForCredential(c)
	if err != nil {
		return "", err
	}

	header := map[string]any{}
	if c.KeyID != "" {
		header["kid"] = c.KeyID
	}

	return MakeJWT(header, claims, method, c.PrivateKey)
}
