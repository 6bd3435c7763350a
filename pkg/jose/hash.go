package jose

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/base64"
	"fmt"
)

// digestForAlgorithm maps signing algorithm names to the digest used for the
// c_hash and at_hash computations. The mapping is explicit: an algorithm
// missing from the table is an error, never a guessed digest.
var digestForAlgorithm = map[string]crypto.Hash{
	"RS256": crypto.SHA256,
	"RS384": crypto.SHA384,
	"RS512": crypto.SHA512,
	"PS256": crypto.SHA256,
	"PS384": crypto.SHA384,
	"PS512": crypto.SHA512,
	"ES256": crypto.SHA256,
	"ES384": crypto.SHA384,
	"ES512": crypto.SHA512,
}

// DigestForAlgorithm resolves the digest implied by a signing algorithm name.
func DigestForAlgorithm(algorithm string) (crypto.Hash, error) {
	h, ok := digestForAlgorithm[algorithm]
	if !ok {
		return 0, fmt.Errorf("no digest known for signing algorithm %q", algorithm)
	}
	return h, nil
}

// LeftmostHalfHash computes the OIDC token hash: base64url of the left half
// of digest(value) under the digest implied by the signing algorithm. Used
// for both c_hash and at_hash.
func LeftmostHalfHash(algorithm, value string) (string, error) {
	digest, err := DigestForAlgorithm(algorithm)
	if err != nil {
		return "", err
	}

	h := digest.New()
	h.Write([]byte(value))
	sum := h.Sum(nil)

	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]), nil
}
