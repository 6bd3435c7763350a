package ticket

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Protector seals and unseals serialized ticket envelopes.
type Protector interface {
	Protect(plaintext []byte) ([]byte, error)
	Unprotect(ciphertext []byte) ([]byte, error)
}

// ErrUnprotect is returned when a payload cannot be authenticated or decrypted.
var ErrUnprotect = errors.New("ticket payload could not be unprotected")

// aeadProtector derives a per-purpose key from the master secret with
// HKDF-SHA256 and seals payloads with XChaCha20-Poly1305. Payload layout is
// nonce || ciphertext.
type aeadProtector struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewProtector creates a protector bound to a purpose chain. Distinct purpose
// chains yield unrelated keys, so a payload sealed for one token kind cannot
// be presented as another.
func NewProtector(secret []byte, purposes ...string) (Protector, error) {
	if len(secret) == 0 {
		return nil, errors.New("protector secret is empty")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, secret, nil, []byte(strings.Join(purposes, "\x00")))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	return &aeadProtector{aead: aead, rand: rand.Reader}, nil
}

func (p *aeadProtector) Protect(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(p.rand, nonce); err != nil {
		return nil, err
	}

	return p.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (p *aeadProtector) Unprotect(payload []byte) ([]byte, error) {
	if len(payload) < p.aead.NonceSize() {
		return nil, ErrUnprotect
	}

	nonce, ciphertext := payload[:p.aead.NonceSize()], payload[p.aead.NonceSize():]
	plaintext, err := p.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrUnprotect
	}

	return plaintext, nil
}

// Format serializes tickets into opaque base64url strings through a Protector.
type Format struct {
	protector Protector
}

// NewFormat creates a ticket format around the given protector.
func NewFormat(p Protector) *Format {
	return &Format{protector: p}
}

// Protect serializes and seals a ticket.
func (f *Format) Protect(t *Ticket) (string, error) {
	plaintext, err := Serialize(t)
	if err != nil {
		return "", err
	}

	sealed, err := f.protector.Protect(plaintext)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Unprotect unseals and deserializes a ticket. Any failure yields a nil
// ticket and an error; callers map that to the grant-specific protocol error.
func (f *Format) Unprotect(value string) (*Ticket, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrUnprotect
	}

	plaintext, err := f.protector.Unprotect(sealed)
	if err != nil {
		return nil, err
	}

	return Deserialize(plaintext)
}
