package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestFormatRoundTrip(t *testing.T) {
	protector, err := NewProtector(testSecret, "oidcop", "test-scheme", "access_token", "v3")
	require.NoError(t, err)

	format := NewFormat(protector)

	original := testTicket()

	sealed, err := format.Protect(original)
	require.NoError(t, err)

	decoded, err := format.Unprotect(sealed)
	require.NoError(t, err)
	assert.Equal(t, "u1", decoded.Subject())
	assert.Equal(t, "abc", decoded.GetProperty(PropertyClientID))
}

func TestUnprotectRejectsTamperedPayload(t *testing.T) {
	protector, err := NewProtector(testSecret, "oidcop", "test-scheme", "access_token", "v3")
	require.NoError(t, err)

	format := NewFormat(protector)

	sealed, err := format.Protect(testTicket())
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
	}{
		{name: "empty", value: ""},
		{name: "not base64", value: "%%%"},
		{name: "tampered", value: tamper(sealed)},
		{name: "truncated", value: sealed[:8]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := format.Unprotect(tt.value)
			assert.Error(t, err)
		})
	}
}

// tamper flips one character in the middle of a base64url payload.
func tamper(s string) string {
	b := []byte(s)
	i := len(b) / 2
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func TestProtectorPurposeIsolation(t *testing.T) {
	access, err := NewProtector(testSecret, "oidcop", "test-scheme", "access_token", "v3")
	require.NoError(t, err)
	refresh, err := NewProtector(testSecret, "oidcop", "test-scheme", "refresh_token", "v3")
	require.NoError(t, err)

	sealed, err := NewFormat(access).Protect(testTicket())
	require.NoError(t, err)

	// A token sealed for one purpose cannot be presented as another.
	_, err = NewFormat(refresh).Unprotect(sealed)
	assert.ErrorIs(t, err, ErrUnprotect)
}

func TestNewProtectorRequiresSecret(t *testing.T) {
	_, err := NewProtector(nil, "oidcop")
	assert.Error(t, err)
}
