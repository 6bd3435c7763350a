package oidc

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageAccessors(t *testing.T) {
	values := url.Values{}
	values.Set(ParamClientID, "abc")
	values.Set(ParamRedirectURI, "https://app/cb")
	values.Set(ParamResponseType, "code id_token")
	values.Set(ParamScope, "openid profile")
	values.Set(ParamState, "xyz")

	m := MessageFromValues(values)

	assert.Equal(t, "abc", m.ClientID())
	assert.Equal(t, "https://app/cb", m.RedirectURI())
	assert.Equal(t, "code id_token", m.ResponseType())
	assert.Equal(t, "xyz", m.State())
	assert.Empty(t, m.Nonce())
}

func TestHasResponseType(t *testing.T) {
	tests := []struct {
		name         string
		responseType string
		component    string
		want         bool
	}{
		{name: "single match", responseType: "code", component: "code", want: true},
		{name: "combination match", responseType: "code id_token", component: "id_token", want: true},
		{name: "no partial match", responseType: "id_token", component: "token", want: false},
		{name: "missing", responseType: "code", component: "token", want: false},
		{name: "empty", responseType: "", component: "code", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMessage()
			if tt.responseType != "" {
				m.Set(ParamResponseType, tt.responseType)
			}
			assert.Equal(t, tt.want, m.HasResponseType(tt.component))
		})
	}
}

func TestHasScope(t *testing.T) {
	m := NewMessage()
	m.Set(ParamScope, "openid profile email")

	assert.True(t, m.HasScope(ScopeOpenID))
	assert.True(t, m.HasScope(ScopeEmail))
	assert.False(t, m.HasScope(ScopePhone))
	assert.False(t, m.HasScope("prof"))
}

func TestSetError(t *testing.T) {
	m := NewMessage()
	m.SetError(NewError(ErrorCodeInvalidGrant, "The code has expired."))

	assert.Equal(t, ErrorCodeInvalidGrant, m.ErrorCode())
	assert.Equal(t, "The code has expired.", m.ErrorDescription())
	assert.Empty(t, m.ErrorURI())
}

func TestClone(t *testing.T) {
	m := NewMessage()
	m.Set(ParamClientID, "abc")

	clone := m.Clone()
	clone.Set(ParamClientID, "other")

	assert.Equal(t, "abc", m.ClientID())
	assert.Equal(t, "other", clone.ClientID())
}
