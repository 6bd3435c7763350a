package oidcserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"oidcop/pkg/oidc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationCodeFlow(t *testing.T) {
	env := newTestEnv(t)

	query := codeFlowQuery()
	w := env.get(env.options.AuthorizationEndpointPath + "?" + query.Encode())
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)

	assert.Equal(t, "app", location.Host)
	assert.Equal(t, "/cb", location.Path)
	assert.Equal(t, "xyz", location.Query().Get("state"))

	code := location.Query().Get("code")
	require.NotEmpty(t, code)

	// The code is a cache key, not the ticket itself.
	payload, err := env.options.Cache.Take(context.Background(), codeCachePrefix+code)
	require.NoError(t, err)
	assert.NotNil(t, payload)
}

func TestAuthorizationUnsupportedResponseTypeWithoutSigningCredentials(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.SigningCredentials = nil
	})

	query := url.Values{
		oidc.ParamResponseType: {"code id_token"},
		oidc.ParamClientID:     {"abc"},
		oidc.ParamRedirectURI:  {"https://app/cb"},
		oidc.ParamState:        {"s"},
	}
	w := env.get(env.options.AuthorizationEndpointPath + "?" + query.Encode())
	require.Equal(t, http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)

	assert.Equal(t, "unsupported_response_type", location.Query().Get("error"))
	assert.NotEmpty(t, location.Query().Get("error_description"))
	assert.Equal(t, "s", location.Query().Get("state"))
}

func TestAuthorizationFragmentResponseMode(t *testing.T) {
	env := newTestEnv(t)

	query := url.Values{
		oidc.ParamResponseType: {"token"},
		oidc.ParamResponseMode: {"fragment"},
		oidc.ParamClientID:     {"abc"},
		oidc.ParamRedirectURI:  {"https://app/cb"},
		oidc.ParamScope:        {"openid"},
		oidc.ParamState:        {"xyz"},
	}
	w := env.get(env.options.AuthorizationEndpointPath + "?" + query.Encode())
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	location := w.Header().Get("Location")

	// Parameters ride in the fragment: nothing after the redirect_uri may
	// use the query separator.
	require.True(t, strings.HasPrefix(location, "https://app/cb#"), location)
	assert.NotContains(t, location, "?")

	fragment := location[strings.Index(location, "#")+1:]
	params, err := url.ParseQuery(fragment)
	require.NoError(t, err)
	assert.NotEmpty(t, params.Get("access_token"))
	assert.Equal(t, "Bearer", params.Get("token_type"))
	assert.Equal(t, "xyz", params.Get("state"))
}

func TestAuthorizationFormPostResponseMode(t *testing.T) {
	env := newTestEnv(t)

	query := url.Values{
		oidc.ParamResponseType: {"token"},
		oidc.ParamResponseMode: {"form_post"},
		oidc.ParamClientID:     {"abc"},
		oidc.ParamRedirectURI:  {"https://app/cb"},
		oidc.ParamScope:        {"openid"},
		oidc.ParamState:        {"xyz"},
	}
	w := env.get(env.options.AuthorizationEndpointPath + "?" + query.Encode())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	body := w.Body.String()
	assert.Contains(t, body, `action="https://app/cb"`)
	assert.Contains(t, body, `method="post"`)
	assert.Contains(t, body, `name="access_token"`)
	assert.Contains(t, body, `name="token_type"`)
	assert.Contains(t, body, `name="expires_in"`)
	assert.Contains(t, body, `name="state"`)
	assert.NotContains(t, body, `name="client_id"`)
	assert.NotContains(t, body, `name="redirect_uri"`)
	assert.NotContains(t, body, `name="response_mode"`)
	assert.Contains(t, body, "<noscript>")
}

func TestAuthorizationParameterValidation(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantError string
	}{
		{
			name: "missing response_type",
			query: url.Values{
				oidc.ParamClientID:    {"abc"},
				oidc.ParamRedirectURI: {"https://app/cb"},
			},
			wantError: "invalid_request",
		},
		{
			name: "unknown response_type",
			query: url.Values{
				oidc.ParamResponseType: {"device_code"},
				oidc.ParamClientID:     {"abc"},
				oidc.ParamRedirectURI:  {"https://app/cb"},
			},
			wantError: "unsupported_response_type",
		},
		{
			name: "duplicate response_type component",
			query: url.Values{
				oidc.ParamResponseType: {"code code"},
				oidc.ParamClientID:     {"abc"},
				oidc.ParamRedirectURI:  {"https://app/cb"},
			},
			wantError: "unsupported_response_type",
		},
		{
			name: "unknown response_mode",
			query: url.Values{
				oidc.ParamResponseType: {"code"},
				oidc.ParamResponseMode: {"web_message"},
				oidc.ParamClientID:     {"abc"},
				oidc.ParamRedirectURI:  {"https://app/cb"},
			},
			wantError: "invalid_request",
		},
		{
			name: "id_token without openid scope",
			query: url.Values{
				oidc.ParamResponseType: {"id_token"},
				oidc.ParamClientID:     {"abc"},
				oidc.ParamRedirectURI:  {"https://app/cb"},
				oidc.ParamScope:        {"profile"},
			},
			wantError: "invalid_request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.get(env.options.AuthorizationEndpointPath + "?" + tt.query.Encode())
			require.Equal(t, http.StatusFound, w.Code, w.Body.String())

			location, err := url.Parse(w.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantError, location.Query().Get("error"))
		})
	}
}

func TestAuthorizationUntrustedRedirectURIGetsErrorPage(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
	}{
		{
			name: "unregistered redirect_uri",
			query: url.Values{
				oidc.ParamResponseType: {"code"},
				oidc.ParamClientID:     {"abc"},
				oidc.ParamRedirectURI:  {"https://evil.example/cb"},
			},
		},
		{
			name: "unknown client",
			query: url.Values{
				oidc.ParamResponseType: {"code"},
				oidc.ParamClientID:     {"nobody"},
				oidc.ParamRedirectURI:  {"https://app/cb"},
			},
		},
		{
			name: "relative redirect_uri",
			query: url.Values{
				oidc.ParamResponseType: {"code"},
				oidc.ParamClientID:     {"abc"},
				oidc.ParamRedirectURI:  {"/cb"},
			},
		},
		{
			name: "redirect_uri with fragment",
			query: url.Values{
				oidc.ParamResponseType: {"code"},
				oidc.ParamClientID:     {"abc"},
				oidc.ParamRedirectURI:  {"https://app/cb#frag"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.get(env.options.AuthorizationEndpointPath + "?" + tt.query.Encode())

			// No redirect: the error renders on the error page.
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
			assert.Contains(t, w.Body.String(), "error: ")
			assert.Empty(t, w.Header().Get("Location"))
		})
	}
}

func TestAuthorizationErrorPageDelegation(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.ApplicationCanDisplayErrors = true
	})

	query := url.Values{
		oidc.ParamResponseType: {"code"},
		oidc.ParamClientID:     {"nobody"},
		oidc.ParamRedirectURI:  {"https://app/cb"},
	}
	w := env.get(env.options.AuthorizationEndpointPath + "?" + query.Encode())

	// The inner pipeline rendered the recorded error itself.
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "delegated error")
}

func TestAuthorizationRejectsUnparsableMethod(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPut, env.options.AuthorizationEndpointPath, nil)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
