package oidcserver

import (
	"context"
	"net/http"
	"testing"
	"time"

	"oidcop/pkg/jose"
	"oidcop/pkg/ticket"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redeemOpaqueAccessToken unprotects the opaque access token minted through
// the full code flow for the given sign-in ticket.
func redeemOpaqueAccessToken(t *testing.T, env *testEnv) *ticket.Ticket {
	t.Helper()

	code := env.authorize(codeFlowQuery())
	w := env.postForm(env.options.TokenEndpointPath, redeemForm(code))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	accessToken := decodeTokenResponse(t, w.Body.Bytes())["access_token"].(string)

	decoded, err := env.options.AccessTokenFormat.Unprotect(accessToken)
	require.NoError(t, err)
	return decoded
}

func TestAccessTokenClaimFilteringOpaque(t *testing.T) {
	env := newTestEnv(t)

	decoded := redeemOpaqueAccessToken(t, env)

	// grantTicket carries: sub (both destinations), name and email
	// (id_token only), internal_flag (no destinations). The opaque shape
	// keeps sub, undeclared claims, and access-token claims.
	assert.NotNil(t, decoded.Identity.First("sub"))
	assert.NotNil(t, decoded.Identity.First("internal_flag"))
	assert.Nil(t, decoded.Identity.First("name"))
	assert.Nil(t, decoded.Identity.First("email"))
}

func TestAccessTokenClaimFilteringJWT(t *testing.T) {
	var minted jwt.MapClaims
	env := newTestEnv(t, func(o *Options) {
		o.AccessTokenHandler = func(credential *jose.Credential, claims jwt.MapClaims) (string, error) {
			minted = claims
			return jose.Sign(credential, claims)
		}
	})

	code := env.authorize(codeFlowQuery())
	w := env.postForm(env.options.TokenEndpointPath, redeemForm(code))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NotNil(t, minted)

	// A public JWT only carries claims that opted into the token
	// destination.
	assert.Equal(t, "u1", minted["sub"])
	assert.NotContains(t, minted, "internal_flag")
	assert.NotContains(t, minted, "name")
	assert.NotContains(t, minted, "email")
	assert.Equal(t, "https://idp.example/", minted["iss"])
	assert.NotEmpty(t, minted["jti"])
}

func TestIdentityTokenClaimFiltering(t *testing.T) {
	env := newTestEnv(t)

	code := env.authorize(codeFlowQuery())
	w := env.postForm(env.options.TokenEndpointPath, redeemForm(code))
	require.Equal(t, http.StatusOK, w.Code)

	claims := idTokenClaims(t, decodeTokenResponse(t, w.Body.Bytes())["id_token"].(string))

	// name and email declared id_token as destination; internal_flag did
	// not declare anything and stays out of the signed token.
	assert.Equal(t, "Test User", claims["name"])
	assert.Equal(t, "u1@example.com", claims["email"])
	assert.NotContains(t, claims, "internal_flag")
	assert.NotContains(t, claims, "for_access")
}

func TestRefreshTokenKeepsAllClaims(t *testing.T) {
	env := newTestEnv(t)

	code := env.authorize(codeFlowQuery())
	w := env.postForm(env.options.TokenEndpointPath, redeemForm(code))
	require.Equal(t, http.StatusOK, w.Code)

	refreshToken := decodeTokenResponse(t, w.Body.Bytes())["refresh_token"].(string)

	decoded, err := env.options.RefreshTokenFormat.Unprotect(refreshToken)
	require.NoError(t, err)

	// Refresh tokens are opaque to everyone but this server: no filtering.
	assert.NotNil(t, decoded.Identity.First("name"))
	assert.NotNil(t, decoded.Identity.First("email"))
	assert.NotNil(t, decoded.Identity.First("internal_flag"))
}

func TestCreateHooksShortCircuit(t *testing.T) {
	provider := &shortCircuitProvider{}
	provider.clients = newTestProvider().clients

	env := newTestEnv(t, func(o *Options) {
		o.Provider = provider
	})

	code := env.authorize(codeFlowQuery())
	w := env.postForm(env.options.TokenEndpointPath, redeemForm(code))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := decodeTokenResponse(t, w.Body.Bytes())
	assert.Equal(t, "precomputed-access-token", doc["access_token"])
}

type shortCircuitProvider struct {
	testProvider
}

func (p *shortCircuitProvider) CreateAccessToken(_ context.Context, e *CreateAccessTokenContext) error {
	e.AccessToken = "precomputed-access-token"
	return nil
}

func TestTicketWindowResetOnIssue(t *testing.T) {
	env := newTestEnv(t)

	decoded := redeemOpaqueAccessToken(t, env)

	issued := decoded.Properties.IssuedAt
	expires := decoded.Properties.ExpiresAt

	assert.Equal(t, testNow.UTC(), issued.UTC())
	assert.Equal(t, DefaultAccessTokenLifetime, expires.Sub(issued))

	// Integral window keeps exp - iat equal to expires_in.
	assert.Zero(t, expires.Sub(issued)%time.Second)
}
