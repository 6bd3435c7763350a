package oidcserver

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"oidcop/pkg/jose"
	"oidcop/pkg/logger"
	"oidcop/pkg/oidc"
	"oidcop/pkg/ticket"
	"oidcop/pkg/trace"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return testKey
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClientEntry struct {
	secret    string
	redirects []string
}

// testProvider is a minimal policy surface: a static client registry and one
// resource owner.
type testProvider struct {
	DefaultProvider

	clients map[string]testClientEntry
}

func newTestProvider() *testProvider {
	return &testProvider{
		clients: map[string]testClientEntry{
			"abc": {secret: "s3cr3t", redirects: []string{"https://app/cb"}},
		},
	}
}

func (p *testProvider) ValidateClientRedirectURI(_ context.Context, e *ValidateClientRedirectURIContext) error {
	client, ok := p.clients[e.ClientID]
	if !ok {
		e.Reject(nil)
		return nil
	}

	if e.RedirectURI == "" {
		e.RedirectURI = client.redirects[0]
		e.Validate()
		return nil
	}

	for _, registered := range client.redirects {
		if registered == e.RedirectURI {
			e.Validate()
			return nil
		}
	}

	e.Reject(nil)
	return nil
}

func (p *testProvider) ValidateAuthorizationRequest(_ context.Context, e *ValidateAuthorizationRequestContext) error {
	e.Validate()
	return nil
}

func (p *testProvider) ValidateClientAuthentication(_ context.Context, e *ValidateClientAuthenticationContext) error {
	client, ok := p.clients[e.ClientID]
	if !ok || client.secret != e.ClientSecret {
		e.Reject(nil)
		return nil
	}
	e.Validate()
	return nil
}

func (p *testProvider) GrantResourceOwnerCredentials(_ context.Context, e *GrantResourceOwnerCredentialsContext) error {
	if e.Request.Username() != "u1" || e.Request.Password() != "pw" {
		e.Reject(nil)
		return nil
	}
	e.Ticket = grantTicket(e.Request.Scope())
	e.Ticket.SetPresenters(e.Request.ClientID())
	e.Validate()
	return nil
}

func (p *testProvider) GrantClientCredentials(_ context.Context, e *GrantClientCredentialsContext) error {
	identity := ticket.NewIdentity(DefaultAuthenticationScheme)
	identity.AddClaim(ticket.NewClaim("sub", e.Request.ClientID()).SetDestinations(ticket.DestinationAccessToken))
	e.Ticket = ticket.New(identity)
	e.Ticket.SetProperty(ticket.PropertyScope, e.Request.Scope())
	e.Validate()
	return nil
}

func (p *testProvider) ValidateIntrospectionRequest(_ context.Context, e *ValidateIntrospectionRequestContext) error {
	e.Validate()
	return nil
}

func (p *testProvider) ValidateRevocationRequest(_ context.Context, e *ValidateRevocationRequestContext) error {
	e.Validate()
	return nil
}

// grantTicket is the ticket the interactive sign-in produces in tests.
func grantTicket(scope string) *ticket.Ticket {
	identity := ticket.NewIdentity(DefaultAuthenticationScheme)
	identity.AddClaim(ticket.NewClaim("sub", "u1").
		SetDestinations(ticket.DestinationAccessToken, ticket.DestinationIdentityToken))
	identity.AddClaim(ticket.NewClaim("name", "Test User").
		SetDestinations(ticket.DestinationIdentityToken))
	identity.AddClaim(ticket.NewClaim("email", "u1@example.com").
		SetDestinations(ticket.DestinationIdentityToken))
	identity.AddClaim(ticket.NewClaim("internal_flag", "true"))

	t := ticket.New(identity)
	t.SetProperty(ticket.PropertyScope, scope)

	return t
}

type testEnv struct {
	t       *testing.T
	server  *Server
	engine  *gin.Engine
	options *Options
}

func newTestEnv(t *testing.T, mutators ...func(*Options)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	options := &Options{
		Issuer:   "https://idp.example/",
		Provider: newTestProvider(),
		SigningCredentials: []*jose.Credential{
			jose.NewSigningCredential(testSigningKey(t), "test-key"),
		},
		ProtectionSecret:  []byte("0123456789abcdef0123456789abcdef"),
		AllowInsecureHTTP: true,
		Clock:             func() time.Time { return testNow },
	}
	for _, mutate := range mutators {
		mutate(options)
	}

	server, err := New(options, trace.NewNoop(), logger.NewSimple("test"))
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(server.Handler())

	// The inner pipeline: an authenticated subject granting the request.
	if path := server.Options().AuthorizationEndpointPath; path != "" {
		engine.GET(path, authorizeInnerHandler)
	}

	return &testEnv{t: t, server: server, engine: engine, options: server.Options()}
}

func authorizeInnerHandler(c *gin.Context) {
	if ResponseMessage(c) != nil {
		c.String(http.StatusBadRequest, "delegated error")
		return
	}
	request := RequestMessage(c)
	SignIn(c, grantTicket(request.Scope()))
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

// authorize runs the code flow and returns the issued authorization code.
func (e *testEnv) authorize(query url.Values) string {
	e.t.Helper()

	w := e.get(e.options.AuthorizationEndpointPath + "?" + query.Encode())
	require.Equal(e.t, http.StatusFound, w.Code, "authorization response: %s", w.Body.String())

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(e.t, err)

	code := location.Query().Get(oidc.ParamCode)
	require.NotEmpty(e.t, code, "no code on %s", location)

	return code
}

func codeFlowQuery() url.Values {
	return url.Values{
		oidc.ParamResponseType: {oidc.ResponseTypeCode},
		oidc.ParamClientID:     {"abc"},
		oidc.ParamRedirectURI:  {"https://app/cb"},
		oidc.ParamScope:        {"openid"},
		oidc.ParamState:        {"xyz"},
	}
}

func redeemForm(code string) url.Values {
	return url.Values{
		oidc.ParamGrantType:    {oidc.GrantTypeAuthorizationCode},
		oidc.ParamCode:         {code},
		oidc.ParamRedirectURI:  {"https://app/cb"},
		oidc.ParamClientID:     {"abc"},
		oidc.ParamClientSecret: {"s3cr3t"},
	}
}
