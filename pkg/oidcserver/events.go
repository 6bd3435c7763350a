package oidcserver

import (
	"oidcop/pkg/oidc"
	"oidcop/pkg/ticket"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// Endpoint classifies a request after path matching.
type Endpoint int

const (
	EndpointNone Endpoint = iota
	EndpointConfiguration
	EndpointCryptography
	EndpointAuthorization
	EndpointToken
	EndpointUserinfo
	EndpointIntrospection
	EndpointRevocation
	EndpointLogout
)

func (e Endpoint) String() string {
	switch e {
	case EndpointConfiguration:
		return "configuration"
	case EndpointCryptography:
		return "cryptography"
	case EndpointAuthorization:
		return "authorization"
	case EndpointToken:
		return "token"
	case EndpointUserinfo:
		return "userinfo"
	case EndpointIntrospection:
		return "introspection"
	case EndpointRevocation:
		return "revocation"
	case EndpointLogout:
		return "logout"
	}
	return "none"
}

// BaseContext carries the state every notification shares: the HTTP exchange,
// the frozen options, the protocol request and response, the error triple,
// and the outcome bits. Outcome bits are mutually exclusive in effect; the
// handlers check HandledResponse first, then Skipped, then proceed.
type BaseContext struct {
	Gin      *gin.Context
	Options  *Options
	Request  *oidc.Message
	Response *oidc.Message
	Error    *oidc.Error

	validated        bool
	rejected         bool
	handledResponse  bool
	skipped          bool
	requestCompleted bool
}

// Validate marks the logical check as passed.
func (c *BaseContext) Validate() {
	c.validated = true
	c.rejected = false
}

// Reject marks the check as failed and records the protocol error; a nil
// error lets the handler substitute its endpoint-specific default.
func (c *BaseContext) Reject(err *oidc.Error) {
	c.validated = false
	c.rejected = true
	c.Error = err
}

// HandleResponse records that the hook already wrote the HTTP response.
func (c *BaseContext) HandleResponse() {
	c.handledResponse = true
}

// Skip hands the request back to the next middleware in the host pipeline.
func (c *BaseContext) Skip() {
	c.skipped = true
}

// CompleteRequest stops default processing: the application has taken over
// the exchange (a consent page, for example).
func (c *BaseContext) CompleteRequest() {
	c.requestCompleted = true
}

func (c *BaseContext) IsValidated() bool        { return c.validated }
func (c *BaseContext) IsRejected() bool         { return c.rejected }
func (c *BaseContext) IsHandledResponse() bool  { return c.handledResponse }
func (c *BaseContext) IsSkipped() bool          { return c.skipped }
func (c *BaseContext) IsRequestCompleted() bool { return c.requestCompleted }

// MatchEndpointContext lets the provider override the path classification.
type MatchEndpointContext struct {
	BaseContext

	Endpoint Endpoint
}

// ValidateClientRedirectURIContext confirms the redirect_uri belongs to the
// client. Leaving it unvalidated clears the redirect_uri from the stored
// request so later errors render on the error page instead of redirecting.
type ValidateClientRedirectURIContext struct {
	BaseContext

	ClientID    string
	RedirectURI string
}

// ValidateClientAuthenticationContext authenticates the client at the token
// endpoint. Credentials come from HTTP basic auth or the form body.
type ValidateClientAuthenticationContext struct {
	BaseContext

	ClientID     string
	ClientSecret string
}

// ValidateAuthorizationRequestContext approves the authorization request as
// a whole after protocol-level checks passed.
type ValidateAuthorizationRequestContext struct {
	BaseContext
}

// HandleAuthorizationRequestContext is the interactive handoff point; the
// application typically renders a sign-in page here or lets the inner
// pipeline run.
type HandleAuthorizationRequestContext struct {
	BaseContext
}

// ApplyAuthorizationResponseContext fires before the authorization response
// is written through the response-mode writer.
type ApplyAuthorizationResponseContext struct {
	BaseContext

	Ticket *ticket.Ticket
}

// ValidateConfigurationRequestContext gates the discovery document.
type ValidateConfigurationRequestContext struct {
	BaseContext
}

// HandleConfigurationRequestContext exposes the assembled metadata for the
// provider to amend or rewrite.
type HandleConfigurationRequestContext struct {
	BaseContext

	Metadata *ProviderMetadata
}

// ApplyConfigurationResponseContext fires before the metadata is written.
type ApplyConfigurationResponseContext struct {
	BaseContext

	Metadata *ProviderMetadata
}

// ValidateCryptographyRequestContext gates the JWKS document.
type ValidateCryptographyRequestContext struct {
	BaseContext
}

// HandleCryptographyRequestContext exposes the assembled key list.
type HandleCryptographyRequestContext struct {
	BaseContext

	Keys []jwk.Key
}

// ApplyCryptographyResponseContext fires before the key set is written.
type ApplyCryptographyResponseContext struct {
	BaseContext

	Keys []jwk.Key
}

// GrantAuthorizationCodeContext carries the ticket redeemed from an
// authorization code after the one-shot and ownership checks passed.
type GrantAuthorizationCodeContext struct {
	BaseContext

	Ticket *ticket.Ticket
}

// GrantResourceOwnerCredentialsContext asks the provider to authenticate the
// resource owner named in a password grant and attach a ticket.
type GrantResourceOwnerCredentialsContext struct {
	BaseContext

	Ticket *ticket.Ticket
}

// GrantClientCredentialsContext asks the provider to issue a ticket for the
// authenticated client itself.
type GrantClientCredentialsContext struct {
	BaseContext

	Ticket *ticket.Ticket
}

// GrantRefreshTokenContext carries the ticket deserialized from a refresh
// token for the provider to accept, adjust or reject.
type GrantRefreshTokenContext struct {
	BaseContext

	Ticket *ticket.Ticket
}

// GrantCustomExtensionContext handles grant types this server does not know.
type GrantCustomExtensionContext struct {
	BaseContext

	GrantType string
	Ticket    *ticket.Ticket
}

// TokenEndpointContext fires once a grant produced a ticket, before tokens
// are minted.
type TokenEndpointContext struct {
	BaseContext

	Ticket *ticket.Ticket
}

// TokenEndpointResponseContext fires after tokens are minted, before the JSON
// response is written.
type TokenEndpointResponseContext struct {
	BaseContext

	Ticket *ticket.Ticket
}

// ValidateUserinfoRequestContext gates the userinfo endpoint after the access
// token resolved to a live ticket.
type ValidateUserinfoRequestContext struct {
	BaseContext

	AccessToken string
	Ticket      *ticket.Ticket
}

// HandleUserinfoRequestContext exposes the claim map the userinfo endpoint is
// about to emit.
type HandleUserinfoRequestContext struct {
	BaseContext

	Ticket *ticket.Ticket
	Claims map[string]any
}

// ApplyUserinfoResponseContext fires before the claims are written.
type ApplyUserinfoResponseContext struct {
	BaseContext

	Claims map[string]any
}

// ValidateIntrospectionRequestContext authenticates the caller of the
// introspection endpoint.
type ValidateIntrospectionRequestContext struct {
	BaseContext

	Token         string
	TokenTypeHint string
}

// HandleIntrospectionRequestContext exposes the introspection verdict.
type HandleIntrospectionRequestContext struct {
	BaseContext

	Token  string
	Ticket *ticket.Ticket
	Active bool
	Claims map[string]any
}

// ApplyIntrospectionResponseContext fires before the verdict is written.
type ApplyIntrospectionResponseContext struct {
	BaseContext

	Claims map[string]any
}

// ValidateRevocationRequestContext authenticates the caller of the
// revocation endpoint.
type ValidateRevocationRequestContext struct {
	BaseContext

	Token         string
	TokenTypeHint string
}

// HandleRevocationRequestContext records whether the token was revoked.
// Unknown tokens still answer 200 per RFC 7009.
type HandleRevocationRequestContext struct {
	BaseContext

	Token   string
	Revoked bool
}

// ApplyRevocationResponseContext fires before the response is written.
type ApplyRevocationResponseContext struct {
	BaseContext
}

// ValidateLogoutRequestContext gates the logout endpoint.
type ValidateLogoutRequestContext struct {
	BaseContext
}

// HandleLogoutRequestContext is where the application tears down its session.
type HandleLogoutRequestContext struct {
	BaseContext
}

// ApplyLogoutResponseContext decides where the agent goes after logout.
type ApplyLogoutResponseContext struct {
	BaseContext

	PostLogoutRedirectURI string
}

// CreateAuthorizationCodeContext lets the provider replace the ticket or
// short-circuit with a precomputed code.
type CreateAuthorizationCodeContext struct {
	BaseContext

	Ticket            *ticket.Ticket
	AuthorizationCode string
}

// CreateAccessTokenContext lets the provider replace the ticket or
// short-circuit with a precomputed access token.
type CreateAccessTokenContext struct {
	BaseContext

	Ticket      *ticket.Ticket
	AccessToken string
}

// CreateIdentityTokenContext lets the provider replace the ticket or
// short-circuit with a precomputed identity token.
type CreateIdentityTokenContext struct {
	BaseContext

	Ticket        *ticket.Ticket
	IdentityToken string
}

// CreateRefreshTokenContext lets the provider replace the ticket or
// short-circuit with a precomputed refresh token.
type CreateRefreshTokenContext struct {
	BaseContext

	Ticket       *ticket.Ticket
	RefreshToken string
}

// ReceiveAuthorizationCodeContext lets the provider resolve a code to a
// ticket before the cache is consulted.
type ReceiveAuthorizationCodeContext struct {
	BaseContext

	AuthorizationCode string
	Ticket            *ticket.Ticket
}

// ReceiveAccessTokenContext lets the provider resolve an access token to a
// ticket before the opaque format is tried.
type ReceiveAccessTokenContext struct {
	BaseContext

	AccessToken string
	Ticket      *ticket.Ticket
}

// ReceiveRefreshTokenContext lets the provider resolve a refresh token to a
// ticket before the opaque format is tried.
type ReceiveRefreshTokenContext struct {
	BaseContext

	RefreshToken string
	Ticket       *ticket.Ticket
}
