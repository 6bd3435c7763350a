package oidcserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"oidcop/pkg/oidc"
	"oidcop/pkg/ticket"

	"github.com/gin-gonic/gin"
)

// handleToken drives the token endpoint: client authentication, grant
// dispatch on grant_type, ticket checks, then issuance.
func (s *Server) handleToken(ctx context.Context, c *gin.Context) {
	ctx, span := s.tracer.Start(ctx, "oidcserver:handleToken")
	defer span.End()

	if c.Request.Method != http.MethodPost {
		s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The token endpoint only accepts POST requests."))
		return
	}
	if c.ContentType() != "application/x-www-form-urlencoded" {
		s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidRequest, "Token requests must use application/x-www-form-urlencoded."))
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The request form could not be parsed."))
		return
	}

	request := oidc.MessageFromValues(c.Request.PostForm)
	c.Set(ContextKeyRequest, request)

	// One clock snapshot keeps every timestamp in this issuance consistent.
	now := s.options.Clock().Truncate(time.Millisecond)

	clientID, clientSecret := clientCredentials(c, request)
	authenticate := &ValidateClientAuthenticationContext{
		BaseContext:  s.baseContext(c),
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
	authenticate.Request = request
	if err := s.provider.ValidateClientAuthentication(ctx, authenticate); err != nil {
		s.serverError(c, err)
		return
	}
	if authenticate.IsHandledResponse() {
		c.Abort()
		return
	}
	if authenticate.IsSkipped() {
		c.Next()
		return
	}
	if !authenticate.IsValidated() {
		protocolErr := authenticate.Error
		if protocolErr == nil {
			protocolErr = oidc.NewError(oidc.ErrorCodeInvalidClient, "Client authentication failed.")
		}
		s.writeJSONError(c, protocolErr)
		return
	}

	grant, protocolErr := s.resolveGrant(ctx, c, request, authenticate.ClientID, now)
	if protocolErr != nil {
		s.writeJSONError(c, protocolErr)
		return
	}
	if grant == nil {
		// A hook wrote the response or handed the request onwards.
		return
	}

	s.issueTokens(ctx, c, grant, request, now)
}

// resolveGrant turns the grant_type parameter into an authenticated ticket.
// A nil ticket with a nil error means a hook finished the exchange itself.
func (s *Server) resolveGrant(ctx context.Context, c *gin.Context, request *oidc.Message, clientID string, now time.Time) (*ticket.Ticket, *oidc.Error) {
	switch grantType := request.GrantType(); grantType {
	case oidc.GrantTypeAuthorizationCode:
		return s.resolveAuthorizationCodeGrant(ctx, c, request, clientID, now)

	case oidc.GrantTypePassword:
		e := &GrantResourceOwnerCredentialsContext{BaseContext: s.baseContext(c)}
		e.Request = request
		return s.resolveHookGrant(ctx, c, request, hookGrant{
			run:          func() error { return s.provider.GrantResourceOwnerCredentials(ctx, e) },
			base:         &e.BaseContext,
			ticket:       func() *ticket.Ticket { return e.Ticket },
			defaultError: oidc.NewError(oidc.ErrorCodeInvalidGrant, "The resource owner credentials are invalid."),
		})

	case oidc.GrantTypeClientCredentials:
		e := &GrantClientCredentialsContext{BaseContext: s.baseContext(c)}
		e.Request = request
		return s.resolveHookGrant(ctx, c, request, hookGrant{
			run:          func() error { return s.provider.GrantClientCredentials(ctx, e) },
			base:         &e.BaseContext,
			ticket:       func() *ticket.Ticket { return e.Ticket },
			defaultError: oidc.NewError(oidc.ErrorCodeUnauthorizedClient, "The client is not allowed to use the client credentials grant."),
		})

	case oidc.GrantTypeRefreshToken:
		return s.resolveRefreshTokenGrant(ctx, c, request, now)

	case "":
		return nil, oidc.NewError(oidc.ErrorCodeUnsupportedGrantType, "grant_type is missing.")

	default:
		e := &GrantCustomExtensionContext{BaseContext: s.baseContext(c), GrantType: grantType}
		e.Request = request
		return s.resolveHookGrant(ctx, c, request, hookGrant{
			run:          func() error { return s.provider.GrantCustomExtension(ctx, e) },
			base:         &e.BaseContext,
			ticket:       func() *ticket.Ticket { return e.Ticket },
			defaultError: oidc.NewError(oidc.ErrorCodeUnsupportedGrantType, "The grant type is not supported by this server."),
		})
	}
}

type hookGrant struct {
	run          func() error
	base         *BaseContext
	ticket       func() *ticket.Ticket
	defaultError *oidc.Error
}

func (s *Server) resolveHookGrant(ctx context.Context, c *gin.Context, request *oidc.Message, grant hookGrant) (*ticket.Ticket, *oidc.Error) {
	if err := grant.run(); err != nil {
		s.serverError(c, err)
		return nil, nil
	}
	if grant.base.IsHandledResponse() {
		c.Abort()
		return nil, nil
	}
	if grant.base.IsSkipped() {
		c.Next()
		return nil, nil
	}

	t := grant.ticket()
	if grant.base.IsRejected() || !grant.base.IsValidated() || t == nil {
		if grant.base.Error != nil {
			return nil, grant.base.Error
		}
		return nil, grant.defaultError
	}

	return t, nil
}

func (s *Server) resolveAuthorizationCodeGrant(ctx context.Context, c *gin.Context, request *oidc.Message, clientID string, now time.Time) (*ticket.Ticket, *oidc.Error) {
	invalidGrant := func(description string) *oidc.Error {
		return oidc.NewError(oidc.ErrorCodeInvalidGrant, description)
	}

	code := request.Code()
	if code == "" {
		return nil, invalidGrant("The authorization code is missing.")
	}

	// The code is consumed here whether or not the checks below pass.
	t, err := s.receiveAuthorizationCode(ctx, c, code, request)
	if err != nil {
		s.serverError(c, err)
		return nil, nil
	}
	if t == nil {
		return nil, invalidGrant("The authorization code is invalid or has already been redeemed.")
	}

	if t.IsExpired(now) {
		return nil, invalidGrant("The authorization code has expired.")
	}

	expectedClient := t.GetProperty(ticket.PropertyClientID)
	if presented := presentedClientID(request, clientID); expectedClient == "" || expectedClient != presented {
		return nil, invalidGrant("The authorization code was issued to another client.")
	}

	if stored := t.GetProperty(ticket.PropertyRedirectURI); stored != "" && stored != request.RedirectURI() {
		return nil, invalidGrant("The redirect_uri does not match the authorization request.")
	}

	e := &GrantAuthorizationCodeContext{BaseContext: s.baseContext(c), Ticket: t}
	e.Request = request
	return s.resolveHookGrant(ctx, c, request, hookGrant{
		run:          func() error { return s.provider.GrantAuthorizationCode(ctx, e) },
		base:         &e.BaseContext,
		ticket:       func() *ticket.Ticket { return e.Ticket },
		defaultError: invalidGrant("The authorization code grant was rejected."),
	})
}

func (s *Server) resolveRefreshTokenGrant(ctx context.Context, c *gin.Context, request *oidc.Message, now time.Time) (*ticket.Ticket, *oidc.Error) {
	refreshToken := request.RefreshToken()
	if refreshToken == "" {
		return nil, oidc.NewError(oidc.ErrorCodeInvalidGrant, "The refresh token is missing.")
	}

	t, err := s.receiveRefreshToken(ctx, c, refreshToken, request)
	if err != nil {
		s.serverError(c, err)
		return nil, nil
	}
	if t == nil {
		return nil, oidc.NewError(oidc.ErrorCodeInvalidGrant, "The refresh token is invalid.")
	}
	if t.IsExpired(now) {
		return nil, oidc.NewError(oidc.ErrorCodeInvalidGrant, "The refresh token has expired.")
	}

	e := &GrantRefreshTokenContext{BaseContext: s.baseContext(c), Ticket: t}
	e.Request = request
	return s.resolveHookGrant(ctx, c, request, hookGrant{
		run:          func() error { return s.provider.GrantRefreshToken(ctx, e) },
		base:         &e.BaseContext,
		ticket:       func() *ticket.Ticket { return e.Ticket },
		defaultError: oidc.NewError(oidc.ErrorCodeInvalidGrant, "The refresh token grant was rejected."),
	})
}

// issueTokens resets the issuance window on the granted ticket and writes the
// token response.
func (s *Server) issueTokens(ctx context.Context, c *gin.Context, grant *ticket.Ticket, request *oidc.Message, now time.Time) {
	grant.Properties.IssuedAt = now
	grant.Properties.ExpiresAt = now.Add(s.options.AccessTokenLifetime)

	endpoint := &TokenEndpointContext{BaseContext: s.baseContext(c), Ticket: grant}
	endpoint.Request = request
	if err := s.provider.TokenEndpoint(ctx, endpoint); err != nil {
		s.serverError(c, err)
		return
	}
	if endpoint.IsHandledResponse() {
		c.Abort()
		return
	}
	if endpoint.IsSkipped() {
		c.Next()
		return
	}
	if endpoint.Ticket != nil {
		grant = endpoint.Ticket
	}

	response := oidc.NewMessage()
	response.Set(oidc.ParamTokenType, oidc.TokenTypeBearer)

	accessToken, expiresIn, err := s.createAccessToken(ctx, c, grant.Clone(), request, response, now)
	if err != nil {
		s.log.Error(err, "access token issuance failed")
		s.writeServerErrorJSON(c)
		return
	}
	response.Set(oidc.ParamAccessToken, accessToken)
	response.Set(oidc.ParamExpiresIn, strconv.FormatInt(expiresIn, 10))

	if grant.HasScope(oidc.ScopeOpenID) {
		identityToken, err := s.createIdentityToken(ctx, c, grant.Clone(), request, response, now)
		if err != nil {
			s.log.Error(err, "identity token issuance failed")
			s.writeServerErrorJSON(c)
			return
		}
		response.Set(oidc.ParamIDToken, identityToken)
	}

	// Refreshing a refresh token only rolls it over under sliding
	// expiration; every other grant always gets one.
	if !request.IsRefreshTokenGrant() || s.options.UseSlidingExpiration {
		refreshToken, err := s.createRefreshToken(ctx, c, grant.Clone(), request, now)
		if err != nil {
			s.log.Error(err, "refresh token issuance failed")
			s.writeServerErrorJSON(c)
			return
		}
		response.Set(oidc.ParamRefreshToken, refreshToken)
	}

	final := &TokenEndpointResponseContext{BaseContext: s.baseContext(c), Ticket: grant}
	final.Request = request
	final.Response = response
	if err := s.provider.TokenEndpointResponse(ctx, final); err != nil {
		s.serverError(c, err)
		return
	}
	if final.IsHandledResponse() {
		c.Abort()
		return
	}

	s.writeJSONNoCache(c, http.StatusOK, messageJSON(response))
}

func (s *Server) writeServerErrorJSON(c *gin.Context) {
	s.writeJSONNoCache(c, http.StatusInternalServerError, oidc.NewError(oidc.ErrorCodeServerError, "The token request could not be completed."))
}

// clientCredentials extracts the client id and secret from HTTP basic
// authentication or, failing that, the form body.
func clientCredentials(c *gin.Context, request *oidc.Message) (string, string) {
	if id, secret, ok := c.Request.BasicAuth(); ok {
		return id, secret
	}
	return request.ClientID(), request.ClientSecret()
}

// presentedClientID is the client identity used for ownership checks: the
// identity confirmed by ValidateClientAuthentication when the provider set
// one, otherwise the id presented on the request.
func presentedClientID(request *oidc.Message, authenticated string) string {
	if authenticated != "" {
		return authenticated
	}
	return request.ClientID()
}
