package oidcserver

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"oidcop/pkg/oidc"
	"oidcop/pkg/ticket"

	"github.com/gin-gonic/gin"
)

// handleAuthorization drives the authorization endpoint state machine:
// parse, confirm the redirect_uri, validate the protocol parameters, hand
// off to the application for the interactive sign-in, then build and emit
// the response grant once the inner pipeline returns.
func (s *Server) handleAuthorization(ctx context.Context, c *gin.Context) {
	ctx, span := s.tracer.Start(ctx, "oidcserver:handleAuthorization")
	defer span.End()

	request, parseErr := parseAuthorizationRequest(c)
	if parseErr != nil {
		response := oidc.NewMessage()
		response.SetError(parseErr)
		s.writeErrorPage(c, response)
		return
	}
	c.Set(ContextKeyRequest, request)

	if !s.confirmRedirectURI(ctx, c, request) {
		return
	}

	if protocolErr := s.validateAuthorizationParameters(request); protocolErr != nil {
		s.writeAuthorizationError(ctx, c, request, protocolErr)
		return
	}

	validate := &ValidateAuthorizationRequestContext{BaseContext: s.baseContext(c)}
	validate.Request = request
	if err := s.provider.ValidateAuthorizationRequest(ctx, validate); err != nil {
		s.serverError(c, err)
		return
	}
	if validate.IsHandledResponse() {
		c.Abort()
		return
	}
	if validate.IsSkipped() {
		c.Next()
		return
	}
	if !validate.IsValidated() {
		protocolErr := validate.Error
		if protocolErr == nil {
			protocolErr = oidc.NewError(oidc.ErrorCodeInvalidRequest, "The authorization request was rejected.")
		}
		s.writeAuthorizationError(ctx, c, request, protocolErr)
		return
	}

	handle := &HandleAuthorizationRequestContext{BaseContext: s.baseContext(c)}
	handle.Request = request
	if err := s.provider.HandleAuthorizationRequest(ctx, handle); err != nil {
		s.serverError(c, err)
		return
	}
	if handle.IsHandledResponse() || handle.IsRequestCompleted() {
		c.Abort()
		return
	}
	if handle.IsSkipped() {
		c.Next()
		return
	}

	// Interactive handoff: the application renders its sign-in surface and
	// calls SignIn when the subject authenticated.
	c.Next()

	s.completeAuthorization(ctx, c, request)
}

func parseAuthorizationRequest(c *gin.Context) (*oidc.Message, *oidc.Error) {
	switch c.Request.Method {
	case http.MethodGet:
		return oidc.MessageFromValues(c.Request.URL.Query()), nil

	case http.MethodPost:
		contentType := c.ContentType()
		if contentType != "application/x-www-form-urlencoded" {
			return nil, oidc.NewError(oidc.ErrorCodeInvalidRequest, "POST authorization requests must use application/x-www-form-urlencoded.")
		}
		if err := c.Request.ParseForm(); err != nil {
			return nil, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The request form could not be parsed.")
		}
		return oidc.MessageFromValues(c.Request.PostForm), nil

	default:
		return nil, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The authorization endpoint only accepts GET or POST requests.")
	}
}

// confirmRedirectURI syntactically validates the redirect_uri and asks the
// provider to confirm it belongs to the client. An unconfirmed redirect_uri
// is scrubbed from the stored request so later errors render on the error
// page instead of bouncing to an attacker-controlled URI.
func (s *Server) confirmRedirectURI(ctx context.Context, c *gin.Context, request *oidc.Message) bool {
	if redirectURI := request.RedirectURI(); redirectURI != "" {
		if protocolErr := s.validateRedirectURI(redirectURI); protocolErr != nil {
			request.Del(oidc.ParamRedirectURI)
			response := oidc.NewMessage()
			response.SetError(protocolErr)
			s.writeErrorPage(c, response)
			return false
		}
	}

	validate := &ValidateClientRedirectURIContext{
		BaseContext: s.baseContext(c),
		ClientID:    request.ClientID(),
		RedirectURI: request.RedirectURI(),
	}
	validate.Request = request
	if err := s.provider.ValidateClientRedirectURI(ctx, validate); err != nil {
		s.serverError(c, err)
		return false
	}
	if validate.IsHandledResponse() {
		c.Abort()
		return false
	}
	if validate.IsSkipped() {
		c.Next()
		return false
	}
	if !validate.IsValidated() {
		request.Del(oidc.ParamRedirectURI)

		protocolErr := validate.Error
		if protocolErr == nil {
			protocolErr = oidc.NewError(oidc.ErrorCodeInvalidClient, "The client or its redirect_uri could not be validated.")
		}
		response := oidc.NewMessage()
		response.SetError(protocolErr)
		if state := request.State(); state != "" {
			response.Set(oidc.ParamState, state)
		}
		s.writeErrorPage(c, response)
		return false
	}

	// The provider may have resolved the registered redirect_uri for a
	// request that omitted it.
	if validate.RedirectURI != "" && validate.RedirectURI != request.RedirectURI() {
		request.Set(oidc.ParamRedirectURI, validate.RedirectURI)
	}

	return true
}

func (s *Server) validateRedirectURI(redirectURI string) *oidc.Error {
	parsed, err := url.Parse(redirectURI)
	if err != nil || !parsed.IsAbs() {
		return oidc.NewError(oidc.ErrorCodeInvalidRequest, "redirect_uri must be an absolute URI.")
	}
	if parsed.Fragment != "" {
		return oidc.NewError(oidc.ErrorCodeInvalidRequest, "redirect_uri must not contain a fragment.")
	}
	if parsed.Scheme != "https" && !s.options.AllowInsecureHTTP {
		return oidc.NewError(oidc.ErrorCodeInvalidRequest, "redirect_uri must use https.")
	}
	return nil
}

func (s *Server) validateAuthorizationParameters(request *oidc.Message) *oidc.Error {
	responseType := request.ResponseType()
	if responseType == "" {
		return oidc.NewError(oidc.ErrorCodeInvalidRequest, "response_type is missing.")
	}
	if !isRecognizedResponseType(responseType) {
		return oidc.NewError(oidc.ErrorCodeUnsupportedResponseType, "The response_type is not supported by this server.")
	}

	switch request.ResponseMode() {
	case "", oidc.ResponseModeQuery, oidc.ResponseModeFragment, oidc.ResponseModeFormPost:
	default:
		return oidc.NewError(oidc.ErrorCodeInvalidRequest, "The response_mode is not supported by this server.")
	}

	if request.HasResponseType(oidc.ResponseTypeIDToken) && s.options.signingCredential() == nil {
		return oidc.NewError(oidc.ErrorCodeUnsupportedResponseType, "No signing credentials are configured; id_token responses cannot be produced.")
	}
	if request.HasResponseType(oidc.ResponseTypeCode) && s.options.TokenEndpointPath == "" {
		return oidc.NewError(oidc.ErrorCodeUnsupportedResponseType, "The token endpoint is disabled; authorization codes cannot be redeemed.")
	}
	if request.HasResponseType(oidc.ResponseTypeIDToken) && !request.HasScope(oidc.ScopeOpenID) {
		return oidc.NewError(oidc.ErrorCodeInvalidRequest, "The openid scope is required for id_token responses.")
	}

	return nil
}

func isRecognizedResponseType(responseType string) bool {
	parts := strings.Fields(responseType)
	if len(parts) == 0 {
		return false
	}

	seen := map[string]bool{}
	for _, part := range parts {
		switch part {
		case oidc.ResponseTypeCode, oidc.ResponseTypeToken, oidc.ResponseTypeIDToken:
		default:
			return false
		}
		if seen[part] {
			return false
		}
		seen[part] = true
	}
	return true
}

// completeAuthorization is the response-grant teardown. It runs after the
// inner pipeline and turns a sign-in grant into the protocol response.
func (s *Server) completeAuthorization(ctx context.Context, c *gin.Context, request *oidc.Message) {
	ctx, span := s.tracer.Start(ctx, "oidcserver:completeAuthorization")
	defer span.End()

	grant := signInTicket(c)
	if grant == nil {
		return
	}
	if c.Writer.Status() != http.StatusOK {
		s.log.Debug("inner pipeline finished without a usable status", "status", c.Writer.Status())
		return
	}
	if c.Writer.Written() {
		// An inner handler already streamed a body; writing the protocol
		// response now would corrupt it.
		s.log.Error(nil, "response already started, dropping authorization response")
		c.Abort()
		return
	}

	now := s.options.Clock().Truncate(time.Second)

	grant.SetProperty(ticket.PropertyClientID, request.ClientID())
	if redirectURI := request.RedirectURI(); redirectURI != "" {
		grant.SetProperty(ticket.PropertyRedirectURI, redirectURI)
	}
	if grant.GetProperty(ticket.PropertyScope) == "" && request.Scope() != "" {
		grant.SetProperty(ticket.PropertyScope, request.Scope())
	}
	if len(grant.Presenters()) == 0 && request.ClientID() != "" {
		grant.SetPresenters(request.ClientID())
	}

	response := oidc.NewMessage()

	if request.HasResponseType(oidc.ResponseTypeCode) {
		code, err := s.createAuthorizationCode(ctx, c, grant.Clone(), request, response, now)
		if err != nil {
			s.log.Error(err, "authorization code issuance failed")
			s.writeAuthorizationError(ctx, c, request, oidc.NewError(oidc.ErrorCodeServerError, "The authorization code could not be issued."))
			return
		}
		response.Set(oidc.ParamCode, code)
	}

	if request.HasResponseType(oidc.ResponseTypeToken) {
		accessToken, expiresIn, err := s.createAccessToken(ctx, c, grant.Clone(), request, response, now)
		if err != nil {
			s.log.Error(err, "access token issuance failed")
			s.writeAuthorizationError(ctx, c, request, oidc.NewError(oidc.ErrorCodeServerError, "The access token could not be issued."))
			return
		}
		response.Set(oidc.ParamAccessToken, accessToken)
		response.Set(oidc.ParamTokenType, oidc.TokenTypeBearer)
		response.Set(oidc.ParamExpiresIn, strconv.FormatInt(expiresIn, 10))
	}

	if request.HasResponseType(oidc.ResponseTypeIDToken) {
		identityToken, err := s.createIdentityToken(ctx, c, grant.Clone(), request, response, now)
		if err != nil {
			s.log.Error(err, "identity token issuance failed")
			s.writeAuthorizationError(ctx, c, request, oidc.NewError(oidc.ErrorCodeServerError, "The identity token could not be issued."))
			return
		}
		response.Set(oidc.ParamIDToken, identityToken)
	}

	if state := request.State(); state != "" {
		response.Set(oidc.ParamState, state)
	}

	apply := &ApplyAuthorizationResponseContext{BaseContext: s.baseContext(c), Ticket: grant}
	apply.Request = request
	apply.Response = response
	if err := s.provider.ApplyAuthorizationResponse(ctx, apply); err != nil {
		s.serverError(c, err)
		return
	}
	if apply.IsHandledResponse() {
		c.Abort()
		return
	}

	s.writeAuthorizationResponse(ctx, c, request, response)
}
