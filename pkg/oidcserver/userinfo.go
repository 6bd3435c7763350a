package oidcserver

import (
	"context"
	"net/http"
	"strings"

	"oidcop/pkg/oidc"
	"oidcop/pkg/ticket"

	"github.com/gin-gonic/gin"
)

// handleUserinfo serves the standard claims for the subject of a live access
// token. Failures answer 400 rather than 401 so an upstream authentication
// middleware on the same pipeline is not tripped by our challenge.
func (s *Server) handleUserinfo(ctx context.Context, c *gin.Context) {
	ctx, span := s.tracer.Start(ctx, "oidcserver:handleUserinfo")
	defer span.End()

	request, protocolErr := parseUserinfoRequest(c)
	if protocolErr != nil {
		s.writeJSONError(c, protocolErr)
		return
	}
	c.Set(ContextKeyRequest, request)

	accessToken := resolveBearerToken(c, request)
	if accessToken == "" {
		s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidRequest, "No access token was provided."))
		return
	}

	t, err := s.receiveAccessToken(ctx, c, accessToken, request)
	if err != nil {
		s.serverError(c, err)
		return
	}
	if t == nil {
		s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidGrant, "Invalid token."))
		return
	}
	if t.IsExpired(s.options.Clock()) {
		s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidGrant, "Expired token."))
		return
	}

	validate := &ValidateUserinfoRequestContext{BaseContext: s.baseContext(c), AccessToken: accessToken, Ticket: t}
	validate.Request = request
	if err := s.provider.ValidateUserinfoRequest(ctx, validate); err != nil {
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
			protocolErr = oidc.NewError(oidc.ErrorCodeInvalidGrant, "The userinfo request was rejected.")
		}
		s.writeJSONError(c, protocolErr)
		return
	}

	claims := s.assembleUserinfoClaims(t)

	handle := &HandleUserinfoRequestContext{BaseContext: s.baseContext(c), Ticket: t, Claims: claims}
	handle.Request = request
	if err := s.provider.HandleUserinfoRequest(ctx, handle); err != nil {
		s.serverError(c, err)
		return
	}
	if handle.IsHandledResponse() {
		c.Abort()
		return
	}
	if handle.IsSkipped() {
		c.Next()
		return
	}

	// sub is the one claim the response cannot do without.
	if subject, _ := handle.Claims[oidc.ClaimSubject].(string); subject == "" {
		s.log.Error(nil, "userinfo response has no sub claim after hooks")
		s.writeJSONNoCache(c, http.StatusInternalServerError, oidc.NewError(oidc.ErrorCodeServerError, "The userinfo response could not be assembled."))
		return
	}

	apply := &ApplyUserinfoResponseContext{BaseContext: s.baseContext(c), Claims: handle.Claims}
	apply.Request = request
	if err := s.provider.ApplyUserinfoResponse(ctx, apply); err != nil {
		s.serverError(c, err)
		return
	}
	if apply.IsHandledResponse() {
		c.Abort()
		return
	}

	s.writeJSONNoCache(c, http.StatusOK, apply.Claims)
}

func parseUserinfoRequest(c *gin.Context) (*oidc.Message, *oidc.Error) {
	switch c.Request.Method {
	case http.MethodGet:
		return oidc.MessageFromValues(c.Request.URL.Query()), nil

	case http.MethodPost:
		if c.ContentType() != "application/x-www-form-urlencoded" {
			return nil, oidc.NewError(oidc.ErrorCodeInvalidRequest, "POST userinfo requests must use application/x-www-form-urlencoded.")
		}
		if err := c.Request.ParseForm(); err != nil {
			return nil, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The request form could not be parsed.")
		}
		return oidc.MessageFromValues(c.Request.PostForm), nil

	default:
		return nil, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The userinfo endpoint only accepts GET or POST requests.")
	}
}

// resolveBearerToken reads the access token from the request parameter or
// the Authorization header.
func resolveBearerToken(c *gin.Context, request *oidc.Message) string {
	if token := request.AccessToken(); token != "" {
		return token
	}

	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}

	return ""
}

// assembleUserinfoClaims builds the default claim map: the mandatory sub,
// the audience derived from the recorded presenters, and the standard OIDC
// claims gated by the granted scope.
func (s *Server) assembleUserinfoClaims(t *ticket.Ticket) map[string]any {
	claims := map[string]any{}

	if subject := t.Subject(); subject != "" {
		claims[oidc.ClaimSubject] = subject
	}

	switch presenters := t.Presenters(); len(presenters) {
	case 0:
	case 1:
		claims[oidc.ClaimAudience] = presenters[0]
	default:
		claims[oidc.ClaimAudience] = presenters
	}

	copyClaim := func(name string) {
		if value := t.Identity.FirstValue(name); value != "" {
			claims[name] = value
		}
	}

	if t.HasScope(oidc.ScopeProfile) {
		copyClaim(oidc.ClaimName)
		copyClaim(oidc.ClaimFamilyName)
		copyClaim(oidc.ClaimGivenName)
		copyClaim(oidc.ClaimBirthdate)
	}
	if t.HasScope(oidc.ScopeEmail) {
		copyClaim(oidc.ClaimEmail)
		if value := t.Identity.FirstValue(oidc.ClaimEmailVerified); value != "" {
			claims[oidc.ClaimEmailVerified] = value == "true"
		}
	}
	if t.HasScope(oidc.ScopePhone) {
		copyClaim(oidc.ClaimPhoneNumber)
		if value := t.Identity.FirstValue(oidc.ClaimPhoneNumberVerified); value != "" {
			claims[oidc.ClaimPhoneNumberVerified] = value == "true"
		}
	}

	return claims
}
