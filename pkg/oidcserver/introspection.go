package oidcserver

import (
	"context"
	"net/http"

	"oidcop/pkg/oidc"
	"oidcop/pkg/ticket"

	"github.com/gin-gonic/gin"
)

// handleIntrospection answers RFC 7662 introspection requests. Tokens the
// server cannot resolve stay HTTP 200 with an inactive verdict so callers
// cannot probe token existence through status codes.
func (s *Server) handleIntrospection(ctx context.Context, c *gin.Context) {
	ctx, span := s.tracer.Start(ctx, "oidcserver:handleIntrospection")
	defer span.End()

	request, protocolErr := parseFormRequest(c, "introspection")
	if protocolErr != nil {
		s.writeJSONError(c, protocolErr)
		return
	}
	c.Set(ContextKeyRequest, request)

	token := request.Token()
	if token == "" {
		s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The token parameter is missing."))
		return
	}

	validate := &ValidateIntrospectionRequestContext{
		BaseContext:   s.baseContext(c),
		Token:         token,
		TokenTypeHint: request.Get(oidc.ParamTokenTypeHint),
	}
	validate.Request = request
	if err := s.provider.ValidateIntrospectionRequest(ctx, validate); err != nil {
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
			protocolErr = oidc.NewError(oidc.ErrorCodeInvalidClient, "Client authentication failed.")
		}
		s.writeJSONError(c, protocolErr)
		return
	}

	t := s.resolveIntrospectedToken(ctx, c, token, request)

	now := s.options.Clock()
	active := t != nil && !t.IsExpired(now)

	claims := map[string]any{"active": active}
	if active {
		if subject := t.Subject(); subject != "" {
			claims[oidc.ClaimSubject] = subject
		}
		if clientID := t.GetProperty(ticket.PropertyClientID); clientID != "" {
			claims[oidc.ParamClientID] = clientID
		}
		if scope := t.GetProperty(ticket.PropertyScope); scope != "" {
			claims[oidc.ParamScope] = scope
		}
		if !t.Properties.IssuedAt.IsZero() {
			claims[oidc.ClaimIssuedAt] = t.Properties.IssuedAt.Unix()
		}
		if !t.Properties.ExpiresAt.IsZero() {
			claims[oidc.ClaimExpiration] = t.Properties.ExpiresAt.Unix()
		}
		switch presenters := t.Presenters(); len(presenters) {
		case 0:
		case 1:
			claims[oidc.ClaimAudience] = presenters[0]
		default:
			claims[oidc.ClaimAudience] = presenters
		}
		claims[oidc.ParamTokenType] = oidc.TokenTypeBearer
	}

	handle := &HandleIntrospectionRequestContext{
		BaseContext: s.baseContext(c),
		Token:       token,
		Ticket:      t,
		Active:      active,
		Claims:      claims,
	}
	handle.Request = request
	if err := s.provider.HandleIntrospectionRequest(ctx, handle); err != nil {
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
	if !handle.Active {
		handle.Claims = map[string]any{"active": false}
	}

	apply := &ApplyIntrospectionResponseContext{BaseContext: s.baseContext(c), Claims: handle.Claims}
	apply.Request = request
	if err := s.provider.ApplyIntrospectionResponse(ctx, apply); err != nil {
		s.serverError(c, err)
		return
	}
	if apply.IsHandledResponse() {
		c.Abort()
		return
	}

	s.writeJSONNoCache(c, http.StatusOK, apply.Claims)
}

// resolveIntrospectedToken tries the opaque access token shape first, then
// the refresh token shape. Codes are not introspectable.
func (s *Server) resolveIntrospectedToken(ctx context.Context, c *gin.Context, token string, request *oidc.Message) *ticket.Ticket {
	if t, err := s.receiveAccessToken(ctx, c, token, request); err == nil && t != nil {
		return t
	}
	if t, err := s.receiveRefreshToken(ctx, c, token, request); err == nil && t != nil {
		return t
	}
	return nil
}

func parseFormRequest(c *gin.Context, endpoint string) (*oidc.Message, *oidc.Error) {
	if c.Request.Method != http.MethodPost {
		return nil, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The "+endpoint+" endpoint only accepts POST requests.")
	}
	if c.ContentType() != "application/x-www-form-urlencoded" {
		return nil, oidc.NewError(oidc.ErrorCodeInvalidRequest, "Requests must use application/x-www-form-urlencoded.")
	}
	if err := c.Request.ParseForm(); err != nil {
		return nil, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The request form could not be parsed.")
	}
	return oidc.MessageFromValues(c.Request.PostForm), nil
}
