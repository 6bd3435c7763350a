package oidcserver

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"oidcop/pkg/oidc"

	"github.com/gin-gonic/gin"
)

// handleLogout drives the end-session endpoint. The application tears down
// its own session in HandleLogoutRequest; the middleware only validates the
// exchange and performs the post-logout redirect.
func (s *Server) handleLogout(ctx context.Context, c *gin.Context) {
	ctx, span := s.tracer.Start(ctx, "oidcserver:handleLogout")
	defer span.End()

	var request *oidc.Message
	switch c.Request.Method {
	case http.MethodGet:
		request = oidc.MessageFromValues(c.Request.URL.Query())
	case http.MethodPost:
		if c.ContentType() != "application/x-www-form-urlencoded" {
			s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidRequest, "POST logout requests must use application/x-www-form-urlencoded."))
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The request form could not be parsed."))
			return
		}
		request = oidc.MessageFromValues(c.Request.PostForm)
	default:
		s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The logout endpoint only accepts GET or POST requests."))
		return
	}
	c.Set(ContextKeyRequest, request)

	validate := &ValidateLogoutRequestContext{BaseContext: s.baseContext(c)}
	validate.Request = request
	if err := s.provider.ValidateLogoutRequest(ctx, validate); err != nil {
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
			protocolErr = oidc.NewError(oidc.ErrorCodeInvalidRequest, "The logout request was rejected.")
		}
		s.writeJSONError(c, protocolErr)
		return
	}

	handle := &HandleLogoutRequestContext{BaseContext: s.baseContext(c)}
	handle.Request = request
	if err := s.provider.HandleLogoutRequest(ctx, handle); err != nil {
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

	apply := &ApplyLogoutResponseContext{
		BaseContext:           s.baseContext(c),
		PostLogoutRedirectURI: request.PostLogoutRedirectURI(),
	}
	apply.Request = request
	if err := s.provider.ApplyLogoutResponse(ctx, apply); err != nil {
		s.serverError(c, err)
		return
	}
	if apply.IsHandledResponse() {
		c.Abort()
		return
	}

	if apply.PostLogoutRedirectURI != "" {
		location := apply.PostLogoutRedirectURI
		if state := request.State(); state != "" {
			separator := "?"
			if strings.Contains(location, "?") {
				separator = "&"
			}
			location = location + separator + oidc.ParamState + "=" + url.QueryEscape(state)
		}
		c.Redirect(http.StatusFound, location)
		c.Abort()
		return
	}

	c.Status(http.StatusOK)
	c.Abort()
}
