package oidcserver

import (
	"context"
	"net/http"

	"oidcop/pkg/oidc"

	"github.com/gin-gonic/gin"
)

// handleRevocation answers RFC 7009 revocation requests. Per the RFC an
// unknown token is still a 200: the desired outcome, a dead token, already
// holds.
func (s *Server) handleRevocation(ctx context.Context, c *gin.Context) {
	ctx, span := s.tracer.Start(ctx, "oidcserver:handleRevocation")
	defer span.End()

	request, protocolErr := parseFormRequest(c, "revocation")
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

	validate := &ValidateRevocationRequestContext{
		BaseContext:   s.baseContext(c),
		Token:         token,
		TokenTypeHint: request.Get(oidc.ParamTokenTypeHint),
	}
	validate.Request = request
	if err := s.provider.ValidateRevocationRequest(ctx, validate); err != nil {
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

	// An authorization code lives in the cache; taking it is revoking it.
	// Self-contained tokens are the provider's to kill through the hook.
	revoked := false
	if payload, err := s.options.Cache.Take(ctx, codeCachePrefix+token); err == nil && payload != nil {
		revoked = true
	}

	handle := &HandleRevocationRequestContext{BaseContext: s.baseContext(c), Token: token, Revoked: revoked}
	handle.Request = request
	if err := s.provider.HandleRevocationRequest(ctx, handle); err != nil {
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

	apply := &ApplyRevocationResponseContext{BaseContext: s.baseContext(c)}
	apply.Request = request
	if err := s.provider.ApplyRevocationResponse(ctx, apply); err != nil {
		s.serverError(c, err)
		return
	}
	if apply.IsHandledResponse() {
		c.Abort()
		return
	}

	s.writeJSONNoCache(c, http.StatusOK, gin.H{})
}
