package oidcserver

import (
	"context"
	"net/http"

	"oidcop/pkg/oidc"

	"github.com/gin-gonic/gin"
)

// handleConfiguration assembles and serves the discovery document.
func (s *Server) handleConfiguration(ctx context.Context, c *gin.Context) {
	ctx, span := s.tracer.Start(ctx, "oidcserver:handleConfiguration")
	defer span.End()

	if c.Request.Method != http.MethodGet {
		s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The configuration endpoint only accepts GET requests."))
		return
	}

	validate := &ValidateConfigurationRequestContext{BaseContext: s.baseContext(c)}
	if err := s.provider.ValidateConfigurationRequest(ctx, validate); err != nil {
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
		err := validate.Error
		if err == nil {
			err = oidc.NewError(oidc.ErrorCodeInvalidRequest, "The configuration request was rejected.")
		}
		s.writeJSONError(c, err)
		return
	}

	metadata := s.assembleMetadata()

	handle := &HandleConfigurationRequestContext{BaseContext: s.baseContext(c), Metadata: metadata}
	if err := s.provider.HandleConfigurationRequest(ctx, handle); err != nil {
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

	apply := &ApplyConfigurationResponseContext{BaseContext: s.baseContext(c), Metadata: handle.Metadata}
	if err := s.provider.ApplyConfigurationResponse(ctx, apply); err != nil {
		s.serverError(c, err)
		return
	}
	if apply.IsHandledResponse() {
		c.Abort()
		return
	}
	if apply.IsSkipped() {
		c.Next()
		return
	}

	s.writeJSON(c, http.StatusOK, apply.Metadata)
}

func (s *Server) assembleMetadata() *ProviderMetadata {
	o := s.options
	issuer := o.issuerURL()

	metadata := &ProviderMetadata{
		Issuer:                o.Issuer,
		ScopesSupported:       []string{oidc.ScopeOpenID},
		SubjectTypesSupported: []string{"public"},
	}

	authorization := o.AuthorizationEndpointPath != ""
	token := o.TokenEndpointPath != ""

	if authorization {
		metadata.AuthorizationEndpoint = issuer + o.AuthorizationEndpointPath
	}
	if token {
		metadata.TokenEndpoint = issuer + o.TokenEndpointPath
		metadata.TokenEndpointAuthMethodsSupported = []string{"client_secret_basic", "client_secret_post"}
	}
	if o.UserinfoEndpointPath != "" {
		metadata.UserinfoEndpoint = issuer + o.UserinfoEndpointPath
	}
	if o.CryptographyEndpointPath != "" {
		metadata.JWKSURI = issuer + o.CryptographyEndpointPath
	}
	if o.IntrospectionEndpointPath != "" {
		metadata.IntrospectionEndpoint = issuer + o.IntrospectionEndpointPath
	}
	if o.RevocationEndpointPath != "" {
		metadata.RevocationEndpoint = issuer + o.RevocationEndpointPath
	}
	if o.LogoutEndpointPath != "" {
		metadata.EndSessionEndpoint = issuer + o.LogoutEndpointPath
	}

	if authorization {
		metadata.GrantTypesSupported = append(metadata.GrantTypesSupported, oidc.GrantTypeImplicit)
	}
	if authorization && token {
		metadata.GrantTypesSupported = append(metadata.GrantTypesSupported, oidc.GrantTypeAuthorizationCode)
	}
	if token {
		metadata.GrantTypesSupported = append(metadata.GrantTypesSupported, oidc.GrantTypeRefreshToken)
	}
	if token && !authorization {
		metadata.GrantTypesSupported = append(metadata.GrantTypesSupported, oidc.GrantTypeClientCredentials, oidc.GrantTypePassword)
	}

	if authorization {
		metadata.ResponseModesSupported = []string{
			oidc.ResponseModeFormPost,
			oidc.ResponseModeFragment,
			oidc.ResponseModeQuery,
		}

		// The implicit and hybrid combinations only make sense with an
		// authorization endpoint; code-bearing combinations also need the
		// token endpoint for redemption.
		metadata.ResponseTypesSupported = append(metadata.ResponseTypesSupported,
			oidc.ResponseTypeToken,
			oidc.ResponseTypeIDToken,
			oidc.ResponseTypeIDToken+" "+oidc.ResponseTypeToken,
		)
		if token {
			metadata.ResponseTypesSupported = append(metadata.ResponseTypesSupported,
				oidc.ResponseTypeCode,
				oidc.ResponseTypeCode+" "+oidc.ResponseTypeToken,
				oidc.ResponseTypeCode+" "+oidc.ResponseTypeIDToken,
				oidc.ResponseTypeCode+" "+oidc.ResponseTypeIDToken+" "+oidc.ResponseTypeToken,
			)
		}
	}

	metadata.IDTokenSigningAlgValuesSupported = []string{"RS256"}
	metadata.ClaimsSupported = []string{
		oidc.ClaimSubject,
		oidc.ClaimIssuer,
		oidc.ClaimAudience,
		oidc.ClaimExpiration,
		oidc.ClaimIssuedAt,
	}

	return metadata
}

// serverError reports a failed notification hook as a protocol server_error.
func (s *Server) serverError(c *gin.Context, err error) {
	s.log.Error(err, "notification hook failed")
	s.setNoCache(c)
	s.writeJSON(c, http.StatusInternalServerError, oidc.NewError(oidc.ErrorCodeServerError, "An internal error occurred while processing the request."))
}
