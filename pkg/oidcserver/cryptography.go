package oidcserver

import (
	"context"
	"net/http"

	"oidcop/pkg/jose"
	"oidcop/pkg/oidc"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// handleCryptography serves the JWKS document built from the configured
// signing and encrypting credentials.
func (s *Server) handleCryptography(ctx context.Context, c *gin.Context) {
	ctx, span := s.tracer.Start(ctx, "oidcserver:handleCryptography")
	defer span.End()

	if c.Request.Method != http.MethodGet {
		s.writeJSONError(c, oidc.NewError(oidc.ErrorCodeInvalidRequest, "The cryptography endpoint only accepts GET requests."))
		return
	}

	validate := &ValidateCryptographyRequestContext{BaseContext: s.baseContext(c)}
	if err := s.provider.ValidateCryptographyRequest(ctx, validate); err != nil {
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
			err = oidc.NewError(oidc.ErrorCodeInvalidRequest, "The cryptography request was rejected.")
		}
		s.writeJSONError(c, err)
		return
	}

	keys := s.assembleKeys()

	handle := &HandleCryptographyRequestContext{BaseContext: s.baseContext(c), Keys: keys}
	if err := s.provider.HandleCryptographyRequest(ctx, handle); err != nil {
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

	apply := &ApplyCryptographyResponseContext{BaseContext: s.baseContext(c), Keys: handle.Keys}
	if err := s.provider.ApplyCryptographyResponse(ctx, apply); err != nil {
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

	// Keys built here always carry a kty (jwk.Import sets it from the key
	// shape); a nil entry added by a hook is excluded rather than published.
	set := jwk.NewSet()
	for _, key := range apply.Keys {
		if key == nil {
			s.log.Debug("excluding empty key from key set")
			continue
		}
		if err := set.AddKey(key); err != nil {
			s.log.Error(err, "failed to add key to key set")
		}
	}

	s.writeJSON(c, http.StatusOK, set)
}

// assembleKeys converts credentials into public JWKs. Keys the middleware
// cannot publish are logged and skipped rather than failing the document.
func (s *Server) assembleKeys() []jwk.Key {
	var keys []jwk.Key

	for _, credential := range s.options.SigningCredentials {
		key, err := jose.PublicJWK(credential, jose.UseSignature)
		if err != nil {
			s.log.Debug("skipping signing credential", "kid", credential.KeyID, "err", err)
			continue
		}
		keys = append(keys, key)
	}

	for _, credential := range s.options.EncryptingCredentials {
		key, err := jose.PublicJWK(credential, jose.UseEncryption)
		if err != nil {
			s.log.Debug("skipping encrypting credential", "kid", credential.KeyID, "err", err)
			continue
		}
		keys = append(keys, key)
	}

	return keys
}
