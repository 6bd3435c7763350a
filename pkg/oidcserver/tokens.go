package oidcserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"oidcop/pkg/jose"
	"oidcop/pkg/oidc"
	"oidcop/pkg/ticket"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// codeCachePrefix namespaces authorization codes inside the shared cache.
const codeCachePrefix = "oidcop:code:"

// codeKeyBytes is the entropy of an authorization code cache key. Keys are
// base64url encoded so they survive URL placement without a second encoding
// round.
const codeKeyBytes = 32

var errNoIdentityTokenHandler = errors.New("no identity token handler is configured")

// createAuthorizationCode seals the ticket, stores it in the cache under a
// random 256-bit key, and returns the key as the code handed to the client.
func (s *Server) createAuthorizationCode(ctx context.Context, c *gin.Context, t *ticket.Ticket, request, response *oidc.Message, now time.Time) (string, error) {
	if s.options.TokenEndpointPath == "" {
		return "", errors.New("authorization codes require the token endpoint")
	}

	t.Properties.IssuedAt = now
	t.Properties.ExpiresAt = now.Add(s.options.AuthorizationCodeLifetime)

	e := &CreateAuthorizationCodeContext{BaseContext: s.baseContext(c), Ticket: t}
	e.Request = request
	e.Response = response
	if err := s.provider.CreateAuthorizationCode(ctx, e); err != nil {
		return "", err
	}
	if e.AuthorizationCode != "" {
		return e.AuthorizationCode, nil
	}
	if e.Ticket != nil {
		t = e.Ticket
	}

	payload, err := s.options.AuthorizationCodeFormat.Protect(t)
	if err != nil {
		return "", err
	}

	raw := make([]byte, codeKeyBytes)
	if _, err := io.ReadFull(s.options.Rand, raw); err != nil {
		return "", err
	}
	key := base64.RawURLEncoding.EncodeToString(raw)

	if err := s.options.Cache.Set(ctx, codeCachePrefix+key, []byte(payload), s.options.AuthorizationCodeLifetime); err != nil {
		return "", err
	}

	return key, nil
}

// createAccessToken mints the access token: claims filtered by destination,
// then either a signed JWT (when a handler is configured) or the opaque
// protected ticket.
func (s *Server) createAccessToken(ctx context.Context, c *gin.Context, t *ticket.Ticket, request, response *oidc.Message, now time.Time) (string, int64, error) {
	t.Properties.IssuedAt = now
	t.Properties.ExpiresAt = now.Add(s.options.AccessTokenLifetime)

	e := &CreateAccessTokenContext{BaseContext: s.baseContext(c), Ticket: t}
	e.Request = request
	e.Response = response
	if err := s.provider.CreateAccessToken(ctx, e); err != nil {
		return "", 0, err
	}
	if e.Ticket != nil {
		t = e.Ticket
	}
	expiresIn := int64(t.Properties.ExpiresAt.Sub(t.Properties.IssuedAt).Seconds())
	if e.AccessToken != "" {
		return e.AccessToken, expiresIn, nil
	}

	// With a JWT handler and no encrypting credentials the token is readable
	// by anyone, so claims need an explicit opt-in. The opaque and encrypted
	// shapes are confidential and also keep claims with no declared
	// destination.
	confidential := s.options.AccessTokenHandler == nil || len(s.options.EncryptingCredentials) > 0
	t.Identity.Claims = filterClaims(t.Identity.Claims, func(claim *ticket.Claim) bool {
		if claim.Type == oidc.ClaimSubject || claim.Type == ticket.ClaimTypeNameIdentifier {
			return true
		}
		if claim.HasDestination(ticket.DestinationAccessToken) {
			return true
		}
		return confidential && len(claim.Destinations()) == 0
	})

	if s.options.AccessTokenHandler == nil {
		token, err := s.options.AccessTokenFormat.Protect(t)
		if err != nil {
			return "", 0, err
		}
		return token, expiresIn, nil
	}

	credential := s.options.signingCredential()
	if credential == nil {
		return "", 0, errors.New("a JWT access token requires signing credentials")
	}

	claims := jwt.MapClaims{
		oidc.ClaimIssuer:     s.options.issuerWithSlash(),
		oidc.ClaimIssuedAt:   t.Properties.IssuedAt.Unix(),
		oidc.ClaimExpiration: t.Properties.ExpiresAt.Unix(),
		oidc.ClaimJWTID:      uuid.NewString(),
	}
	if subject := t.Subject(); subject != "" {
		claims[oidc.ClaimSubject] = subject
	}
	if resource := request.Resource(); resource != "" {
		claims[oidc.ClaimAudience] = strings.Fields(resource)
	}
	for _, claim := range t.Identity.Claims {
		if claim.Type == oidc.ClaimSubject || claim.Type == ticket.ClaimTypeNameIdentifier {
			continue
		}
		claims[claim.Type] = claim.Value
	}
	if scope := t.GetProperty(ticket.PropertyScope); scope != "" {
		claims[oidc.ParamScope] = scope
	}

	token, err := s.options.AccessTokenHandler(credential, claims)
	if err != nil {
		return "", 0, err
	}
	return token, expiresIn, nil
}

// createIdentityToken mints the signed id_token. Missing signing credentials
// or a missing subject are fatal for the current request.
func (s *Server) createIdentityToken(ctx context.Context, c *gin.Context, t *ticket.Ticket, request, response *oidc.Message, now time.Time) (string, error) {
	credential := s.options.signingCredential()
	if credential == nil {
		return "", errors.New("identity tokens require signing credentials")
	}
	if s.options.IdentityTokenHandler == nil {
		return "", errNoIdentityTokenHandler
	}

	t.Properties.IssuedAt = now
	t.Properties.ExpiresAt = now.Add(s.options.IdentityTokenLifetime)

	e := &CreateIdentityTokenContext{BaseContext: s.baseContext(c), Ticket: t}
	e.Request = request
	e.Response = response
	if err := s.provider.CreateIdentityToken(ctx, e); err != nil {
		return "", err
	}
	if e.IdentityToken != "" {
		return e.IdentityToken, nil
	}
	if e.Ticket != nil {
		t = e.Ticket
	}

	subject := t.Subject()
	if subject == "" {
		return "", errors.New("no sub claim or name identifier available for the identity token")
	}

	// A client authenticating with HTTP basic auth sends no form client_id.
	audience := request.ClientID()
	if audience == "" {
		audience, _ = clientCredentials(c, request)
	}

	claims := jwt.MapClaims{
		oidc.ClaimIssuer:     s.options.issuerWithSlash(),
		oidc.ClaimSubject:    subject,
		oidc.ClaimAudience:   audience,
		oidc.ClaimIssuedAt:   t.Properties.IssuedAt.Unix(),
		oidc.ClaimNotBefore:  t.Properties.IssuedAt.Unix(),
		oidc.ClaimExpiration: t.Properties.ExpiresAt.Unix(),
		oidc.ClaimJWTID:      uuid.NewString(),
	}

	for _, claim := range t.Identity.Claims {
		if claim.Type == oidc.ClaimSubject || claim.Type == ticket.ClaimTypeNameIdentifier {
			continue
		}
		if !claim.HasDestination(ticket.DestinationIdentityToken) {
			continue
		}
		claims[claim.Type] = claim.Value
	}

	if nonce := request.Nonce(); nonce != "" {
		claims[oidc.ClaimNonce] = nonce
	}
	if code := response.Code(); code != "" {
		hash, err := jose.LeftmostHalfHash(credential.Algorithm, code)
		if err != nil {
			return "", fmt.Errorf("c_hash: %w", err)
		}
		claims[oidc.ClaimCodeHash] = hash
	}
	if accessToken := response.AccessToken(); accessToken != "" {
		hash, err := jose.LeftmostHalfHash(credential.Algorithm, accessToken)
		if err != nil {
			return "", fmt.Errorf("at_hash: %w", err)
		}
		claims[oidc.ClaimAtHash] = hash
	}

	return s.options.IdentityTokenHandler(credential, claims)
}

// createRefreshToken mints the opaque refresh token. Claims are not filtered:
// the payload is confidential and redeemed only by this server.
func (s *Server) createRefreshToken(ctx context.Context, c *gin.Context, t *ticket.Ticket, request *oidc.Message, now time.Time) (string, error) {
	t.Properties.IssuedAt = now
	t.Properties.ExpiresAt = now.Add(s.options.RefreshTokenLifetime)

	e := &CreateRefreshTokenContext{BaseContext: s.baseContext(c), Ticket: t}
	e.Request = request
	if err := s.provider.CreateRefreshToken(ctx, e); err != nil {
		return "", err
	}
	if e.RefreshToken != "" {
		return e.RefreshToken, nil
	}
	if e.Ticket != nil {
		t = e.Ticket
	}

	return s.options.RefreshTokenFormat.Protect(t)
}

// receiveAuthorizationCode resolves a code to its ticket. The cache entry is
// consumed on lookup whether or not later checks pass: codes are single-use.
func (s *Server) receiveAuthorizationCode(ctx context.Context, c *gin.Context, code string, request *oidc.Message) (*ticket.Ticket, error) {
	e := &ReceiveAuthorizationCodeContext{BaseContext: s.baseContext(c), AuthorizationCode: code}
	e.Request = request
	if err := s.provider.ReceiveAuthorizationCode(ctx, e); err != nil {
		return nil, err
	}
	if e.Ticket != nil {
		return e.Ticket, nil
	}

	payload, err := s.options.Cache.Take(ctx, codeCachePrefix+code)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	t, err := s.options.AuthorizationCodeFormat.Unprotect(string(payload))
	if err != nil {
		s.log.Debug("authorization code payload rejected", "err", err)
		return nil, nil
	}
	return t, nil
}

// receiveRefreshToken resolves a refresh token to its ticket.
func (s *Server) receiveRefreshToken(ctx context.Context, c *gin.Context, refreshToken string, request *oidc.Message) (*ticket.Ticket, error) {
	e := &ReceiveRefreshTokenContext{BaseContext: s.baseContext(c), RefreshToken: refreshToken}
	e.Request = request
	if err := s.provider.ReceiveRefreshToken(ctx, e); err != nil {
		return nil, err
	}
	if e.Ticket != nil {
		return e.Ticket, nil
	}

	t, err := s.options.RefreshTokenFormat.Unprotect(refreshToken)
	if err != nil {
		s.log.Debug("refresh token payload rejected", "err", err)
		return nil, nil
	}
	return t, nil
}

// receiveAccessToken resolves an access token to its ticket for userinfo and
// introspection. JWT access tokens are the provider's to resolve through the
// ReceiveAccessToken hook; the default path only understands opaque tickets.
func (s *Server) receiveAccessToken(ctx context.Context, c *gin.Context, accessToken string, request *oidc.Message) (*ticket.Ticket, error) {
	e := &ReceiveAccessTokenContext{BaseContext: s.baseContext(c), AccessToken: accessToken}
	e.Request = request
	if err := s.provider.ReceiveAccessToken(ctx, e); err != nil {
		return nil, err
	}
	if e.Ticket != nil {
		return e.Ticket, nil
	}

	t, err := s.options.AccessTokenFormat.Unprotect(accessToken)
	if err != nil {
		s.log.Debug("access token payload rejected", "err", err)
		return nil, nil
	}
	return t, nil
}

func filterClaims(claims []*ticket.Claim, keep func(*ticket.Claim) bool) []*ticket.Claim {
	filtered := claims[:0]
	for _, claim := range claims {
		if keep(claim) {
			filtered = append(filtered, claim)
		}
	}
	return filtered
}
