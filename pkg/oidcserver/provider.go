package oidcserver

import "context"

// Provider is the application-supplied policy surface: one method per
// protocol event, fired in the documented Match → Validate → Handle → Apply
// order. Embed DefaultProvider and override only the events you care about;
// an untouched context means "use the default behavior".
type Provider interface {
	MatchEndpoint(ctx context.Context, e *MatchEndpointContext) error

	ValidateClientRedirectURI(ctx context.Context, e *ValidateClientRedirectURIContext) error
	ValidateClientAuthentication(ctx context.Context, e *ValidateClientAuthenticationContext) error

	ValidateAuthorizationRequest(ctx context.Context, e *ValidateAuthorizationRequestContext) error
	HandleAuthorizationRequest(ctx context.Context, e *HandleAuthorizationRequestContext) error
	ApplyAuthorizationResponse(ctx context.Context, e *ApplyAuthorizationResponseContext) error

	ValidateConfigurationRequest(ctx context.Context, e *ValidateConfigurationRequestContext) error
	HandleConfigurationRequest(ctx context.Context, e *HandleConfigurationRequestContext) error
	ApplyConfigurationResponse(ctx context.Context, e *ApplyConfigurationResponseContext) error

	ValidateCryptographyRequest(ctx context.Context, e *ValidateCryptographyRequestContext) error
	HandleCryptographyRequest(ctx context.Context, e *HandleCryptographyRequestContext) error
	ApplyCryptographyResponse(ctx context.Context, e *ApplyCryptographyResponseContext) error

	GrantAuthorizationCode(ctx context.Context, e *GrantAuthorizationCodeContext) error
	GrantResourceOwnerCredentials(ctx context.Context, e *GrantResourceOwnerCredentialsContext) error
	GrantClientCredentials(ctx context.Context, e *GrantClientCredentialsContext) error
	GrantRefreshToken(ctx context.Context, e *GrantRefreshTokenContext) error
	GrantCustomExtension(ctx context.Context, e *GrantCustomExtensionContext) error

	TokenEndpoint(ctx context.Context, e *TokenEndpointContext) error
	TokenEndpointResponse(ctx context.Context, e *TokenEndpointResponseContext) error

	ValidateUserinfoRequest(ctx context.Context, e *ValidateUserinfoRequestContext) error
	HandleUserinfoRequest(ctx context.Context, e *HandleUserinfoRequestContext) error
	ApplyUserinfoResponse(ctx context.Context, e *ApplyUserinfoResponseContext) error

	ValidateIntrospectionRequest(ctx context.Context, e *ValidateIntrospectionRequestContext) error
	HandleIntrospectionRequest(ctx context.Context, e *HandleIntrospectionRequestContext) error
	ApplyIntrospectionResponse(ctx context.Context, e *ApplyIntrospectionResponseContext) error

	ValidateRevocationRequest(ctx context.Context, e *ValidateRevocationRequestContext) error
	HandleRevocationRequest(ctx context.Context, e *HandleRevocationRequestContext) error
	ApplyRevocationResponse(ctx context.Context, e *ApplyRevocationResponseContext) error

	ValidateLogoutRequest(ctx context.Context, e *ValidateLogoutRequestContext) error
	HandleLogoutRequest(ctx context.Context, e *HandleLogoutRequestContext) error
	ApplyLogoutResponse(ctx context.Context, e *ApplyLogoutResponseContext) error

	CreateAuthorizationCode(ctx context.Context, e *CreateAuthorizationCodeContext) error
	CreateAccessToken(ctx context.Context, e *CreateAccessTokenContext) error
	CreateIdentityToken(ctx context.Context, e *CreateIdentityTokenContext) error
	CreateRefreshToken(ctx context.Context, e *CreateRefreshTokenContext) error

	ReceiveAuthorizationCode(ctx context.Context, e *ReceiveAuthorizationCodeContext) error
	ReceiveAccessToken(ctx context.Context, e *ReceiveAccessTokenContext) error
	ReceiveRefreshToken(ctx context.Context, e *ReceiveRefreshTokenContext) error
}

// DefaultProvider leaves every Provider event untouched, except that it
// validates the configuration, cryptography, userinfo and logout requests and
// the authorization code and refresh token grants. Embed it to override a
// subset.
type DefaultProvider struct{}

var _ Provider = (*DefaultProvider)(nil)

func (*DefaultProvider) MatchEndpoint(context.Context, *MatchEndpointContext) error { return nil }

func (*DefaultProvider) ValidateClientRedirectURI(context.Context, *ValidateClientRedirectURIContext) error {
	return nil
}

func (*DefaultProvider) ValidateClientAuthentication(context.Context, *ValidateClientAuthenticationContext) error {
	return nil
}

func (*DefaultProvider) ValidateAuthorizationRequest(context.Context, *ValidateAuthorizationRequestContext) error {
	return nil
}

func (*DefaultProvider) HandleAuthorizationRequest(context.Context, *HandleAuthorizationRequestContext) error {
	return nil
}

func (*DefaultProvider) ApplyAuthorizationResponse(context.Context, *ApplyAuthorizationResponseContext) error {
	return nil
}

func (*DefaultProvider) ValidateConfigurationRequest(_ context.Context, e *ValidateConfigurationRequestContext) error {
	e.Validate()
	return nil
}

func (*DefaultProvider) HandleConfigurationRequest(context.Context, *HandleConfigurationRequestContext) error {
	return nil
}

func (*DefaultProvider) ApplyConfigurationResponse(context.Context, *ApplyConfigurationResponseContext) error {
	return nil
}

func (*DefaultProvider) ValidateCryptographyRequest(_ context.Context, e *ValidateCryptographyRequestContext) error {
	e.Validate()
	return nil
}

func (*DefaultProvider) HandleCryptographyRequest(context.Context, *HandleCryptographyRequestContext) error {
	return nil
}

func (*DefaultProvider) ApplyCryptographyResponse(context.Context, *ApplyCryptographyResponseContext) error {
	return nil
}

func (*DefaultProvider) GrantAuthorizationCode(_ context.Context, e *GrantAuthorizationCodeContext) error {
	e.Validate()
	return nil
}

func (*DefaultProvider) GrantResourceOwnerCredentials(context.Context, *GrantResourceOwnerCredentialsContext) error {
	return nil
}

func (*DefaultProvider) GrantClientCredentials(context.Context, *GrantClientCredentialsContext) error {
	return nil
}

func (*DefaultProvider) GrantRefreshToken(_ context.Context, e *GrantRefreshTokenContext) error {
	e.Validate()
	return nil
}

func (*DefaultProvider) GrantCustomExtension(context.Context, *GrantCustomExtensionContext) error {
	return nil
}

func (*DefaultProvider) TokenEndpoint(context.Context, *TokenEndpointContext) error { return nil }

func (*DefaultProvider) TokenEndpointResponse(context.Context, *TokenEndpointResponseContext) error {
	return nil
}

func (*DefaultProvider) ValidateUserinfoRequest(_ context.Context, e *ValidateUserinfoRequestContext) error {
	e.Validate()
	return nil
}

func (*DefaultProvider) HandleUserinfoRequest(context.Context, *HandleUserinfoRequestContext) error {
	return nil
}

func (*DefaultProvider) ApplyUserinfoResponse(context.Context, *ApplyUserinfoResponseContext) error {
	return nil
}

func (*DefaultProvider) ValidateIntrospectionRequest(context.Context, *ValidateIntrospectionRequestContext) error {
	return nil
}

func (*DefaultProvider) HandleIntrospectionRequest(context.Context, *HandleIntrospectionRequestContext) error {
	return nil
}

func (*DefaultProvider) ApplyIntrospectionResponse(context.Context, *ApplyIntrospectionResponseContext) error {
	return nil
}

func (*DefaultProvider) ValidateRevocationRequest(context.Context, *ValidateRevocationRequestContext) error {
	return nil
}

func (*DefaultProvider) HandleRevocationRequest(context.Context, *HandleRevocationRequestContext) error {
	return nil
}

func (*DefaultProvider) ApplyRevocationResponse(context.Context, *ApplyRevocationResponseContext) error {
	return nil
}

func (*DefaultProvider) ValidateLogoutRequest(_ context.Context, e *ValidateLogoutRequestContext) error {
	e.Validate()
	return nil
}

func (*DefaultProvider) HandleLogoutRequest(context.Context, *HandleLogoutRequestContext) error {
	return nil
}

func (*DefaultProvider) ApplyLogoutResponse(context.Context, *ApplyLogoutResponseContext) error {
	return nil
}

func (*DefaultProvider) CreateAuthorizationCode(context.Context, *CreateAuthorizationCodeContext) error {
	return nil
}

func (*DefaultProvider) CreateAccessToken(context.Context, *CreateAccessTokenContext) error {
	return nil
}

func (*DefaultProvider) CreateIdentityToken(context.Context, *CreateIdentityTokenContext) error {
	return nil
}

func (*DefaultProvider) CreateRefreshToken(context.Context, *CreateRefreshTokenContext) error {
	return nil
}

func (*DefaultProvider) ReceiveAuthorizationCode(context.Context, *ReceiveAuthorizationCodeContext) error {
	return nil
}

func (*DefaultProvider) ReceiveAccessToken(context.Context, *ReceiveAccessTokenContext) error {
	return nil
}

func (*DefaultProvider) ReceiveRefreshToken(context.Context, *ReceiveRefreshTokenContext) error {
	return nil
}
