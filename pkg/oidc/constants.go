package oidc

// Request and response parameter names, https://openid.net/specs/openid-connect-core-1_0.html
const (
	ParamAccessToken         = "access_token"
	ParamClientID            = "client_id"
	ParamClientSecret        = "client_secret"
	ParamCode                = "code"
	ParamError               = "error"
	ParamErrorDescription    = "error_description"
	ParamErrorURI            = "error_uri"
	ParamExpiresIn           = "expires_in"
	ParamGrantType           = "grant_type"
	ParamIDToken             = "id_token"
	ParamIDTokenHint         = "id_token_hint"
	ParamNonce               = "nonce"
	ParamPassword            = "password"
	ParamPostLogoutRedirect  = "post_logout_redirect_uri"
	ParamRedirectURI         = "redirect_uri"
	ParamRefreshToken        = "refresh_token"
	ParamResource            = "resource"
	ParamResponseMode        = "response_mode"
	ParamResponseType        = "response_type"
	ParamScope               = "scope"
	ParamState               = "state"
	ParamToken               = "token"
	ParamTokenTypeHint       = "token_type_hint"
	ParamTokenType           = "token_type"
	ParamUsername            = "username"
)

// Grant types accepted at the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypePassword          = "password"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeImplicit          = "implicit"
)

// Response types accepted at the authorization endpoint.
const (
	ResponseTypeCode    = "code"
	ResponseTypeIDToken = "id_token"
	ResponseTypeToken   = "token"
)

// Response modes, https://openid.net/specs/oauth-v2-multiple-response-types-1_0.html
const (
	ResponseModeFormPost = "form_post"
	ResponseModeFragment = "fragment"
	ResponseModeQuery    = "query"
)

// Protocol error codes, RFC 6749 section 4.1.2.1 and 5.2.
const (
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeServerError             = "server_error"
	ErrorCodeUnauthorizedClient      = "unauthorized_client"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
)

// Scopes with protocol-level meaning.
const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopePhone   = "phone"
)

// Standard claim names surfaced by the userinfo endpoint and the identity token.
const (
	ClaimSubject             = "sub"
	ClaimAudience            = "aud"
	ClaimIssuer              = "iss"
	ClaimExpiration          = "exp"
	ClaimIssuedAt            = "iat"
	ClaimNotBefore           = "nbf"
	ClaimJWTID               = "jti"
	ClaimNonce               = "nonce"
	ClaimAtHash              = "at_hash"
	ClaimCodeHash            = "c_hash"
	ClaimName                = "name"
	ClaimFamilyName          = "family_name"
	ClaimGivenName           = "given_name"
	ClaimBirthdate           = "birthdate"
	ClaimEmail               = "email"
	ClaimEmailVerified       = "email_verified"
	ClaimPhoneNumber         = "phone_number"
	ClaimPhoneNumberVerified = "phone_number_verified"
)

// TokenTypeBearer is the only token_type this server issues.
const TokenTypeBearer = "Bearer"
