package oidcserver

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"oidcop/pkg/jose"
	"oidcop/pkg/ticket"

	"github.com/golang-jwt/jwt/v5"
)

// Default endpoint paths.
const (
	DefaultConfigurationEndpointPath = "/.well-known/openid-configuration"
	DefaultCryptographyEndpointPath  = "/.well-known/jwks"
	DefaultAuthorizationEndpointPath = "/connect/authorize"
	DefaultTokenEndpointPath         = "/connect/token"
	DefaultUserinfoEndpointPath      = "/connect/userinfo"
	DefaultIntrospectionEndpointPath = "/connect/introspect"
	DefaultRevocationEndpointPath    = "/connect/revoke"
	DefaultLogoutEndpointPath        = "/connect/logout"
)

// Default token lifetimes.
const (
	DefaultAccessTokenLifetime       = time.Hour
	DefaultAuthorizationCodeLifetime = 5 * time.Minute
	DefaultRefreshTokenLifetime      = 14 * 24 * time.Hour
	DefaultIdentityTokenLifetime     = 20 * time.Minute
)

// DefaultAuthenticationScheme names the middleware's sign-in grant and keys
// the ticket protection purposes.
const DefaultAuthenticationScheme = "oidcop"

// EndpointDisabled turns an endpoint off when assigned to its path option.
// An empty path means "use the default".
const EndpointDisabled = "-"

// JWTHandler turns token claims into a serialized security token signed by
// the credential. When the access token handler is nil the opaque ticket
// format is used instead.
type JWTHandler func(credential *jose.Credential, claims jwt.MapClaims) (string, error)

// Options is the frozen middleware configuration. Construct it, hand it to
// New, and never mutate it afterwards; the server shares it across requests
// without locking.
type Options struct {
	// Issuer is the absolute HTTPS URI identifying this server. Plain HTTP
	// is accepted only together with AllowInsecureHTTP.
	Issuer string

	Provider Provider

	AuthenticationScheme string

	// Endpoint paths, matched exactly against the request path. An empty
	// path takes the default; EndpointDisabled turns the endpoint off.
	// Defaults cover all eight endpoints.
	AuthorizationEndpointPath string
	ConfigurationEndpointPath string
	CryptographyEndpointPath  string
	TokenEndpointPath         string
	UserinfoEndpointPath      string
	IntrospectionEndpointPath string
	RevocationEndpointPath    string
	LogoutEndpointPath        string

	AccessTokenLifetime       time.Duration
	AuthorizationCodeLifetime time.Duration
	RefreshTokenLifetime      time.Duration
	IdentityTokenLifetime     time.Duration

	SigningCredentials    []*jose.Credential
	EncryptingCredentials []*jose.Credential

	// Cache stores authorization codes between issuance and redemption.
	Cache Cache

	// Rand is the cryptographic randomness source for code keys.
	Rand io.Reader

	// Clock supplies issuance timestamps; it is truncated per issuance so
	// exp - iat stays integral.
	Clock func() time.Time

	// ProtectionSecret keys the opaque ticket formats when they are not
	// injected explicitly.
	ProtectionSecret []byte

	AccessTokenFormat       *ticket.Format
	AuthorizationCodeFormat *ticket.Format
	RefreshTokenFormat      *ticket.Format

	// AccessTokenHandler, when set, emits access tokens as signed JWTs
	// instead of opaque tickets.
	AccessTokenHandler JWTHandler

	// IdentityTokenHandler emits identity tokens. Defaulted to a jose-backed
	// signer; a nil handler at issuance time is a server_error.
	IdentityTokenHandler JWTHandler

	AllowInsecureHTTP           bool
	UseSlidingExpiration        bool
	ApplicationCanDisplayErrors bool
}

// setDefaults fills unset options in place.
func (o *Options) setDefaults() error {
	if o.AuthenticationScheme == "" {
		o.AuthenticationScheme = DefaultAuthenticationScheme
	}
	normalizePath(&o.ConfigurationEndpointPath, DefaultConfigurationEndpointPath)
	normalizePath(&o.CryptographyEndpointPath, DefaultCryptographyEndpointPath)
	normalizePath(&o.AuthorizationEndpointPath, DefaultAuthorizationEndpointPath)
	normalizePath(&o.TokenEndpointPath, DefaultTokenEndpointPath)
	normalizePath(&o.UserinfoEndpointPath, DefaultUserinfoEndpointPath)
	normalizePath(&o.IntrospectionEndpointPath, DefaultIntrospectionEndpointPath)
	normalizePath(&o.RevocationEndpointPath, DefaultRevocationEndpointPath)
	normalizePath(&o.LogoutEndpointPath, DefaultLogoutEndpointPath)

	if o.AccessTokenLifetime == 0 {
		o.AccessTokenLifetime = DefaultAccessTokenLifetime
	}
	if o.AuthorizationCodeLifetime == 0 {
		o.AuthorizationCodeLifetime = DefaultAuthorizationCodeLifetime
	}
	if o.RefreshTokenLifetime == 0 {
		o.RefreshTokenLifetime = DefaultRefreshTokenLifetime
	}
	if o.IdentityTokenLifetime == 0 {
		o.IdentityTokenLifetime = DefaultIdentityTokenLifetime
	}

	if o.Rand == nil {
		o.Rand = rand.Reader
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Cache == nil {
		o.Cache = NewMemoryCache()
	}

	if err := o.setDefaultFormats(); err != nil {
		return err
	}

	if o.IdentityTokenHandler == nil {
		o.IdentityTokenHandler = jose.Sign
	}

	return nil
}

func normalizePath(path *string, defaultPath string) {
	switch *path {
	case EndpointDisabled:
		*path = ""
	case "":
		*path = defaultPath
	}
}

func (o *Options) setDefaultFormats() error {
	if o.AccessTokenFormat != nil && o.AuthorizationCodeFormat != nil && o.RefreshTokenFormat != nil {
		return nil
	}
	if len(o.ProtectionSecret) == 0 {
		return errors.New("ticket formats missing and no protection secret to derive them from")
	}

	kinds := []struct {
		format **ticket.Format
		kind   string
	}{
		{&o.AccessTokenFormat, "access_token"},
		{&o.AuthorizationCodeFormat, "authorization_code"},
		{&o.RefreshTokenFormat, "refresh_token"},
	}
	for _, k := range kinds {
		if *k.format != nil {
			continue
		}
		protector, err := ticket.NewProtector(o.ProtectionSecret, "oidcop", o.AuthenticationScheme, k.kind, fmt.Sprintf("v%d", ticket.FormatVersion))
		if err != nil {
			return err
		}
		*k.format = ticket.NewFormat(protector)
	}

	return nil
}

// validate enforces the construction-time invariants.
func (o *Options) validate() error {
	if o.Provider == nil {
		return errors.New("options: provider is required")
	}

	if o.Issuer == "" {
		return errors.New("options: issuer is required")
	}
	issuer, err := url.Parse(o.Issuer)
	if err != nil || !issuer.IsAbs() {
		return fmt.Errorf("options: issuer %q is not an absolute URI", o.Issuer)
	}
	if issuer.RawQuery != "" || issuer.Fragment != "" {
		return fmt.Errorf("options: issuer %q must not carry a query or fragment", o.Issuer)
	}
	if issuer.Scheme != "https" && !o.AllowInsecureHTTP {
		return fmt.Errorf("options: issuer %q must use https unless AllowInsecureHTTP is set", o.Issuer)
	}

	for _, path := range o.endpointPaths() {
		if path != "" && !strings.HasPrefix(path, "/") {
			return fmt.Errorf("options: endpoint path %q must start with /", path)
		}
	}

	return nil
}

func (o *Options) endpointPaths() []string {
	return []string{
		o.AuthorizationEndpointPath,
		o.ConfigurationEndpointPath,
		o.CryptographyEndpointPath,
		o.TokenEndpointPath,
		o.UserinfoEndpointPath,
		o.IntrospectionEndpointPath,
		o.RevocationEndpointPath,
		o.LogoutEndpointPath,
	}
}

// issuerURL returns the issuer without a trailing slash, for joining with
// endpoint paths.
func (o *Options) issuerURL() string {
	return strings.TrimRight(o.Issuer, "/")
}

// issuerWithSlash returns the issuer with a trailing slash, the exact value
// stamped into identity tokens.
func (o *Options) issuerWithSlash() string {
	return o.issuerURL() + "/"
}

// signingCredential returns the first credential able to sign, or nil.
func (o *Options) signingCredential() *jose.Credential {
	for _, c := range o.SigningCredentials {
		if c.SupportsSigning() {
			return c
		}
	}
	return nil
}
