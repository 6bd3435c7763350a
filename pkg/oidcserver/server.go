package oidcserver

import (
	"net/http"
	"strings"

	"oidcop/pkg/logger"
	"oidcop/pkg/oidc"
	"oidcop/pkg/ticket"
	"oidcop/pkg/trace"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
)

// Keys under which the middleware stores per-request state in the gin
// context, so the application's inner handlers see a consistent view.
const (
	ContextKeyRequest  = "oidc_request"
	ContextKeyResponse = "oidc_response"

	contextKeySignIn = "oidc_signin_ticket"
)

// Server drives the protocol endpoints. One instance serves all requests;
// everything mutable lives in the per-request gin context.
type Server struct {
	options  *Options
	provider Provider
	log      *logger.Log
	tracer   *trace.Tracer
}

// New validates the options eagerly and returns the server. Construction
// fails on a broken issuer or missing collaborators; nothing is re-checked
// per request.
func New(options *Options, tracer *trace.Tracer, log *logger.Log) (*Server, error) {
	if options == nil {
		options = &Options{}
	}

	if err := options.setDefaults(); err != nil {
		return nil, err
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		options:  options,
		provider: options.Provider,
		log:      log,
		tracer:   tracer,
	}

	s.log.Info("Started", "issuer", options.Issuer)

	return s, nil
}

// Options returns the frozen configuration.
func (s *Server) Options() *Options {
	return s.options
}

// Handler returns the middleware. Register it early on the gin engine: it
// claims the configured endpoint paths and passes everything else through.
func (s *Server) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := s.tracer.Start(c.Request.Context(), "oidcserver:dispatch")
		defer span.End()

		e := &MatchEndpointContext{
			BaseContext: s.baseContext(c),
			Endpoint:    s.matchPath(c.Request.URL.Path),
		}
		if err := s.provider.MatchEndpoint(ctx, e); err != nil {
			span.SetStatus(codes.Error, err.Error())
			s.log.Error(err, "match endpoint notification failed")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		if e.IsRequestCompleted() || e.IsHandledResponse() {
			c.Abort()
			return
		}

		if e.Endpoint == EndpointNone {
			c.Next()
			return
		}

		if !s.options.AllowInsecureHTTP && !isSecure(c.Request) {
			// Abandon without a response body rather than answer a
			// protocol request over cleartext. Committing the headers keeps
			// gin's unmatched-route fallback from writing its own 404 body.
			s.log.Error(nil, "rejected insecure request to protocol endpoint", "endpoint", e.Endpoint.String(), "path", c.Request.URL.Path)
			c.Abort()
			c.Writer.WriteHeaderNow()
			return
		}

		s.log.Debug("dispatch", "endpoint", e.Endpoint.String(), "method", c.Request.Method)

		switch e.Endpoint {
		case EndpointConfiguration:
			s.handleConfiguration(ctx, c)
		case EndpointCryptography:
			s.handleCryptography(ctx, c)
		case EndpointAuthorization:
			s.handleAuthorization(ctx, c)
		case EndpointToken:
			s.handleToken(ctx, c)
		case EndpointUserinfo:
			s.handleUserinfo(ctx, c)
		case EndpointIntrospection:
			s.handleIntrospection(ctx, c)
		case EndpointRevocation:
			s.handleRevocation(ctx, c)
		case EndpointLogout:
			s.handleLogout(ctx, c)
		}
	}
}

func (s *Server) matchPath(path string) Endpoint {
	o := s.options
	switch {
	case o.ConfigurationEndpointPath != "" && path == o.ConfigurationEndpointPath:
		return EndpointConfiguration
	case o.CryptographyEndpointPath != "" && path == o.CryptographyEndpointPath:
		return EndpointCryptography
	case o.AuthorizationEndpointPath != "" && path == o.AuthorizationEndpointPath:
		return EndpointAuthorization
	case o.TokenEndpointPath != "" && path == o.TokenEndpointPath:
		return EndpointToken
	case o.UserinfoEndpointPath != "" && path == o.UserinfoEndpointPath:
		return EndpointUserinfo
	case o.IntrospectionEndpointPath != "" && path == o.IntrospectionEndpointPath:
		return EndpointIntrospection
	case o.RevocationEndpointPath != "" && path == o.RevocationEndpointPath:
		return EndpointRevocation
	case o.LogoutEndpointPath != "" && path == o.LogoutEndpointPath:
		return EndpointLogout
	}
	return EndpointNone
}

func (s *Server) baseContext(c *gin.Context) BaseContext {
	return BaseContext{Gin: c, Options: s.options}
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// SignIn hands an authenticated ticket to the middleware from inside the
// application's handlers. The authorization teardown picks it up once the
// inner pipeline returns.
func SignIn(c *gin.Context, t *ticket.Ticket) {
	c.Set(contextKeySignIn, t)
}

func signInTicket(c *gin.Context) *ticket.Ticket {
	v, ok := c.Get(contextKeySignIn)
	if !ok {
		return nil
	}
	t, ok := v.(*ticket.Ticket)
	if !ok {
		return nil
	}
	return t
}

// RequestMessage returns the protocol request stored for this exchange, or
// nil outside a protocol endpoint.
func RequestMessage(c *gin.Context) *oidc.Message {
	v, ok := c.Get(ContextKeyRequest)
	if !ok {
		return nil
	}
	m, ok := v.(*oidc.Message)
	if !ok {
		return nil
	}
	return m
}

// ResponseMessage returns the recorded protocol response, set when the
// application renders errors itself.
func ResponseMessage(c *gin.Context) *oidc.Message {
	v, ok := c.Get(ContextKeyResponse)
	if !ok {
		return nil
	}
	m, ok := v.(*oidc.Message)
	if !ok {
		return nil
	}
	return m
}
