package httpserver

import (
	"context"
	"net/http"
	"time"

	"oidcop/pkg/httphelpers"
	"oidcop/pkg/jose"
	"oidcop/pkg/logger"
	"oidcop/pkg/model"
	"oidcop/pkg/oidcserver"
	"oidcop/pkg/trace"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// Service is the service object for httpserver
type Service struct {
	cfg         *model.Cfg
	log         *logger.Log
	tracer      *trace.Tracer
	server      *http.Server
	apiv1       Apiv1
	gin         *gin.Engine
	httpHelpers *httphelpers.Client
	op          *oidcserver.Server
}

// New creates a new httpserver service
func New(ctx context.Context, cfg *model.Cfg, api Apiv1, cache oidcserver.Cache, tracer *trace.Tracer, log *logger.Log) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		log:    log,
		tracer: tracer,
		apiv1:  api,
		server: &http.Server{
			ReadHeaderTimeout: 2 * time.Second,
		},
	}

	var err error
	s.httpHelpers, err = httphelpers.New(ctx, tracer, cfg, log)
	if err != nil {
		return nil, err
	}

	options, err := buildOptions(cfg, api, cache)
	if err != nil {
		return nil, err
	}
	s.op, err = oidcserver.New(options, tracer, log.New("oidcserver"))
	if err != nil {
		return nil, err
	}

	s.gin = gin.New()
	rgRoot, err := s.httpHelpers.Server.Default(ctx, s.server, s.gin, cfg.OP.APIServer.Addr)
	if err != nil {
		return nil, err
	}

	s.gin.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	store := cookie.NewStore([]byte(cfg.OP.SessionSecret))
	s.gin.Use(sessions.Sessions("oidcop_session", store))

	// The protocol endpoints hang off this middleware; unmatched paths fall
	// through to the routes below.
	s.gin.Use(s.op.Handler())

	s.httpHelpers.Server.RegEndpoint(ctx, rgRoot, http.MethodGet, "health", http.StatusOK, s.endpointHealth)

	// The authorization endpoint's inner handler: the interactive sign-in.
	s.gin.GET(s.op.Options().AuthorizationEndpointPath, s.endpointAuthorize)
	s.gin.POST(s.op.Options().AuthorizationEndpointPath, s.endpointAuthorize)

	s.gin.GET("/login", s.endpointLoginForm)
	s.gin.POST("/login", s.endpointLogin)

	// Run http server
	go func() {
		if err := s.httpHelpers.Server.ListenAndServe(ctx, s.server, cfg.OP.APIServer); err != nil {
			s.log.Error(err, "listen_and_serve")
		}
	}()

	s.log.Info("started")

	return s, nil
}

// buildOptions maps the service configuration onto the middleware options.
func buildOptions(cfg *model.Cfg, provider oidcserver.Provider, cache oidcserver.Cache) (*oidcserver.Options, error) {
	signing, err := jose.LoadSigningCredential(cfg.OP.SigningKeyPath, "default")
	if err != nil {
		return nil, err
	}

	return &oidcserver.Options{
		Issuer:                      cfg.OP.Issuer,
		Provider:                    provider,
		SigningCredentials:          []*jose.Credential{signing},
		Cache:                       cache,
		ProtectionSecret:            []byte(cfg.OP.ProtectionSecret),
		AllowInsecureHTTP:           cfg.OP.AllowInsecureHTTP,
		UseSlidingExpiration:        cfg.OP.UseSlidingExpiration,
		ApplicationCanDisplayErrors: cfg.OP.ApplicationCanDisplayErrors,
		AccessTokenLifetime:         time.Duration(cfg.OP.Lifetimes.AccessToken) * time.Second,
		AuthorizationCodeLifetime:   time.Duration(cfg.OP.Lifetimes.AuthorizationCode) * time.Second,
		RefreshTokenLifetime:        time.Duration(cfg.OP.Lifetimes.RefreshToken) * time.Second,
		IdentityTokenLifetime:       time.Duration(cfg.OP.Lifetimes.IdentityToken) * time.Second,
	}, nil
}

// Close closing httpserver
func (s *Service) Close(ctx context.Context) error {
	s.log.Info("Quit")
	return s.server.Shutdown(ctx)
}
