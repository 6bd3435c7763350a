package oidcserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"oidcop/pkg/logger"
	"oidcop/pkg/trace"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherPassThrough(t *testing.T) {
	env := newTestEnv(t)

	env.engine.GET("/app", func(c *gin.Context) {
		c.String(http.StatusOK, "application")
	})

	w := env.get("/app")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application", w.Body.String())
}

func TestDispatcherRejectsInsecureRequests(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.AllowInsecureHTTP = false
	})

	// Processing is abandoned without a protocol response.
	w := env.get(DefaultConfigurationEndpointPath)
	assert.Empty(t, w.Body.String())
}

func TestDispatcherHonorsForwardedProto(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.AllowInsecureHTTP = false
	})

	req := httptest.NewRequest(http.MethodGet, DefaultConfigurationEndpointPath, nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestMatchEndpointOverride(t *testing.T) {
	provider := &matchProvider{}
	env := newTestEnv(t, func(o *Options) {
		o.Provider = provider
	})

	// The provider reclassifies an arbitrary path as the configuration
	// endpoint.
	w := env.get("/custom/metadata")
	require.Equal(t, http.StatusOK, w.Code)

	doc := decodeJSON(t, w.Body.Bytes())
	assert.Equal(t, "https://idp.example/", doc["issuer"])
}

type matchProvider struct {
	testProvider
}

func (p *matchProvider) MatchEndpoint(_ context.Context, e *MatchEndpointContext) error {
	if e.Gin.Request.URL.Path == "/custom/metadata" {
		e.Endpoint = EndpointConfiguration
	}
	return nil
}

func TestMatchEndpointRequestCompleted(t *testing.T) {
	provider := &completedProvider{}
	env := newTestEnv(t, func(o *Options) {
		o.Provider = provider
	})

	env.engine.GET("/app", func(c *gin.Context) {
		c.String(http.StatusOK, "application")
	})

	w := env.get("/app")
	assert.Empty(t, w.Body.String(), "completed requests must not reach the inner pipeline")
}

type completedProvider struct {
	testProvider
}

func (p *completedProvider) MatchEndpoint(_ context.Context, e *MatchEndpointContext) error {
	e.CompleteRequest()
	return nil
}

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{
			name:   "missing provider",
			mutate: func(o *Options) { o.Provider = nil },
		},
		{
			name:   "missing issuer",
			mutate: func(o *Options) { o.Issuer = "" },
		},
		{
			name:   "relative issuer",
			mutate: func(o *Options) { o.Issuer = "/idp" },
		},
		{
			name:   "issuer with query",
			mutate: func(o *Options) { o.Issuer = "https://idp.example/?x=1" },
		},
		{
			name:   "issuer with fragment",
			mutate: func(o *Options) { o.Issuer = "https://idp.example/#frag" },
		},
		{
			name: "http issuer without opt-out",
			mutate: func(o *Options) {
				o.Issuer = "http://idp.example/"
				o.AllowInsecureHTTP = false
			},
		},
		{
			name: "no protection secret and no formats",
			mutate: func(o *Options) {
				o.ProtectionSecret = nil
			},
		},
		{
			name: "endpoint path without leading slash",
			mutate: func(o *Options) {
				o.TokenEndpointPath = "connect/token"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := &Options{
				Issuer:            "https://idp.example/",
				Provider:          newTestProvider(),
				ProtectionSecret:  []byte("0123456789abcdef0123456789abcdef"),
				AllowInsecureHTTP: true,
			}
			tt.mutate(options)

			_, err := New(options, trace.NewNoop(), logger.NewSimple("test"))
			assert.Error(t, err)
		})
	}
}
