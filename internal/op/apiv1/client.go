package apiv1

import (
	"context"
	"crypto/subtle"
	"slices"

	"oidcop/pkg/logger"
	"oidcop/pkg/model"
	"oidcop/pkg/oidcserver"
	"oidcop/pkg/trace"
)

// Client is the reference provider: clients and resource owners come from
// the configuration file, policy hooks below wire them into the middleware.
type Client struct {
	oidcserver.DefaultProvider

	cfg    *model.Cfg
	log    *logger.Log
	tracer *trace.Tracer
}

// New creates a new instance of the provider
func New(ctx context.Context, tracer *trace.Tracer, cfg *model.Cfg, log *logger.Log) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		log:    log,
		tracer: tracer,
	}

	c.log.Info("Started")

	return c, nil
}

// lookupClient returns the registered client, or nil.
func (c *Client) lookupClient(clientID string) *model.Client {
	if clientID == "" {
		return nil
	}
	return c.cfg.OP.Clients[clientID]
}

// allowScope reports whether every requested scope is registered for the
// client. An empty request is allowed.
func allowScope(client *model.Client, scopes []string) bool {
	for _, scope := range scopes {
		if !slices.Contains(client.Scopes, scope) {
			return false
		}
	}
	return true
}

// verifySecret compares client secrets in constant time.
func verifySecret(client *model.Client, secret string) bool {
	if client.Public {
		return secret == ""
	}
	return subtle.ConstantTimeCompare([]byte(client.Secret), []byte(secret)) == 1
}
