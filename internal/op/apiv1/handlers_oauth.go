package apiv1

import (
	"context"
	"strings"

	"oidcop/pkg/oidc"
	"oidcop/pkg/oidcserver"
	"oidcop/pkg/ticket"

	"github.com/gin-contrib/sessions"
)

// ValidateClientRedirectURI confirms the redirect_uri belongs to a
// registered client and that the requested scopes are allowed for it.
func (c *Client) ValidateClientRedirectURI(ctx context.Context, e *oidcserver.ValidateClientRedirectURIContext) error {
	_, span := c.tracer.Start(ctx, "apiv1:ValidateClientRedirectURI")
	defer span.End()

	client := c.lookupClient(e.ClientID)
	if client == nil {
		c.log.Debug("unknown client", "client_id", e.ClientID)
		e.Reject(oidc.NewError(oidc.ErrorCodeInvalidClient, "The client is not registered."))
		return nil
	}

	if !allowScope(client, strings.Fields(e.Request.Scope())) {
		e.Reject(oidc.NewError(oidc.ErrorCodeInvalidRequest, "The requested scope is not allowed for this client."))
		return nil
	}

	if e.RedirectURI == "" {
		// A request without redirect_uri falls back to the registered one.
		e.RedirectURI = client.RedirectURIs[0]
		e.Validate()
		return nil
	}

	for _, registered := range client.RedirectURIs {
		if registered == e.RedirectURI {
			e.Validate()
			return nil
		}
	}

	c.log.Debug("redirect_uri not registered", "client_id", e.ClientID, "redirect_uri", e.RedirectURI)
	e.Reject(oidc.NewError(oidc.ErrorCodeInvalidClient, "The redirect_uri is not registered for this client."))
	return nil
}

// ValidateAuthorizationRequest accepts everything the redirect_uri check let
// through.
func (c *Client) ValidateAuthorizationRequest(ctx context.Context, e *oidcserver.ValidateAuthorizationRequestContext) error {
	e.Validate()
	return nil
}

// ValidateClientAuthentication authenticates the client presented on the
// token endpoint.
func (c *Client) ValidateClientAuthentication(ctx context.Context, e *oidcserver.ValidateClientAuthenticationContext) error {
	_, span := c.tracer.Start(ctx, "apiv1:ValidateClientAuthentication")
	defer span.End()

	client := c.lookupClient(e.ClientID)
	if client == nil {
		e.Reject(nil)
		return nil
	}

	if !verifySecret(client, e.ClientSecret) {
		c.log.Debug("client secret mismatch", "client_id", e.ClientID)
		e.Reject(nil)
		return nil
	}

	e.Validate()
	return nil
}

// GrantResourceOwnerCredentials authenticates the resource owner named in a
// password grant against the configured users.
func (c *Client) GrantResourceOwnerCredentials(ctx context.Context, e *oidcserver.GrantResourceOwnerCredentialsContext) error {
	_, span := c.tracer.Start(ctx, "apiv1:GrantResourceOwnerCredentials")
	defer span.End()

	username := e.Request.Username()
	user, ok := c.cfg.OP.Users[username]
	if !ok || user.Password != e.Request.Password() {
		c.log.Debug("resource owner authentication failed", "username", username)
		e.Reject(nil)
		return nil
	}

	e.Ticket = c.UserTicket(username, e.Request.Scope())
	e.Ticket.SetProperty(ticket.PropertyClientID, e.Request.ClientID())
	e.Ticket.SetPresenters(e.Request.ClientID())
	e.Validate()
	return nil
}

// GrantClientCredentials issues a ticket naming the authenticated client
// itself as the subject.
func (c *Client) GrantClientCredentials(ctx context.Context, e *oidcserver.GrantClientCredentialsContext) error {
	_, span := c.tracer.Start(ctx, "apiv1:GrantClientCredentials")
	defer span.End()

	clientID := e.Request.ClientID()
	if id, _, ok := e.Gin.Request.BasicAuth(); ok {
		clientID = id
	}
	if c.lookupClient(clientID) == nil {
		e.Reject(nil)
		return nil
	}

	identity := ticket.NewIdentity(oidcserver.DefaultAuthenticationScheme)
	identity.AddClaim(ticket.NewClaim(oidc.ClaimSubject, clientID).SetDestinations(ticket.DestinationAccessToken))

	t := ticket.New(identity)
	t.SetProperty(ticket.PropertyClientID, clientID)
	t.SetProperty(ticket.PropertyScope, e.Request.Scope())
	t.SetPresenters(clientID)

	e.Ticket = t
	e.Validate()
	return nil
}

// ValidateIntrospectionRequest requires the same client authentication as
// the token endpoint.
func (c *Client) ValidateIntrospectionRequest(ctx context.Context, e *oidcserver.ValidateIntrospectionRequestContext) error {
	_, span := c.tracer.Start(ctx, "apiv1:ValidateIntrospectionRequest")
	defer span.End()

	c.validateCaller(&e.BaseContext)
	return nil
}

// ValidateRevocationRequest requires the same client authentication as the
// token endpoint.
func (c *Client) ValidateRevocationRequest(ctx context.Context, e *oidcserver.ValidateRevocationRequestContext) error {
	_, span := c.tracer.Start(ctx, "apiv1:ValidateRevocationRequest")
	defer span.End()

	c.validateCaller(&e.BaseContext)
	return nil
}

// HandleLogoutRequest tears down the local sign-in session.
func (c *Client) HandleLogoutRequest(ctx context.Context, e *oidcserver.HandleLogoutRequestContext) error {
	_, span := c.tracer.Start(ctx, "apiv1:HandleLogoutRequest")
	defer span.End()

	session := sessions.Default(e.Gin)
	session.Clear()
	if err := session.Save(); err != nil {
		c.log.Error(err, "session teardown failed")
	}

	return nil
}

func (c *Client) validateCaller(e *oidcserver.BaseContext) {
	clientID, clientSecret := e.Request.ClientID(), e.Request.ClientSecret()
	if id, secret, ok := e.Gin.Request.BasicAuth(); ok {
		clientID, clientSecret = id, secret
	}

	client := c.lookupClient(clientID)
	if client == nil || !verifySecret(client, clientSecret) {
		e.Reject(nil)
		return
	}

	e.Validate()
}

// VerifyUser checks a resource owner's password for the sign-in form.
func (c *Client) VerifyUser(username, password string) bool {
	user, ok := c.cfg.OP.Users[username]
	return ok && password != "" && user.Password == password
}

// UserTicket builds the authenticated ticket for a configured user. sub goes
// to the access and identity tokens, every profile, email and phone claim to
// the identity token whatever the scope; the scope is recorded as the ticket's
// scope property.
func (c *Client) UserTicket(username, scope string) *ticket.Ticket {
	user := c.cfg.OP.Users[username]

	identity := ticket.NewIdentity(oidcserver.DefaultAuthenticationScheme)
	identity.AddClaim(ticket.NewClaim(oidc.ClaimSubject, username).
		SetDestinations(ticket.DestinationAccessToken, ticket.DestinationIdentityToken))

	if user != nil {
		addClaim := func(name, value string) {
			if value != "" {
				identity.AddClaim(ticket.NewClaim(name, value).SetDestinations(ticket.DestinationIdentityToken))
			}
		}
		addClaim(oidc.ClaimName, user.Name)
		addClaim(oidc.ClaimGivenName, user.GivenName)
		addClaim(oidc.ClaimFamilyName, user.FamilyName)
		addClaim(oidc.ClaimBirthdate, user.Birthdate)
		addClaim(oidc.ClaimEmail, user.Email)
		if user.Email != "" && user.EmailVerified {
			addClaim(oidc.ClaimEmailVerified, "true")
		}
		addClaim(oidc.ClaimPhoneNumber, user.PhoneNumber)
		if user.PhoneNumber != "" && user.PhoneNumberVerified {
			addClaim(oidc.ClaimPhoneNumberVerified, "true")
		}
	}

	t := ticket.New(identity)
	t.SetProperty(ticket.PropertyScope, scope)

	return t
}
