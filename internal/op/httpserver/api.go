package httpserver

import (
	"oidcop/pkg/oidcserver"
	"oidcop/pkg/ticket"
)

// Apiv1 is the policy surface the http server needs: the full middleware
// provider contract plus the sign-in helpers backing the login form.
type Apiv1 interface {
	oidcserver.Provider

	UserTicket(username, scope string) *ticket.Ticket
	VerifyUser(username, password string) bool
}
