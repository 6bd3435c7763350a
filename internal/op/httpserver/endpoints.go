package httpserver

import (
	"context"
	"html/template"
	"net/http"
	"net/url"

	"oidcop/pkg/oidcserver"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

var loginTemplate = template.Must(template.New("login").Parse(`<!doctype html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Sign in</h1>
{{if .Failed}}<p>Wrong username or password.</p>{{end}}
<form action="/login" method="post">
<input type="hidden" name="return_to" value="{{.ReturnTo}}" />
<label>Username <input type="text" name="username" /></label>
<label>Password <input type="password" name="password" /></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

func (s *Service) endpointHealth(ctx context.Context, c *gin.Context) (any, error) {
	return gin.H{"status": "STATUS_OK"}, nil
}

// endpointAuthorize is the interactive inner handler of the authorization
// endpoint. A signed-in session turns into a sign-in grant for the
// middleware's teardown; everything else bounces to the login form.
func (s *Service) endpointAuthorize(c *gin.Context) {
	// A recorded protocol error means the middleware is delegating error
	// display to us.
	if response := oidcserver.ResponseMessage(c); response != nil {
		c.Header("Content-Type", "text/html; charset=UTF-8")
		c.String(http.StatusBadRequest, "Authorization failed: %s (%s)", response.ErrorCode(), response.ErrorDescription())
		return
	}

	session := sessions.Default(c)

	username, ok := session.Get("username").(string)
	if !ok || username == "" {
		returnTo := c.Request.URL.RequestURI()
		c.Redirect(http.StatusFound, "/login?return_to="+url.QueryEscape(returnTo))
		return
	}

	request := oidcserver.RequestMessage(c)
	if request == nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	oidcserver.SignIn(c, s.apiv1.UserTicket(username, request.Scope()))
}

func (s *Service) endpointLoginForm(c *gin.Context) {
	s.renderLogin(c, c.Query("return_to"), false)
}

func (s *Service) endpointLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	returnTo := c.PostForm("return_to")

	if !s.apiv1.VerifyUser(username, password) {
		s.renderLogin(c, returnTo, true)
		return
	}

	session := sessions.Default(c)
	session.Set("username", username)
	if err := session.Save(); err != nil {
		s.log.Error(err, "session save error")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	if returnTo == "" || returnTo[0] != '/' {
		returnTo = "/"
	}
	c.Redirect(http.StatusFound, returnTo)
}

func (s *Service) renderLogin(c *gin.Context, returnTo string, failed bool) {
	c.Header("Content-Type", "text/html; charset=UTF-8")
	c.Status(http.StatusOK)

	err := loginTemplate.Execute(c.Writer, struct {
		ReturnTo string
		Failed   bool
	}{ReturnTo: returnTo, Failed: failed})
	if err != nil {
		s.log.Error(err, "login template execution failed")
	}
}
