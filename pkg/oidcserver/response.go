package oidcserver

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"oidcop/pkg/oidc"

	"github.com/gin-gonic/gin"
)

// Parameters never emitted back to the client by the response-mode writers.
var responseModeSkippedParams = map[string]bool{
	oidc.ParamClientID:     true,
	oidc.ParamRedirectURI:  true,
	oidc.ParamResponseMode: true,
}

var formPostTemplate = template.Must(template.New("form_post").Parse(`<!doctype html>
<html>
<head><title>Working...</title></head>
<body onload="javascript:document.forms[0].submit()">
<form action="{{.Action}}" method="post">{{range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}" />{{end}}
<noscript>
<p>Script is disabled. Click Submit to continue.</p>
<button type="submit">Submit</button>
</noscript>
</form>
</body>
</html>
`))

type formPostField struct {
	Name  string
	Value string
}

func (s *Server) setNoCache(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "-1")
}

// writeJSON renders a JSON body with the protocol content type.
func (s *Server) writeJSON(c *gin.Context, status int, body any) {
	c.Header("Content-Type", "application/json;charset=UTF-8")
	c.JSON(status, body)
	c.Abort()
}

// writeJSONNoCache renders a JSON body that must never be cached, the shape
// token and userinfo responses use.
func (s *Server) writeJSONNoCache(c *gin.Context, status int, body any) {
	s.setNoCache(c)
	s.writeJSON(c, status, body)
}

// writeJSONError renders a protocol error as JSON with HTTP 400.
func (s *Server) writeJSONError(c *gin.Context, err *oidc.Error) {
	s.writeJSONNoCache(c, http.StatusBadRequest, err)
}

// messageJSON converts a response message into a JSON object, keeping
// expires_in numeric.
func messageJSON(m *oidc.Message) map[string]any {
	body := make(map[string]any, len(m.Values))
	for key := range m.Values {
		value := m.Get(key)
		if key == oidc.ParamExpiresIn {
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				body[key] = n
				continue
			}
		}
		body[key] = value
	}
	return body
}

// writeAuthorizationResponse delivers the response according to the
// requested response mode. The default mode is query for the code flow and
// fragment for everything else.
func (s *Server) writeAuthorizationResponse(ctx context.Context, c *gin.Context, request, response *oidc.Message) {
	_, span := s.tracer.Start(ctx, "oidcserver:writeAuthorizationResponse")
	defer span.End()

	redirectURI := request.RedirectURI()

	mode := request.ResponseMode()
	if mode == "" {
		if request.IsAuthorizationCodeFlow() {
			mode = oidc.ResponseModeQuery
		} else {
			mode = oidc.ResponseModeFragment
		}
	}

	switch mode {
	case oidc.ResponseModeFormPost:
		s.writeFormPost(c, redirectURI, response)
	case oidc.ResponseModeFragment:
		s.writeFragment(c, redirectURI, response)
	default:
		s.writeQuery(c, redirectURI, response)
	}
}

func (s *Server) writeQuery(c *gin.Context, redirectURI string, response *oidc.Message) {
	location, err := url.Parse(redirectURI)
	if err != nil {
		s.log.Error(err, "unparsable redirect_uri on confirmed request")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	query := location.Query()
	for key := range response.Values {
		if responseModeSkippedParams[key] {
			continue
		}
		query.Set(key, response.Get(key))
	}
	location.RawQuery = query.Encode()

	c.Redirect(http.StatusFound, location.String())
	c.Abort()
}

func (s *Server) writeFragment(c *gin.Context, redirectURI string, response *oidc.Message) {
	var fragment strings.Builder
	fragment.WriteString(redirectURI)

	separator := "#"
	for key := range response.Values {
		if responseModeSkippedParams[key] {
			continue
		}
		fragment.WriteString(separator)
		fragment.WriteString(url.QueryEscape(key))
		fragment.WriteString("=")
		fragment.WriteString(url.QueryEscape(response.Get(key)))
		separator = "&"
	}

	c.Redirect(http.StatusFound, fragment.String())
	c.Abort()
}

func (s *Server) writeFormPost(c *gin.Context, redirectURI string, response *oidc.Message) {
	fields := make([]formPostField, 0, len(response.Values))
	for key := range response.Values {
		if responseModeSkippedParams[key] {
			continue
		}
		fields = append(fields, formPostField{Name: key, Value: response.Get(key)})
	}

	c.Header("Content-Type", "text/html; charset=UTF-8")
	s.setNoCache(c)
	c.Status(http.StatusOK)

	err := formPostTemplate.Execute(c.Writer, struct {
		Action string
		Fields []formPostField
	}{Action: redirectURI, Fields: fields})
	if err != nil {
		s.log.Error(err, "form_post template execution failed")
	}
	c.Abort()
}

// writeErrorPage renders an authorization error when no trusted redirect_uri
// exists. When the application can display errors, the response is recorded
// and the inner pipeline renders it; otherwise a minimal text body goes out.
func (s *Server) writeErrorPage(c *gin.Context, response *oidc.Message) {
	if s.options.ApplicationCanDisplayErrors {
		c.Set(ContextKeyResponse, response)
		c.Next()
		return
	}

	var body strings.Builder
	body.WriteString("error: " + response.ErrorCode() + "\n")
	if v := response.ErrorDescription(); v != "" {
		body.WriteString("error_description: " + v + "\n")
	}
	if v := response.ErrorURI(); v != "" {
		body.WriteString("error_uri: " + v + "\n")
	}

	s.setNoCache(c)
	c.Header("Content-Type", "text/plain; charset=UTF-8")
	c.String(http.StatusBadRequest, "%s", body.String())
	c.Abort()
}

// writeAuthorizationError routes a protocol error to the error redirect when
// a trusted redirect_uri is on the request, and to the error page otherwise.
func (s *Server) writeAuthorizationError(ctx context.Context, c *gin.Context, request *oidc.Message, protocolErr *oidc.Error) {
	response := oidc.NewMessage()
	response.SetError(protocolErr)
	if state := request.State(); state != "" {
		response.Set(oidc.ParamState, state)
	}

	if request.RedirectURI() == "" {
		s.writeErrorPage(c, response)
		return
	}

	// Errors default to the query mode: the grant never existed, so there is
	// nothing fragment delivery would keep away from the server.
	switch request.ResponseMode() {
	case oidc.ResponseModeFormPost:
		s.writeFormPost(c, request.RedirectURI(), response)
	case oidc.ResponseModeFragment:
		s.writeFragment(c, request.RedirectURI(), response)
	default:
		s.writeQuery(c, request.RedirectURI(), response)
	}
}
