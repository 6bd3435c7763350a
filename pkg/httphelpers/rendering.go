package httphelpers

import (
	"context"

	"oidcop/pkg/helpers"
	"oidcop/pkg/logger"

	"github.com/gin-gonic/gin"
)

type renderingHandler struct {
	client *Client
	log    *logger.Log
}

// Content renders the content
func (r *renderingHandler) Content(ctx context.Context, c *gin.Context, code int, data any) {
	switch c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML, "*/*") {
	case gin.MIMEJSON:
		c.JSON(code, data)
	case gin.MIMEHTML:
		c.JSON(code, data)
	case "*/*": // curl
		c.JSON(code, data)
	default:
		c.JSON(406, gin.H{"error": helpers.NewErrorDetails("not_acceptable", "Accept header is not supported. Supported types: application/json.")})
	}
}
