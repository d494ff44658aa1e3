// util/http_util.go
package util

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/trackgate/logging"
)

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// CredentialFromHeader extracts the presented token from an Authorization
// header value. "Bearer <token>" is unwrapped (scheme is case-insensitive);
// any other non-empty value is taken verbatim.
func CredentialFromHeader(value string) string {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "bearer") {
		return ""
	}
	if len(value) > len("bearer ") && strings.EqualFold(value[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(value[len("bearer "):])
	}
	return value
}
