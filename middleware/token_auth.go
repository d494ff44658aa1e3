package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/trackgate/logging"
	"github.com/dev-mohitbeniwal/trackgate/pdp/engine"
	"github.com/dev-mohitbeniwal/trackgate/util"
)

const VerdictContextKey = "verdict"

// TokenAuth rejects any request the authorizer does not allow. Rejected
// requests never reach the next handler.
func TokenAuth(decider engine.Decider, publisher util.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := util.CredentialFromHeader(c.GetHeader("Authorization"))
		verdict := decider.Authorize(c.Request.Context(), credential)
		if !verdict.Allow {
			logger.Warn("Request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
				zap.String("reason", string(verdict.Reason)))
			if publisher != nil && !verdict.Cached {
				publisher.Publish(c.Request.Context(), util.TopicDenied, util.DeniedRequest{
					ClientIP: c.ClientIP(),
					Path:     c.Request.URL.Path,
					Reason:   string(verdict.Reason),
					At:       time.Now(),
				})
			}
			c.AbortWithStatusJSON(verdict.HTTPStatus(), gin.H{"error": "Unauthorized", "reason": verdict.Reason})
			return
		}

		c.Set(VerdictContextKey, verdict)
		c.Next()
	}
}
