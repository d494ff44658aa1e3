// controller/authorizer_controller.go
package controller

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	"github.com/dev-mohitbeniwal/trackgate/pdp/engine"
	pdp_model "github.com/dev-mohitbeniwal/trackgate/pdp/model"
	"github.com/dev-mohitbeniwal/trackgate/util"
)

// AuthorizerController exposes the authorizer to the routing fabric.
type AuthorizerController struct {
	decider   engine.Decider
	publisher util.Publisher
}

func NewAuthorizerController(decider engine.Decider, publisher util.Publisher) *AuthorizerController {
	return &AuthorizerController{decider: decider, publisher: publisher}
}

// RegisterRoutes registers the API routes
func (ac *AuthorizerController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/authorize", ac.Check)
	r.POST("/authorize", ac.Callback)
}

// Check is the subrequest form used by reverse proxies: the Authorization
// header of the original request is forwarded and the status code is the
// answer.
func (ac *AuthorizerController) Check(c *gin.Context) {
	verdict := ac.authorize(c, c.GetHeader("Authorization"))
	if verdict.Allow {
		c.Status(http.StatusNoContent)
		return
	}
	c.Header("X-Auth-Reason", string(verdict.Reason))
	c.JSON(verdict.HTTPStatus(), gin.H{"error": "Unauthorized", "reason": verdict.Reason})
}

// CallbackRequest is the gateway authorizer event: the headers of the
// original request.
type CallbackRequest struct {
	Headers map[string]string `json:"headers"`
}

type CallbackResponse struct {
	IsAuthorized bool   `json:"isAuthorized"`
	Reason       string `json:"reason,omitempty"`
}

// Callback is the event-style form used by API gateways. It always answers
// 200; the decision is in the body.
func (ac *AuthorizerController) Callback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid authorizer event", gate_errors.ErrInvalidRequest)
		return
	}

	var header string
	for k, v := range req.Headers {
		if strings.EqualFold(k, "authorization") {
			header = v
			break
		}
	}

	verdict := ac.authorize(c, header)
	c.JSON(http.StatusOK, CallbackResponse{IsAuthorized: verdict.Allow, Reason: string(verdict.Reason)})
}

func (ac *AuthorizerController) authorize(c *gin.Context, header string) pdp_model.Verdict {
	verdict := ac.decider.Authorize(c.Request.Context(), util.CredentialFromHeader(header))
	// Cached denies were audited when first decided.
	if !verdict.Allow && !verdict.Cached && ac.publisher != nil {
		ac.publisher.Publish(c.Request.Context(), util.TopicDenied, util.DeniedRequest{
			ClientIP: c.ClientIP(),
			Path:     c.GetHeader("X-Original-URI"),
			Reason:   string(verdict.Reason),
			At:       time.Now(),
		})
	}
	return verdict
}
