// controller/pool_controller.go
package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	"github.com/dev-mohitbeniwal/trackgate/model"
	"github.com/dev-mohitbeniwal/trackgate/util"
)

type PoolReader interface {
	Pools() []model.PoolState
	Snapshot(poolID string) (model.PoolState, error)
}

type SampleSink interface {
	Offer(sample model.UtilizationSample) error
}

type AlertReader interface {
	Recent() []util.OperatorAlert
}

// PoolController serves pool state to the external orchestrator and
// accepts pushed utilization samples.
type PoolController struct {
	pools         PoolReader
	sink          SampleSink
	alerts        AlertReader
	defaultWindow time.Duration
}

// NewPoolController builds the controller. sink may be nil when samples are
// pulled rather than pushed.
func NewPoolController(pools PoolReader, sink SampleSink, alerts AlertReader, defaultWindow time.Duration) *PoolController {
	return &PoolController{pools: pools, sink: sink, alerts: alerts, defaultWindow: defaultWindow}
}

// RegisterRoutes registers the API routes
func (pc *PoolController) RegisterRoutes(r *gin.RouterGroup) {
	pools := r.Group("/pools")
	{
		pools.GET("", pc.ListPools)
		pools.GET("/:id", pc.GetPool)
		pools.POST("/:id/samples", pc.PushSample)
	}
	r.GET("/alerts", pc.ListAlerts)
}

func (pc *PoolController) ListPools(c *gin.Context) {
	c.JSON(http.StatusOK, pc.pools.Pools())
}

func (pc *PoolController) GetPool(c *gin.Context) {
	state, err := pc.pools.Snapshot(c.Param("id"))
	if err != nil {
		if errors.Is(err, gate_errors.ErrPoolNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Pool not found", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to read pool", gate_errors.ErrInternalServer)
		return
	}
	c.JSON(http.StatusOK, state)
}

// SampleRequest is a pushed utilization observation.
type SampleRequest struct {
	CPUPercent    *float64   `json:"cpu_percent" binding:"required"`
	Timestamp     *time.Time `json:"timestamp"`
	WindowSeconds int        `json:"window_seconds"`
}

func (pc *PoolController) PushSample(c *gin.Context) {
	if pc.sink == nil {
		util.RespondWithError(c, http.StatusConflict, "Samples are pulled, push is disabled", gate_errors.ErrInvalidRequest)
		return
	}

	poolID := c.Param("id")
	if _, err := pc.pools.Snapshot(poolID); err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Pool not found", err)
		return
	}

	var req SampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid sample", gate_errors.ErrSampleMalformed)
		return
	}

	sample := model.UtilizationSample{
		PoolID:     poolID,
		Timestamp:  time.Now(),
		CPUPercent: *req.CPUPercent,
		Window:     pc.defaultWindow,
	}
	if req.Timestamp != nil {
		sample.Timestamp = *req.Timestamp
	}
	if req.WindowSeconds > 0 {
		sample.Window = time.Duration(req.WindowSeconds) * time.Second
	}

	if err := pc.sink.Offer(sample); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid sample", err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (pc *PoolController) ListAlerts(c *gin.Context) {
	if pc.alerts == nil {
		c.JSON(http.StatusOK, []util.OperatorAlert{})
		return
	}
	c.JSON(http.StatusOK, pc.alerts.Recent())
}
