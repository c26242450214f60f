package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/txsaga/pkg/saga"
)

// registerStepSuccess implements POST /models/:model/steps/:key/success,
// where :key is the URL-escaped idempotency key a step handler was
// given in its TransactionPayload.Metadata (spec §4.6).
func (s *Server) registerStepSuccess(c *gin.Context) {
	o, ok := s.orchestratorFor(c)
	if !ok {
		return
	}

	var req StepOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, err)
		return
	}
	response, err := json.Marshal(req.Response)
	if err != nil {
		jsonError(c, http.StatusBadRequest, err)
		return
	}

	flow, err := o.RegisterStepSuccess(c.Request.Context(), c.Param("key"), saga.Response(response))
	if err != nil {
		s.writeOrchestratorError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

// registerStepFailure implements POST /models/:model/steps/:key/failure.
func (s *Server) registerStepFailure(c *gin.Context) {
	o, ok := s.orchestratorFor(c)
	if !ok {
		return
	}

	var req StepOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, err)
		return
	}
	if req.Error == "" {
		jsonError(c, http.StatusBadRequest, errors.New("error message is required"))
		return
	}

	cause := error(errors.New(req.Error))
	if req.Permanent {
		cause = saga.PermanentFailure(cause)
	} else {
		cause = saga.TransientFailure(cause)
	}

	flow, err := o.RegisterStepFailure(c.Request.Context(), c.Param("key"), cause)
	if err != nil {
		s.writeOrchestratorError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}
