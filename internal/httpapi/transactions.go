package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/txsaga/internal/orchestrator"
	"github.com/kode4food/txsaga/internal/storage"
	"github.com/kode4food/txsaga/pkg/saga"
)

func (s *Server) orchestratorFor(c *gin.Context) (*orchestrator.Orchestrator, bool) {
	model := saga.ModelID(c.Param("model"))
	o, ok := s.runner.Get(model)
	if !ok {
		jsonError(c, http.StatusNotFound, errUnknownModel(model))
		return nil, false
	}
	return o, true
}

func errUnknownModel(model saga.ModelID) error {
	return errors.New("unknown model: " + string(model))
}

func (s *Server) beginTransaction(c *gin.Context) {
	o, ok := s.orchestratorFor(c)
	if !ok {
		return
	}

	var req BeginTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, err)
		return
	}

	input, err := json.Marshal(req.Input)
	if err != nil {
		jsonError(c, http.StatusBadRequest, err)
		return
	}

	flow, err := o.BeginTransaction(c.Request.Context(), req.TransactionID, input)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, TransactionStartedResponse{
		TransactionID: flow.TransactionID,
		State:         flow.State,
	})
}

func (s *Server) getTransaction(c *gin.Context) {
	o, ok := s.orchestratorFor(c)
	if !ok {
		return
	}

	tx := saga.TransactionID(c.Param("id"))
	flow, err := o.GetTransaction(c.Request.Context(), tx)
	if err != nil {
		s.writeOrchestratorError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

func (s *Server) resumeTransaction(c *gin.Context) {
	o, ok := s.orchestratorFor(c)
	if !ok {
		return
	}

	tx := saga.TransactionID(c.Param("id"))
	flow, err := o.Resume(c.Request.Context(), tx)
	if err != nil {
		s.writeOrchestratorError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

func (s *Server) cancelTransaction(c *gin.Context) {
	o, ok := s.orchestratorFor(c)
	if !ok {
		return
	}

	tx := saga.TransactionID(c.Param("id"))
	flow, err := o.CancelTransaction(c.Request.Context(), tx)
	if err != nil {
		s.writeOrchestratorError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

func (s *Server) writeOrchestratorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrTransactionNotFound), errors.Is(err, storage.ErrNotFound):
		jsonError(c, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrLockHeld):
		jsonError(c, http.StatusConflict, err)
	case errors.Is(err, saga.ErrBadIdempotencyKey), errors.Is(err, saga.ErrIllegalState), errors.Is(err, saga.ErrUnknownAction):
		jsonError(c, http.StatusBadRequest, err)
	default:
		jsonError(c, http.StatusInternalServerError, err)
	}
}
