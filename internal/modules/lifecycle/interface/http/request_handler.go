package http

import (
	"AccessOps/internal/modules/lifecycle/application/service"
	"AccessOps/internal/modules/lifecycle/domain/repository"
	"AccessOps/pkg/back"
	"AccessOps/pkg/xerr"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	submitSvc service.SubmitService
	repo      repository.AccountRequestRepository
}

func NewRequestHandler(submitSvc service.SubmitService, repo repository.AccountRequestRepository) *RequestHandler {
	return &RequestHandler{submitSvc: submitSvc, repo: repo}
}

type submitRequest struct {
	SamAccount  string `json:"samAccount" binding:"required"`
	Operation   int8   `json:"operation" binding:"required"`
	RequestedBy string `json:"requestedBy"`
	SourceId    string `json:"sourceId"`
	Comments    string `json:"comments"`
}

func (h *RequestHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	rec, err := h.submitSvc.Submit(c.Request.Context(), service.SubmitParams{
		SamAccount:  req.SamAccount,
		Operation:   req.Operation,
		RequestedBy: req.RequestedBy,
		SourceId:    req.SourceId,
		Comments:    req.Comments,
	})
	back.Result(c, rec, err)
}

type listRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (h *RequestHandler) List(c *gin.Context) {
	var req listRequest
	_ = c.ShouldBindJSON(&req)
	recs, err := h.repo.List(c.Request.Context(), req.Limit, req.Offset)
	back.Result(c, recs, err)
}

type getByNumberRequest struct {
	RequestNumber string `json:"requestNumber" binding:"required"`
}

// GetByNumber 轮询回退路径：客户端直接查询本地请求状态
func (h *RequestHandler) GetByNumber(c *gin.Context) {
	var req getByNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	rec, err := h.repo.GetByRequestNumber(c.Request.Context(), req.RequestNumber)
	if err == nil && rec == nil {
		back.Error(c, xerr.NotFound, xerr.ErrNotFound.Message)
		return
	}
	back.Result(c, rec, err)
}
