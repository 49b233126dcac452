package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/dto"
	"github.com/monkeysworks/monkeyswork-backend/internal/http/handlers/common"
	"github.com/monkeysworks/monkeyswork-backend/internal/service"
)

// AdminDisputeHandler — арбитражная панель споров.
type AdminDisputeHandler struct {
	disputes *service.DisputeService
}

func NewAdminDisputeHandler(disputes *service.DisputeService) *AdminDisputeHandler {
	return &AdminDisputeHandler{disputes: disputes}
}

// List GET /admin/disputes
func (h *AdminDisputeHandler) List(c *gin.Context) {
	page, perPage, limit, offset := common.GetPagination(c)
	status := c.Query("status")

	disputes, total, err := h.disputes.ListAllDisputes(c.Request.Context(), status, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondPage(c, disputes, page, perPage, total)
}

// Get GET /admin/disputes/:id
func (h *AdminDisputeHandler) Get(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	dispute, err := h.disputes.GetDispute(c.Request.Context(), adminID, true, disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, dispute)
}

// ListMessages GET /admin/disputes/:id/messages
// Включает внутренние заметки арбитража.
func (h *AdminDisputeHandler) ListMessages(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	messages, err := h.disputes.ListMessages(c.Request.Context(), adminID, true, disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, messages)
}

// SendMessage POST /admin/disputes/:id/messages
func (h *AdminDisputeHandler) SendMessage(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.DisputeMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailBinding(c, err)
		return
	}

	message, err := h.disputes.SendMessage(c.Request.Context(), adminID, true,
		disputeID, req.Body, req.Attachments, req.IsInternal)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusCreated, message)
}

// Resolve POST /admin/disputes/:id/resolve
func (h *AdminDisputeHandler) Resolve(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailBinding(c, err)
		return
	}

	var amount decimal.NullDecimal
	if req.ResolutionAmount != nil && *req.ResolutionAmount != "" {
		parsed, err := common.ParseAmount("resolution_amount", *req.ResolutionAmount)
		if err != nil {
			common.Fail(c, err)
			return
		}
		amount = decimal.NewNullDecimal(parsed)
	}

	dispute, err := h.disputes.Resolve(c.Request.Context(), adminID, disputeID, req.Status, amount, req.Note)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, dispute)
}
