package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/monkeysworks/monkeyswork-backend/internal/dto"
	"github.com/monkeysworks/monkeyswork-backend/internal/http/handlers/common"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/service"
)

type DisputeHandler struct {
	disputes *service.DisputeService
}

func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// File POST /disputes
func (h *DisputeHandler) File(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.FileDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailBinding(c, err)
		return
	}

	var milestoneID *uuid.UUID
	if req.MilestoneID != nil && *req.MilestoneID != "" {
		parsed, err := uuid.Parse(*req.MilestoneID)
		if err != nil {
			common.Fail(c, apperror.New(apperror.ErrCodeValidation, "milestone_id должен быть валидным UUID"))
			return
		}
		milestoneID = &parsed
	}

	dispute, err := h.disputes.File(c.Request.Context(), userID, uuid.MustParse(req.ContractID),
		milestoneID, req.Reason, req.Description, req.Evidence)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusCreated, dispute)
}

// ListMine GET /disputes
func (h *DisputeHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	page, perPage, limit, offset := common.GetPagination(c)
	disputes, total, err := h.disputes.ListUserDisputes(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondPage(c, disputes, page, perPage, total)
}

// Get GET /disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	userID, disputeID, err := h.actorAndID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	dispute, err := h.disputes.GetDispute(c.Request.Context(), userID, common.IsAdmin(c), disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, dispute)
}

// ListMessages GET /disputes/:id/messages
func (h *DisputeHandler) ListMessages(c *gin.Context) {
	userID, disputeID, err := h.actorAndID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	messages, err := h.disputes.ListMessages(c.Request.Context(), userID, common.IsAdmin(c), disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, messages)
}

// SendMessage POST /disputes/:id/messages
func (h *DisputeHandler) SendMessage(c *gin.Context) {
	userID, disputeID, err := h.actorAndID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.DisputeMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailBinding(c, err)
		return
	}

	message, err := h.disputes.SendMessage(c.Request.Context(), userID, common.IsAdmin(c),
		disputeID, req.Body, req.Attachments, req.IsInternal)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusCreated, message)
}

// Escalate POST /disputes/:id/escalate
func (h *DisputeHandler) Escalate(c *gin.Context) {
	userID, disputeID, err := h.actorAndID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	dispute, err := h.disputes.Escalate(c.Request.Context(), userID, common.IsAdmin(c), disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, dispute)
}

func (h *DisputeHandler) actorAndID(c *gin.Context) (uuid.UUID, uuid.UUID, error) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, disputeID, nil
}
