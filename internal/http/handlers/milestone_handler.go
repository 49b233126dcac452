package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/monkeysworks/monkeyswork-backend/internal/dto"
	"github.com/monkeysworks/monkeyswork-backend/internal/http/handlers/common"
	"github.com/monkeysworks/monkeyswork-backend/internal/service"
)

type MilestoneHandler struct {
	milestones *service.MilestoneService
	escrow     *service.EscrowService
}

func NewMilestoneHandler(milestones *service.MilestoneService, escrow *service.EscrowService) *MilestoneHandler {
	return &MilestoneHandler{milestones: milestones, escrow: escrow}
}

// ListMine GET /milestones/me
func (h *MilestoneHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	page, perPage, limit, offset := common.GetPagination(c)
	milestones, total, err := h.milestones.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondPage(c, milestones, page, perPage, total)
}

// Get GET /milestones/:id
func (h *MilestoneHandler) Get(c *gin.Context) {
	userID, milestoneID, err := h.actorAndID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	milestone, err := h.milestones.Get(c.Request.Context(), userID, common.IsAdmin(c), milestoneID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, milestone)
}

// Fund POST /milestones/:id/fund
func (h *MilestoneHandler) Fund(c *gin.Context) {
	userID, milestoneID, err := h.actorAndID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	// Тело запроса опционально: gateway_reference может отсутствовать.
	var req dto.FundMilestoneRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.FailBinding(c, err)
			return
		}
	}

	invoice, err := h.escrow.Fund(c.Request.Context(), userID, milestoneID, req.GatewayReference)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusCreated, invoice)
}

// Submit POST /milestones/:id/submit
func (h *MilestoneHandler) Submit(c *gin.Context) {
	userID, milestoneID, err := h.actorAndID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	milestone, err := h.milestones.Submit(c.Request.Context(), userID, milestoneID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, milestone)
}

// Start POST /milestones/:id/start
func (h *MilestoneHandler) Start(c *gin.Context) {
	userID, milestoneID, err := h.actorAndID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	milestone, err := h.milestones.Start(c.Request.Context(), userID, milestoneID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, milestone)
}

// Accept POST /milestones/:id/accept
func (h *MilestoneHandler) Accept(c *gin.Context) {
	userID, milestoneID, err := h.actorAndID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	milestone, err := h.milestones.Accept(c.Request.Context(), userID, milestoneID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, milestone)
}

// RequestRevision POST /milestones/:id/request-revision
func (h *MilestoneHandler) RequestRevision(c *gin.Context) {
	userID, milestoneID, err := h.actorAndID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.RevisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.FailBinding(c, err)
			return
		}
	}

	milestone, err := h.milestones.RequestRevision(c.Request.Context(), userID, milestoneID, req.Comment)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, milestone)
}

// GetBalance GET /milestones/:id/escrow
func (h *MilestoneHandler) GetBalance(c *gin.Context) {
	userID, milestoneID, err := h.actorAndID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	balance, err := h.escrow.GetMilestoneBalance(c.Request.Context(), userID, common.IsAdmin(c), milestoneID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, balance)
}

func (h *MilestoneHandler) actorAndID(c *gin.Context) (uuid.UUID, uuid.UUID, error) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	milestoneID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, milestoneID, nil
}
