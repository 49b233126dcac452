package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monkeysworks/monkeyswork-backend/internal/dto"
	"github.com/monkeysworks/monkeyswork-backend/internal/http/handlers/common"
	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository"
	"github.com/monkeysworks/monkeyswork-backend/internal/service"
)

// AdminContractHandler — админка контрактов.
type AdminContractHandler struct {
	contracts *service.ContractService
	escrow    *service.EscrowService
}

func NewAdminContractHandler(contracts *service.ContractService, escrow *service.EscrowService) *AdminContractHandler {
	return &AdminContractHandler{contracts: contracts, escrow: escrow}
}

// adminContractView — контракт вместе со сводкой эскроу.
type adminContractView struct {
	Contract *models.Contract           `json:"contract"`
	Escrow   *repository.ContractLedger `json:"escrow"`
}

// List GET /admin/contracts
func (h *AdminContractHandler) List(c *gin.Context) {
	page, perPage, limit, offset := common.GetPagination(c)
	status := c.Query("status")

	contracts, total, err := h.contracts.ListAll(c.Request.Context(), status, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondPage(c, contracts, page, perPage, total)
}

// Get GET /admin/contracts/:id
func (h *AdminContractHandler) Get(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	contract, err := h.contracts.Get(ctx, adminID, true, contractID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	ledger, err := h.escrow.GetContractLedger(ctx, adminID, true, contractID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, adminContractView{Contract: contract, Escrow: ledger})
}

// ChangeStatus PATCH /admin/contracts/:id/status
func (h *AdminContractHandler) ChangeStatus(c *gin.Context) {
	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.ContractStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailBinding(c, err)
		return
	}

	contract, err := h.contracts.ChangeStatus(c.Request.Context(), contractID, req.Status)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, contract)
}

// RefundMilestone POST /admin/milestones/:id/refund
// Возврат клиенту части невыплаченного эскроу этапа.
func (h *AdminContractHandler) RefundMilestone(c *gin.Context) {
	milestoneID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailBinding(c, err)
		return
	}
	amount, err := common.ParseAmount("amount", req.Amount)
	if err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.escrow.Refund(c.Request.Context(), milestoneID, amount); err != nil {
		common.Fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
