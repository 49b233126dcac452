package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monkeysworks/monkeyswork-backend/internal/http/handlers/common"
	"github.com/monkeysworks/monkeyswork-backend/internal/service"
)

type BillingHandler struct {
	billing *service.BillingService
	escrow  *service.EscrowService
}

func NewBillingHandler(billing *service.BillingService, escrow *service.EscrowService) *BillingHandler {
	return &BillingHandler{billing: billing, escrow: escrow}
}

// GetSummary GET /billing/summary
func (h *BillingHandler) GetSummary(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	summary, err := h.billing.GetUserSummary(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, summary)
}

// ListTransactions GET /billing/transactions
func (h *BillingHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	page, perPage, limit, offset := common.GetPagination(c)
	transactions, total, err := h.escrow.ListUserTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondPage(c, transactions, page, perPage, total)
}
