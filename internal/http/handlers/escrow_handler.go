package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monkeysworks/monkeyswork-backend/internal/http/handlers/common"
	"github.com/monkeysworks/monkeyswork-backend/internal/service"
)

// EscrowHandler — журнал эскроу глазами пользователя.
type EscrowHandler struct {
	escrow  *service.EscrowService
	billing *service.BillingService
}

func NewEscrowHandler(escrow *service.EscrowService, billing *service.BillingService) *EscrowHandler {
	return &EscrowHandler{escrow: escrow, billing: billing}
}

// GetBalance GET /escrow/balance
// Позиция пользователя по журналу: потрачено, заработано, в эскроу.
func (h *EscrowHandler) GetBalance(c *gin.Context) {
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

// ListTransactions GET /escrow/transactions
func (h *EscrowHandler) ListTransactions(c *gin.Context) {
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

// GetTransaction GET /escrow/transactions/:id
func (h *EscrowHandler) GetTransaction(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	txID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	transaction, err := h.escrow.GetTransaction(c.Request.Context(), userID, common.IsAdmin(c), txID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, transaction)
}
