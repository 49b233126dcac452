package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monkeysworks/monkeyswork-backend/internal/dto"
	"github.com/monkeysworks/monkeyswork-backend/internal/http/handlers/common"
	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/service"
)

// AdminBillingHandler — финансовая админка: сводка платформы, отчёты
// и управление выплатами.
type AdminBillingHandler struct {
	billing *service.BillingService
	payouts *service.PayoutService
}

func NewAdminBillingHandler(billing *service.BillingService, payouts *service.PayoutService) *AdminBillingHandler {
	return &AdminBillingHandler{billing: billing, payouts: payouts}
}

// GetOverview GET /admin/billing/overview
func (h *AdminBillingHandler) GetOverview(c *gin.Context) {
	overview, err := h.billing.GetAdminOverview(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, overview)
}

// GetRevenueReport GET /admin/billing/revenue-report
func (h *AdminBillingHandler) GetRevenueReport(c *gin.Context) {
	rows, err := h.billing.GetRevenueReport(c.Request.Context(),
		c.Query("from"), c.Query("to"), c.Query("group_by"))
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, rows)
}

// GetFinancialReport GET /admin/billing/financial-report
func (h *AdminBillingHandler) GetFinancialReport(c *gin.Context) {
	rows, err := h.billing.GetFinancialReport(c.Request.Context(),
		c.Query("from"), c.Query("to"), c.Query("group_by"))
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, rows)
}

// ListPayouts GET /admin/billing/payouts
func (h *AdminBillingHandler) ListPayouts(c *gin.Context) {
	page, perPage, limit, offset := common.GetPagination(c)
	status := c.Query("status")

	payouts, total, err := h.payouts.ListAll(c.Request.Context(), status, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondPage(c, payouts, page, perPage, total)
}

// UpdatePayout PATCH /admin/billing/payouts/:id
// Подтверждение или отклонение выплаты после ответа шлюза.
func (h *AdminBillingHandler) UpdatePayout(c *gin.Context) {
	payoutID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.PayoutStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailBinding(c, err)
		return
	}

	var payout *models.Payout
	if req.Status == models.PayoutStatusCompleted {
		payout, err = h.payouts.Complete(c.Request.Context(), payoutID, req.GatewayReference)
	} else {
		payout, err = h.payouts.Fail(c.Request.Context(), payoutID)
	}
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, payout)
}
