package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/dto"
	"github.com/monkeysworks/monkeyswork-backend/internal/http/handlers/common"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/service"
)

// parseDate парсит необязательную дату формата YYYY-MM-DD.
func parseDate(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", *v)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "дата должна быть в формате YYYY-MM-DD")
	}
	return &parsed, nil
}

type ContractHandler struct {
	contracts  *service.ContractService
	milestones *service.MilestoneService
	escrow     *service.EscrowService
}

func NewContractHandler(contracts *service.ContractService, milestones *service.MilestoneService, escrow *service.EscrowService) *ContractHandler {
	return &ContractHandler{
		contracts:  contracts,
		milestones: milestones,
		escrow:     escrow,
	}
}

// Create POST /contracts
func (h *ContractHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailBinding(c, err)
		return
	}

	params := service.CreateContractParams{
		ClientID:     userID,
		FreelancerID: uuid.MustParse(req.FreelancerID),
		Title:        req.Title,
		Description:  req.Description,
		ContractType: req.ContractType,
		Currency:     req.Currency,
	}
	if req.TotalAmount != "" {
		amount, err := common.ParseAmount("total_amount", req.TotalAmount)
		if err != nil {
			common.Fail(c, err)
			return
		}
		params.TotalAmount = amount
	}
	if req.HourlyRate != "" {
		rate, err := common.ParseAmount("hourly_rate", req.HourlyRate)
		if err != nil {
			common.Fail(c, err)
			return
		}
		params.HourlyRate = decimal.NewNullDecimal(rate)
	}
	if req.PlatformFeePercent != "" {
		percent, err := common.ParseAmount("platform_fee_percent", req.PlatformFeePercent)
		if err != nil {
			common.Fail(c, err)
			return
		}
		params.PlatformFeePercent = decimal.NewNullDecimal(percent)
	}

	contract, err := h.contracts.Create(c.Request.Context(), params)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusCreated, contract)
}

// ListMine GET /contracts/my
func (h *ContractHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	page, perPage, limit, offset := common.GetPagination(c)
	contracts, total, err := h.contracts.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondPage(c, contracts, page, perPage, total)
}

// Get GET /contracts/:id
func (h *ContractHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	contract, err := h.contracts.Get(c.Request.Context(), userID, common.IsAdmin(c), contractID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, contract)
}

// Activate POST /contracts/:id/activate
func (h *ContractHandler) Activate(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	contract, err := h.contracts.Activate(c.Request.Context(), userID, contractID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, contract)
}

// CreateMilestone POST /contracts/:id/milestones
func (h *ContractHandler) CreateMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailBinding(c, err)
		return
	}

	amount, err := common.ParseAmount("amount", req.Amount)
	if err != nil {
		common.Fail(c, err)
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		common.Fail(c, err)
		return
	}

	milestone, err := h.milestones.Create(c.Request.Context(), userID, contractID, req.Title, req.Description, amount, dueDate)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusCreated, milestone)
}

// ListMilestones GET /contracts/:id/milestones
func (h *ContractHandler) ListMilestones(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	milestones, err := h.milestones.ListByContract(c.Request.Context(), userID, common.IsAdmin(c), contractID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, milestones)
}

// GetLedger GET /contracts/:id/escrow
func (h *ContractHandler) GetLedger(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	ledger, err := h.escrow.GetContractLedger(c.Request.Context(), userID, common.IsAdmin(c), contractID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, ledger)
}

// ListTransactions GET /contracts/:id/transactions
func (h *ContractHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	page, perPage, limit, offset := common.GetPagination(c)
	transactions, total, err := h.escrow.ListContractTransactions(c.Request.Context(), userID, common.IsAdmin(c), contractID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondPage(c, transactions, page, perPage, total)
}
