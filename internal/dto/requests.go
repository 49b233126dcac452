package dto

import "encoding/json"

// RegisterRequest — данные регистрации пользователя.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

// LoginRequest — данные входа.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest — ротация refresh токена.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateContractRequest — создание контракта клиентом.
// Денежные поля передаются строками и парсятся в decimal.
type CreateContractRequest struct {
	FreelancerID       string `json:"freelancer_id" binding:"required,uuid"`
	Title              string `json:"title" binding:"required"`
	Description        string `json:"description"`
	ContractType       string `json:"contract_type" binding:"required,oneof=fixed hourly"`
	TotalAmount        string `json:"total_amount"`
	HourlyRate         string `json:"hourly_rate"`
	Currency           string `json:"currency"`
	PlatformFeePercent string `json:"platform_fee_percent"`
}

// ContractStatusRequest — смена статуса контракта администратором.
type ContractStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateMilestoneRequest — добавление этапа к контракту.
type CreateMilestoneRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Amount      string  `json:"amount" binding:"required"`
	DueDate     *string `json:"due_date"`
}

// FundMilestoneRequest — фандинг эскроу этапа.
type FundMilestoneRequest struct {
	GatewayReference *string `json:"gateway_reference"`
}

// RevisionRequest — запрос доработки этапа.
type RevisionRequest struct {
	Comment string `json:"comment"`
}

// FileDisputeRequest — открытие спора по контракту.
type FileDisputeRequest struct {
	ContractID  string          `json:"contract_id" binding:"required,uuid"`
	MilestoneID *string         `json:"milestone_id"`
	Reason      string          `json:"reason" binding:"required"`
	Description string          `json:"description"`
	Evidence    json.RawMessage `json:"evidence"`
}

// DisputeMessageRequest — сообщение в треде спора. IsInternal доступно
// только администраторам.
type DisputeMessageRequest struct {
	Body        string   `json:"body" binding:"required"`
	Attachments []string `json:"attachments"`
	IsInternal  bool     `json:"is_internal"`
}

// ResolveDisputeRequest — решение арбитража по спору.
type ResolveDisputeRequest struct {
	Status           string  `json:"status" binding:"required"`
	ResolutionAmount *string `json:"resolution_amount"`
	Note             string  `json:"note"`
}

// RefundRequest — возврат части эскроу клиенту (админская операция).
type RefundRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// PayoutRequest — заявка фрилансера на вывод средств.
type PayoutRequest struct {
	Amount   string `json:"amount" binding:"required"`
	Method   string `json:"method" binding:"required"`
	Currency string `json:"currency"`
}

// PayoutStatusRequest — завершение или отклонение выплаты администратором.
type PayoutStatusRequest struct {
	Status           string `json:"status" binding:"required,oneof=completed failed"`
	GatewayReference string `json:"gateway_reference"`
}
