package common

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/dto"
	"github.com/monkeysworks/monkeyswork-backend/internal/http/middleware"
	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
)

// CurrentUserID извлекает ID пользователя из контекста запроса.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// CurrentUserRole извлекает роль пользователя из контекста запроса.
func CurrentUserRole(c *gin.Context) string {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return ""
	}
	role, _ := raw.(string)
	return role
}

// IsAdmin возвращает true для запроса от администратора.
func IsAdmin(c *gin.Context) bool {
	return CurrentUserRole(c) == models.RoleAdmin
}

// ParseUUIDParam читает UUID из параметра пути.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, apperror.New(apperror.ErrCodeBadRequest, "параметр "+paramName+" должен быть валидным UUID")
	}
	return parsed, nil
}

// ParseAmount парсит денежную сумму из строки запроса.
func ParseAmount(field, value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "поле "+field+" должно быть десятичным числом")
	}
	return amount, nil
}

// ParseIntQuery читает целочисленный query-параметр с дефолтом.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination извлекает page/per_page из query и возвращает вместе
// с производными limit/offset.
func GetPagination(c *gin.Context) (page, perPage, limit, offset int) {
	page = ParseIntQuery(c, "page", 1)
	perPage = ParseIntQuery(c, "per_page", 20)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage, perPage, (page - 1) * perPage
}

// RespondData отправляет данные в стандартном конверте.
func RespondData(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, dto.DataResponse{Data: data})
}

// RespondPage отправляет страницу списка вместе с метаданными.
func RespondPage(c *gin.Context, data any, page, perPage, total int) {
	c.JSON(http.StatusOK, dto.DataResponse{
		Data: data,
		Meta: &dto.Meta{Page: page, PerPage: perPage, Total: total},
	})
}

// Fail складывает ошибку в контекст; ответ сформирует ErrorHandler.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// FailBinding оборачивает ошибку привязки запроса в валидационную.
func FailBinding(c *gin.Context, err error) {
	Fail(c, apperror.New(apperror.ErrCodeValidation, "ошибка валидации запроса: "+err.Error()))
}
