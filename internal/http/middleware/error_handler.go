package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/monkeysworks/monkeyswork-backend/internal/dto"
	"github.com/monkeysworks/monkeyswork-backend/internal/logger"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно: handlers складывают
// ошибку через c.Error, middleware переводит её в HTTP-ответ. Внутренние
// ошибки маскируются, наружу уходят только коды apperror.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if appErr.HTTPStatus >= http.StatusInternalServerError && logger.Log != nil {
				logger.Log.WithFields(logrus.Fields{
					"error":  err.Error(),
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("Request error")
			}
			c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
				Error: dto.ErrorBody{
					Code:    string(appErr.Code),
					Message: appErr.Message,
				},
			})
			return
		}

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: dto.ErrorBody{
				Code:    string(apperror.ErrCodeInternal),
				Message: "внутренняя ошибка сервера",
			},
		})
	}
}
