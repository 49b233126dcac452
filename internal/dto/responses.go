package dto

import "github.com/monkeysworks/monkeyswork-backend/internal/models"

// Meta — метаданные постраничной выдачи.
type Meta struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

// DataResponse — стандартный конверт ответа API.
type DataResponse struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// ErrorBody — тело ошибки с машиночитаемым кодом.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse — стандартный конверт ошибки.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// AuthResponse — ответ на регистрацию, вход и ротацию токенов.
type AuthResponse struct {
	User         *models.User `json:"user,omitempty"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}
