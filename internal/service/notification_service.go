package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/monkeysworks/monkeyswork-backend/internal/logger"
	"github.com/monkeysworks/monkeyswork-backend/internal/models"
)

// NotificationStore описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

// Pusher доставляет событие подключённым WebSocket клиентам пользователя.
type Pusher interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// NotificationService сохраняет уведомления и рассылает их по WebSocket.
// Доставка best-effort: сбой уведомления не должен ломать бизнес-операцию.
type NotificationService struct {
	repo   NotificationStore
	pusher Pusher
}

// NewNotificationService создаёт сервис уведомлений. pusher может быть nil,
// тогда уведомления только сохраняются.
func NewNotificationService(repo NotificationStore, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

// Notify сохраняет уведомление и отправляет его в реальном времени.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, ntype, title, body string, entityID *uuid.UUID) {
	n := &models.Notification{
		ID:       uuid.New(),
		UserID:   userID,
		Type:     ntype,
		Title:    title,
		Body:     body,
		EntityID: entityID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		logger.Log.Errorf("Не удалось сохранить уведомление %s для %s: %v", ntype, userID, err)
		return
	}

	if s.pusher != nil {
		if err := s.pusher.BroadcastToUser(userID, ntype, n); err != nil {
			logger.Log.Warnf("Не удалось отправить уведомление %s по WebSocket: %v", n.ID, err)
		}
	}
}

// List возвращает уведомления пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// UnreadCount возвращает число непрочитанных уведомлений.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// MarkRead помечает уведомление прочитанным. Чужие уведомления
// игнорируются условием по user_id.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

// MarkAllRead помечает все уведомления пользователя прочитанными.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}
