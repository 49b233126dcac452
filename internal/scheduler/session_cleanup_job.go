package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/monkeysworks/monkeyswork-backend/internal/logger"
)

// SessionCleaner удаляет истёкшие refresh-сессии.
type SessionCleaner interface {
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// SessionCleanupJob раз в час чистит просроченные сессии.
type SessionCleanupJob struct {
	sessions SessionCleaner
}

func NewSessionCleanupJob(sessions SessionCleaner) *SessionCleanupJob {
	return &SessionCleanupJob{sessions: sessions}
}

func (j *SessionCleanupJob) Name() string {
	return "session_cleanup"
}

func (j *SessionCleanupJob) Schedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Hour)
}

func (j *SessionCleanupJob) Execute(ctx context.Context) {
	deleted, err := j.sessions.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		logger.Log.Errorf("Очистка сессий: %v", err)
		return
	}
	if deleted > 0 {
		logger.Log.Infof("Удалено истёкших сессий: %d", deleted)
	}
}
