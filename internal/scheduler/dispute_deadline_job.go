package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/monkeysworks/monkeyswork-backend/internal/logger"
)

// DisputeResolver закрывает споры с истёкшим дедлайном ответа.
type DisputeResolver interface {
	ResolveExpired(ctx context.Context) (int, error)
}

// DisputeDeadlineJob периодически закрывает просроченные споры в пользу
// ответившей стороны.
type DisputeDeadlineJob struct {
	disputes DisputeResolver
	interval time.Duration
}

func NewDisputeDeadlineJob(disputes DisputeResolver, interval time.Duration) *DisputeDeadlineJob {
	return &DisputeDeadlineJob{
		disputes: disputes,
		interval: intervalOrDefault(interval, 10*time.Minute),
	}
}

func (j *DisputeDeadlineJob) Name() string {
	return "dispute_deadline_resolver"
}

func (j *DisputeDeadlineJob) Schedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *DisputeDeadlineJob) Execute(ctx context.Context) {
	resolved, err := j.disputes.ResolveExpired(ctx)
	if err != nil {
		logger.Log.Errorf("Проверка дедлайнов споров: %v", err)
		return
	}
	if resolved > 0 {
		logger.Log.Infof("Автоматически закрыто споров: %d", resolved)
	}
}
