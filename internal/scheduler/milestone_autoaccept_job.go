package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/monkeysworks/monkeyswork-backend/internal/logger"
)

// MilestoneAcceptor принимает этапы, по которым клиент молчит дольше
// отведённого срока.
type MilestoneAcceptor interface {
	AutoAcceptDue(ctx context.Context) (int, error)
}

// MilestoneAutoAcceptJob периодически принимает просроченные этапы.
type MilestoneAutoAcceptJob struct {
	milestones MilestoneAcceptor
	interval   time.Duration
}

func NewMilestoneAutoAcceptJob(milestones MilestoneAcceptor, interval time.Duration) *MilestoneAutoAcceptJob {
	return &MilestoneAutoAcceptJob{
		milestones: milestones,
		interval:   intervalOrDefault(interval, time.Hour),
	}
}

func (j *MilestoneAutoAcceptJob) Name() string {
	return "milestone_auto_accept"
}

func (j *MilestoneAutoAcceptJob) Schedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *MilestoneAutoAcceptJob) Execute(ctx context.Context) {
	accepted, err := j.milestones.AutoAcceptDue(ctx)
	if err != nil {
		logger.Log.Errorf("Автоприёмка этапов: %v", err)
		return
	}
	if accepted > 0 {
		logger.Log.Infof("Автоматически принято этапов: %d", accepted)
	}
}
