package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/monkeysworks/monkeyswork-backend/internal/logger"
)

// Job — периодическая фоновая задача.
type Job interface {
	Name() string
	Schedule() gocron.JobDefinition
	Execute(ctx context.Context)
}

// Manager регистрирует и запускает фоновые задачи платформы.
type Manager struct {
	scheduler gocron.Scheduler
	jobs      []Job
}

// NewManager создаёт менеджер задач.
func NewManager() (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Manager{scheduler: s}, nil
}

// Register добавляет задачу в план. Singleton-режим не даёт запускам
// одной задачи накладываться друг на друга.
func (m *Manager) Register(ctx context.Context, job Job) error {
	_, err := m.scheduler.NewJob(
		job.Schedule(),
		gocron.NewTask(func() { job.Execute(ctx) }),
		gocron.WithName(job.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// Start запускает планировщик.
func (m *Manager) Start() {
	m.scheduler.Start()
	for _, job := range m.jobs {
		logger.Log.Infof("Планировщик: задача %s зарегистрирована", job.Name())
	}
}

// Stop останавливает планировщик, дожидаясь текущих запусков.
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Log.Errorf("Планировщик: ошибка остановки: %v", err)
	}
}

// intervalOrDefault защищает от нулевого интервала из конфигурации.
func intervalOrDefault(interval, fallback time.Duration) time.Duration {
	if interval <= 0 {
		return fallback
	}
	return interval
}
