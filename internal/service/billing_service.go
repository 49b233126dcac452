package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository"
)

// BillingStore — read-only агрегаты по журналу эскроу.
type BillingStore interface {
	GetUserSummary(ctx context.Context, userID uuid.UUID) (*repository.BillingSummary, error)
	GetAdminOverview(ctx context.Context) (*repository.AdminOverview, error)
	GetRevenueReport(ctx context.Context, from, to string, groupBy string) ([]repository.ReportRow, error)
	GetFinancialReport(ctx context.Context, from, to string, groupBy string) ([]repository.FinancialReportRow, error)
	GetTopClients(ctx context.Context, limit int) ([]repository.TopUser, error)
	GetTopFreelancers(ctx context.Context, limit int) ([]repository.TopUser, error)
}

type BillingService struct {
	billingRepo BillingStore
}

func NewBillingService(br BillingStore) *BillingService {
	return &BillingService{billingRepo: br}
}

// AdminOverview — сводка платформы вместе с рейтингами.
type AdminOverviewResult struct {
	*repository.AdminOverview
	TopClients     []repository.TopUser `json:"top_clients"`
	TopFreelancers []repository.TopUser `json:"top_freelancers"`
}

// GetUserSummary возвращает сводку пользователя. Пустой журнал даёт
// нулевую сводку.
func (s *BillingService) GetUserSummary(ctx context.Context, userID uuid.UUID) (*repository.BillingSummary, error) {
	return s.billingRepo.GetUserSummary(ctx, userID)
}

// GetAdminOverview возвращает ключевые показатели платформы и топ-5
// клиентов и фрилансеров по обороту.
func (s *BillingService) GetAdminOverview(ctx context.Context) (*AdminOverviewResult, error) {
	overview, err := s.billingRepo.GetAdminOverview(ctx)
	if err != nil {
		return nil, err
	}

	topClients, err := s.billingRepo.GetTopClients(ctx, 5)
	if err != nil {
		return nil, err
	}
	topFreelancers, err := s.billingRepo.GetTopFreelancers(ctx, 5)
	if err != nil {
		return nil, err
	}

	// Пустые выборки отдаём как пустые массивы, а не null.
	if topClients == nil {
		topClients = []repository.TopUser{}
	}
	if topFreelancers == nil {
		topFreelancers = []repository.TopUser{}
	}

	return &AdminOverviewResult{
		AdminOverview:  overview,
		TopClients:     topClients,
		TopFreelancers: topFreelancers,
	}, nil
}

// normalizeReportRange проверяет даты отчёта и подставляет дефолтный
// период за последние 30 дней.
func normalizeReportRange(from, to, groupBy string) (string, string, string, error) {
	switch groupBy {
	case "", "day":
		groupBy = "day"
	case "week", "month":
	default:
		return "", "", "", apperror.New(apperror.ErrCodeValidation, "group_by должен быть day, week или month")
	}

	now := time.Now()
	if to == "" {
		to = now.Format("2006-01-02")
	}
	if from == "" {
		from = now.AddDate(0, 0, -30).Format("2006-01-02")
	}

	fromDate, err := time.Parse("2006-01-02", from)
	if err != nil {
		return "", "", "", apperror.New(apperror.ErrCodeValidation, "неверный формат даты from, ожидается YYYY-MM-DD")
	}
	toDate, err := time.Parse("2006-01-02", to)
	if err != nil {
		return "", "", "", apperror.New(apperror.ErrCodeValidation, "неверный формат даты to, ожидается YYYY-MM-DD")
	}
	if fromDate.After(toDate) {
		return "", "", "", apperror.New(apperror.ErrCodeValidation, "дата from позже даты to")
	}
	return from, to, groupBy, nil
}

// GetRevenueReport возвращает выручку платформы по периодам.
func (s *BillingService) GetRevenueReport(ctx context.Context, from, to, groupBy string) ([]repository.ReportRow, error) {
	from, to, groupBy, err := normalizeReportRange(from, to, groupBy)
	if err != nil {
		return nil, err
	}
	rows, err := s.billingRepo.GetRevenueReport(ctx, from, to, groupBy)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []repository.ReportRow{}
	}
	return rows, nil
}

// GetFinancialReport возвращает движение средств и динамику споров.
func (s *BillingService) GetFinancialReport(ctx context.Context, from, to, groupBy string) ([]repository.FinancialReportRow, error) {
	from, to, groupBy, err := normalizeReportRange(from, to, groupBy)
	if err != nil {
		return nil, err
	}
	rows, err := s.billingRepo.GetFinancialReport(ctx, from, to, groupBy)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []repository.FinancialReportRow{}
	}
	return rows, nil
}
