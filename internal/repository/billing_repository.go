package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// BillingSummary — сводка по деньгам пользователя для личного кабинета.
type BillingSummary struct {
	TotalSpent    decimal.Decimal `db:"total_spent" json:"total_spent"`
	TotalEarned   decimal.Decimal `db:"total_earned" json:"total_earned"`
	InEscrow      decimal.Decimal `db:"in_escrow" json:"in_escrow"`
	TotalRefunded decimal.Decimal `db:"total_refunded" json:"total_refunded"`
	FeesPaid      decimal.Decimal `db:"fees_paid" json:"fees_paid"`
}

// AdminOverview — ключевые показатели платформы.
type AdminOverview struct {
	PlatformRevenue decimal.Decimal `db:"platform_revenue" json:"platform_revenue"`
	ClientFees      decimal.Decimal `db:"client_fees" json:"client_fees"`
	GrossVolume     decimal.Decimal `db:"gross_volume" json:"gross_volume"`
	EscrowBalance   decimal.Decimal `db:"escrow_balance" json:"escrow_balance"`
	PayoutsStripe   decimal.Decimal `db:"payouts_stripe" json:"payouts_stripe"`
	PayoutsPayPal   decimal.Decimal `db:"payouts_paypal" json:"payouts_paypal"`
	OpenDisputes    int             `db:"open_disputes" json:"open_disputes"`
}

// ReportRow — строка отчёта по выручке за период.
type ReportRow struct {
	Period      string          `db:"period" json:"period"`
	Revenue     decimal.Decimal `db:"revenue" json:"revenue"`
	ClientFees  decimal.Decimal `db:"client_fees" json:"client_fees"`
	GrossVolume decimal.Decimal `db:"gross_volume" json:"gross_volume"`
	Released    decimal.Decimal `db:"released" json:"released"`
	Refunded    decimal.Decimal `db:"refunded" json:"refunded"`
}

// TopUser — строка рейтинга клиентов или фрилансеров по обороту.
type TopUser struct {
	UserID      uuid.UUID       `db:"user_id" json:"user_id"`
	DisplayName string          `db:"display_name" json:"display_name"`
	Total       decimal.Decimal `db:"total" json:"total"`
}

type BillingRepository struct {
	db *sqlx.DB
}

func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// GetUserSummary возвращает сводку по пользователю. Пустой журнал
// даёт нулевую сводку, а не ошибку.
func (r *BillingRepository) GetUserSummary(ctx context.Context, userID uuid.UUID) (*BillingSummary, error) {
	var s BillingSummary
	query := `
		SELECT
			COALESCE(SUM(t.amount) FILTER (WHERE t.type = 'fund' AND c.client_id = $1), 0) AS total_spent,
			COALESCE(SUM(t.amount) FILTER (WHERE t.type = 'release' AND c.freelancer_id = $1), 0) AS total_earned,
			COALESCE(SUM(CASE WHEN t.type = 'fund' THEN t.amount
				WHEN t.type IN ('release', 'refund', 'dispute_refund') THEN -t.amount
				ELSE 0 END) FILTER (WHERE c.client_id = $1 OR c.freelancer_id = $1), 0) AS in_escrow,
			COALESCE(SUM(t.amount) FILTER (WHERE t.type IN ('refund', 'dispute_refund') AND c.client_id = $1), 0) AS total_refunded,
			COALESCE(SUM(t.amount) FILTER (WHERE t.type = 'client_fee' AND c.client_id = $1
				OR t.type = 'platform_fee' AND c.freelancer_id = $1), 0) AS fees_paid
		FROM escrow_transactions t
		JOIN contracts c ON c.id = t.contract_id
		WHERE t.status = 'completed'
	`
	if err := r.db.GetContext(ctx, &s, query, userID); err != nil {
		return nil, fmt.Errorf("billing repository: user summary %w", err)
	}
	return &s, nil
}

// GetAdminOverview возвращает ключевые показатели платформы.
// Выплаты разбиваются по методу из payouts.
func (r *BillingRepository) GetAdminOverview(ctx context.Context) (*AdminOverview, error) {
	var o AdminOverview
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'platform_fee'), 0) AS platform_revenue,
			COALESCE(SUM(amount) FILTER (WHERE type = 'client_fee'), 0)   AS client_fees,
			COALESCE(SUM(amount) FILTER (WHERE type = 'fund'), 0)         AS gross_volume,
			COALESCE(SUM(CASE WHEN type = 'fund' THEN amount
				WHEN type IN ('release', 'refund', 'dispute_refund') THEN -amount
				ELSE 0 END), 0) AS escrow_balance,
			(SELECT COALESCE(SUM(amount), 0) FROM payouts WHERE status = 'completed' AND method = 'stripe') AS payouts_stripe,
			(SELECT COALESCE(SUM(amount), 0) FROM payouts WHERE status = 'completed' AND method = 'paypal') AS payouts_paypal,
			(SELECT COUNT(*) FROM disputes WHERE status IN ('open', 'under_review', 'escalated')) AS open_disputes
		FROM escrow_transactions
		WHERE status = 'completed'
	`
	if err := r.db.GetContext(ctx, &o, query); err != nil {
		return nil, fmt.Errorf("billing repository: admin overview %w", err)
	}
	return &o, nil
}

// reportBucket возвращает выражение to_char для группировки по периоду.
func reportBucket(groupBy string) string {
	switch groupBy {
	case "week":
		return `to_char(date_trunc('week', created_at), 'YYYY-MM-DD')`
	case "month":
		return `to_char(created_at, 'YYYY-MM')`
	default:
		return `to_char(created_at, 'YYYY-MM-DD')`
	}
}

// GetRevenueReport возвращает выручку платформы по периодам.
func (r *BillingRepository) GetRevenueReport(ctx context.Context, from, to string, groupBy string) ([]ReportRow, error) {
	bucket := reportBucket(groupBy)
	query := fmt.Sprintf(`
		SELECT
			%s AS period,
			COALESCE(SUM(amount) FILTER (WHERE type = 'platform_fee'), 0) AS revenue,
			COALESCE(SUM(amount) FILTER (WHERE type = 'client_fee'), 0)   AS client_fees,
			COALESCE(SUM(amount) FILTER (WHERE type = 'fund'), 0)         AS gross_volume,
			COALESCE(SUM(amount) FILTER (WHERE type = 'release'), 0)      AS released,
			COALESCE(SUM(amount) FILTER (WHERE type IN ('refund', 'dispute_refund')), 0) AS refunded
		FROM escrow_transactions
		WHERE status = 'completed' AND created_at >= $1::date AND created_at < $2::date + INTERVAL '1 day'
		GROUP BY 1
		ORDER BY 1 ASC
	`, bucket)

	var rows []ReportRow
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("billing repository: revenue report %w", err)
	}
	return rows, nil
}

// FinancialReportRow — строка сводного финансового отчёта.
type FinancialReportRow struct {
	Period          string          `db:"period" json:"period"`
	Funded          decimal.Decimal `db:"funded" json:"funded"`
	Released        decimal.Decimal `db:"released" json:"released"`
	Refunded        decimal.Decimal `db:"refunded" json:"refunded"`
	PlatformRevenue decimal.Decimal `db:"platform_revenue" json:"platform_revenue"`
	DisputesOpened  int             `db:"disputes_opened" json:"disputes_opened"`
	DisputesClosed  int             `db:"disputes_closed" json:"disputes_closed"`
}

// GetFinancialReport возвращает движение средств и динамику споров по периодам.
func (r *BillingRepository) GetFinancialReport(ctx context.Context, from, to string, groupBy string) ([]FinancialReportRow, error) {
	bucket := reportBucket(groupBy)
	query := fmt.Sprintf(`
		WITH money AS (
			SELECT
				%s AS period,
				COALESCE(SUM(amount) FILTER (WHERE type = 'fund'), 0)    AS funded,
				COALESCE(SUM(amount) FILTER (WHERE type = 'release'), 0) AS released,
				COALESCE(SUM(amount) FILTER (WHERE type IN ('refund', 'dispute_refund')), 0) AS refunded,
				COALESCE(SUM(amount) FILTER (WHERE type IN ('platform_fee', 'client_fee')), 0) AS platform_revenue
			FROM escrow_transactions
			WHERE status = 'completed' AND created_at >= $1::date AND created_at < $2::date + INTERVAL '1 day'
			GROUP BY 1
		),
		opened AS (
			SELECT %s AS period, COUNT(*) AS disputes_opened
			FROM disputes
			WHERE created_at >= $1::date AND created_at < $2::date + INTERVAL '1 day'
			GROUP BY 1
		),
		closed AS (
			SELECT %s AS period, COUNT(*) AS disputes_closed
			FROM disputes
			WHERE resolved_at IS NOT NULL AND resolved_at >= $1::date AND resolved_at < $2::date + INTERVAL '1 day'
			GROUP BY 1
		)
		SELECT
			m.period,
			m.funded, m.released, m.refunded, m.platform_revenue,
			COALESCE(o.disputes_opened, 0) AS disputes_opened,
			COALESCE(cl.disputes_closed, 0) AS disputes_closed
		FROM money m
		LEFT JOIN opened o ON o.period = m.period
		LEFT JOIN closed cl ON cl.period = m.period
		ORDER BY m.period ASC
	`, bucket, bucket, strings.Replace(bucket, "created_at", "resolved_at", 1))

	var rows []FinancialReportRow
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("billing repository: financial report %w", err)
	}
	return rows, nil
}

// GetTopClients возвращает клиентов с наибольшими тратами.
// При равных суммах порядок стабилен за счёт сортировки по id.
func (r *BillingRepository) GetTopClients(ctx context.Context, limit int) ([]TopUser, error) {
	var rows []TopUser
	query := `
		SELECT c.client_id AS user_id, u.display_name, COALESCE(SUM(t.amount), 0) AS total
		FROM escrow_transactions t
		JOIN contracts c ON c.id = t.contract_id
		JOIN users u ON u.id = c.client_id
		WHERE t.type = 'fund' AND t.status = 'completed'
		GROUP BY c.client_id, u.display_name
		ORDER BY total DESC, user_id ASC
		LIMIT $1
	`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("billing repository: top clients %w", err)
	}
	return rows, nil
}

// GetTopFreelancers возвращает фрилансеров с наибольшим заработком.
func (r *BillingRepository) GetTopFreelancers(ctx context.Context, limit int) ([]TopUser, error) {
	var rows []TopUser
	query := `
		SELECT c.freelancer_id AS user_id, u.display_name, COALESCE(SUM(t.amount), 0) AS total
		FROM escrow_transactions t
		JOIN contracts c ON c.id = t.contract_id
		JOIN users u ON u.id = c.freelancer_id
		WHERE t.type = 'release' AND t.status = 'completed'
		GROUP BY c.freelancer_id, u.display_name
		ORDER BY total DESC, user_id ASC
		LIMIT $1
	`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("billing repository: top freelancers %w", err)
	}
	return rows, nil
}
