package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

type InvoiceRepository struct {
	db *sqlx.DB
}

func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// GetByID возвращает инвойс по ID.
func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return common.GetByID[models.Invoice](ctx, r.db, "invoices", id, common.ErrNotFound)
}

// ListByClient возвращает инвойсы клиента.
func (r *InvoiceRepository) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]models.Invoice, int, error) {
	var invoices []models.Invoice
	err := r.db.SelectContext(ctx, &invoices, `
		SELECT * FROM invoices WHERE client_id = $1
		ORDER BY issued_at DESC, id ASC
		LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("invoice repository: list by client %w", err)
	}

	var total int
	err = r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM invoices WHERE client_id = $1`, clientID)
	if err != nil {
		return nil, 0, fmt.Errorf("invoice repository: count by client %w", err)
	}
	return invoices, total, nil
}
