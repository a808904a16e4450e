package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/internal/domain/repository"
)

var _ repository.AccessOrderRepository = (*AccessOrderRepo)(nil)

// AccessOrderRepo implementación de AccessOrderRepository sobre PostgreSQL.
type AccessOrderRepo struct {
	q Querier
}

// NewAccessOrderRepository construye el adaptador de órdenes de acceso.
func NewAccessOrderRepository(q Querier) *AccessOrderRepo {
	return &AccessOrderRepo{q: q}
}

const accessOrderColumns = `id, mac_address, phone, amount, transaction_id, checkout_id, receipt_number,
	status, granted_until, created_at, updated_at`

// Create persiste la orden en estado pending.
func (r *AccessOrderRepo) Create(ctx context.Context, o *entity.AccessOrder) error {
	query := `
		INSERT INTO access_orders (id, mac_address, phone, amount, transaction_id, checkout_id,
			receipt_number, status, granted_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		o.ID, o.MACAddress, o.Phone, o.Amount, o.TransactionID, nullable(o.CheckoutID),
		nullable(o.ReceiptNumber), string(o.Status), o.GrantedUntil, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert access order: %w", err)
	}
	return nil
}

// GetByTransactionID obtiene una orden por el identificador interno.
func (r *AccessOrderRepo) GetByTransactionID(ctx context.Context, transactionID string) (*entity.AccessOrder, error) {
	return r.findOne(ctx, `SELECT `+accessOrderColumns+` FROM access_orders WHERE transaction_id = $1`, transactionID)
}

// GetByCheckoutID obtiene una orden por el CheckoutRequestID del proveedor.
func (r *AccessOrderRepo) GetByCheckoutID(ctx context.Context, checkoutID string) (*entity.AccessOrder, error) {
	return r.findOne(ctx, `SELECT `+accessOrderColumns+` FROM access_orders WHERE checkout_id = $1`, checkoutID)
}

// SetCheckoutID guarda el CheckoutRequestID devuelto por el proveedor.
func (r *AccessOrderRepo) SetCheckoutID(ctx context.Context, id, checkoutID string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE access_orders SET checkout_id = $2, updated_at = now() WHERE id = $1`, id, checkoutID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("set access order checkout id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Complete pending -> completed con el recibo y el fin del acceso. false si ya era terminal.
func (r *AccessOrderRepo) Complete(ctx context.Context, id, receipt string, grantedUntil time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE access_orders SET status = $2, receipt_number = $3, granted_until = $4, updated_at = now()
		WHERE id = $1 AND status = $5`,
		id, string(entity.OrderCompleted), receipt, grantedUntil, string(entity.OrderPending))
	if err != nil {
		return false, fmt.Errorf("complete access order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Fail pending -> failed. false si ya era terminal.
func (r *AccessOrderRepo) Fail(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE access_orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, string(entity.OrderFailed), string(entity.OrderPending))
	if err != nil {
		return false, fmt.Errorf("fail access order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *AccessOrderRepo) findOne(ctx context.Context, query string, arg any) (*entity.AccessOrder, error) {
	o, err := scanAccessOrder(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get access order: %w", err)
	}
	return o, nil
}

func scanAccessOrder(row pgx.Row) (*entity.AccessOrder, error) {
	var (
		o                 entity.AccessOrder
		status            string
		checkout, receipt *string
	)
	err := row.Scan(
		&o.ID, &o.MACAddress, &o.Phone, &o.Amount, &o.TransactionID, &checkout, &receipt,
		&status, &o.GrantedUntil, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = entity.OrderStatus(status)
	o.CheckoutID, o.ReceiptNumber = deref(checkout), deref(receipt)
	return &o, nil
}
