package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/internal/domain/repository"
)

var _ repository.LicenseOrderRepository = (*LicenseOrderRepo)(nil)

// LicenseOrderRepo implementación de LicenseOrderRepository sobre PostgreSQL.
type LicenseOrderRepo struct {
	q Querier
}

// NewLicenseOrderRepository construye el adaptador de órdenes de renovación.
func NewLicenseOrderRepository(q Querier) *LicenseOrderRepo {
	return &LicenseOrderRepo{q: q}
}

const licenseOrderColumns = `o.id, o.license_id, o.amount, o.phone, o.months, o.transaction_id, o.checkout_id,
	o.receipt_number, o.status, o.period_start, o.period_end, o.created_at, o.updated_at`

// Create persiste la orden en estado pending.
func (r *LicenseOrderRepo) Create(ctx context.Context, o *entity.LicenseOrder) error {
	query := `
		INSERT INTO license_orders (id, license_id, amount, phone, months, transaction_id, checkout_id,
			receipt_number, status, period_start, period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		o.ID, o.LicenseID, o.Amount, o.Phone, o.Months, o.TransactionID, nullable(o.CheckoutID),
		nullable(o.ReceiptNumber), string(o.Status), o.PeriodStart, o.PeriodEnd, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert license order: %w", err)
	}
	return nil
}

// GetByID obtiene una orden por ID.
func (r *LicenseOrderRepo) GetByID(ctx context.Context, id string) (*entity.LicenseOrder, error) {
	return r.findOne(ctx, `SELECT `+licenseOrderColumns+` FROM license_orders o WHERE o.id = $1`, id)
}

// GetByTransactionID obtiene una orden por el identificador interno.
func (r *LicenseOrderRepo) GetByTransactionID(ctx context.Context, transactionID string) (*entity.LicenseOrder, error) {
	return r.findOne(ctx, `SELECT `+licenseOrderColumns+` FROM license_orders o WHERE o.transaction_id = $1`, transactionID)
}

// GetByCheckoutID obtiene la orden con su licencia cargada (join).
func (r *LicenseOrderRepo) GetByCheckoutID(ctx context.Context, checkoutID string) (*entity.LicenseOrder, error) {
	query := `
		SELECT ` + licenseOrderColumns + `, ` + joinedLicenseColumns + `
		FROM license_orders o
		JOIN licenses l ON l.id = o.license_id
		WHERE o.checkout_id = $1`
	var (
		o                 entity.LicenseOrder
		lic               entity.License
		status            string
		checkout, receipt *string
	)
	dest := append(orderScanDest(&o, &checkout, &receipt, &status), licenseScanDest(&lic)...)
	if err := r.q.QueryRow(ctx, query, checkoutID).Scan(dest...); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get license order by checkout: %w", err)
	}
	o.Status = entity.OrderStatus(status)
	o.CheckoutID, o.ReceiptNumber = deref(checkout), deref(receipt)
	o.License = &lic
	return &o, nil
}

// SetCheckoutID guarda el CheckoutRequestID devuelto por el proveedor.
func (r *LicenseOrderRepo) SetCheckoutID(ctx context.Context, id, checkoutID string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE license_orders SET checkout_id = $2, updated_at = now() WHERE id = $1`, id, checkoutID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("set license order checkout id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Complete pending -> completed. false si la orden ya era terminal.
func (r *LicenseOrderRepo) Complete(ctx context.Context, id, receipt string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE license_orders SET status = $2, receipt_number = $3, updated_at = now()
		WHERE id = $1 AND status = $4`,
		id, string(entity.OrderCompleted), receipt, string(entity.OrderPending))
	if err != nil {
		return false, fmt.Errorf("complete license order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Fail pending -> failed. false si la orden ya era terminal.
func (r *LicenseOrderRepo) Fail(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE license_orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, string(entity.OrderFailed), string(entity.OrderPending))
	if err != nil {
		return false, fmt.Errorf("fail license order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListRecentByLicense últimas órdenes de una licencia, más recientes primero.
func (r *LicenseOrderRepo) ListRecentByLicense(ctx context.Context, licenseID string, limit int) ([]*entity.LicenseOrder, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+licenseOrderColumns+` FROM license_orders o
		WHERE o.license_id = $1 ORDER BY o.created_at DESC LIMIT $2`, licenseID, limit)
	if err != nil {
		return nil, fmt.Errorf("list license orders: %w", err)
	}
	defer rows.Close()

	var out []*entity.LicenseOrder
	for rows.Next() {
		o, err := scanLicenseOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *LicenseOrderRepo) findOne(ctx context.Context, query string, arg any) (*entity.LicenseOrder, error) {
	o, err := scanLicenseOrder(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get license order: %w", err)
	}
	return o, nil
}

func scanLicenseOrder(row pgx.Row) (*entity.LicenseOrder, error) {
	var (
		o                 entity.LicenseOrder
		status            string
		checkout, receipt *string
	)
	if err := row.Scan(orderScanDest(&o, &checkout, &receipt, &status)...); err != nil {
		return nil, err
	}
	o.Status = entity.OrderStatus(status)
	o.CheckoutID, o.ReceiptNumber = deref(checkout), deref(receipt)
	return &o, nil
}

// orderScanDest destinos en el orden de licenseOrderColumns. checkout_id y receipt_number son NULL
// hasta que se conocen.
func orderScanDest(o *entity.LicenseOrder, checkout, receipt **string, status *string) []any {
	return []any{
		&o.ID, &o.LicenseID, &o.Amount, &o.Phone, &o.Months, &o.TransactionID, checkout,
		receipt, status, &o.PeriodStart, &o.PeriodEnd, &o.CreatedAt, &o.UpdatedAt,
	}
}

const joinedLicenseColumns = `l.id, l.license_key, l.client_name, COALESCE(l.contact_phone, ''),
	COALESCE(l.contact_email, ''), COALESCE(l.notes, ''), l.status, l.monthly_amount, l.user_limit,
	l.current_user_count, l.issued_at, l.expires_at, l.created_at, l.updated_at`

func licenseScanDest(l *entity.License) []any {
	return []any{
		&l.ID, &l.Key, &l.ClientName, &l.ContactPhone, &l.ContactEmail, &l.Notes, &l.Status,
		&l.MonthlyAmount, &l.UserLimit, &l.CurrentUserCount, &l.IssuedAt, &l.ExpiresAt,
		&l.CreatedAt, &l.UpdatedAt,
	}
}
