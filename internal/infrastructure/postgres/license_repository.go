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

var _ repository.LicenseRepository = (*LicenseRepo)(nil)

// LicenseRepo implementación de LicenseRepository sobre PostgreSQL.
type LicenseRepo struct {
	q Querier
}

// NewLicenseRepository construye el adaptador de licencias.
func NewLicenseRepository(q Querier) *LicenseRepo {
	return &LicenseRepo{q: q}
}

const licenseColumns = `id, license_key, client_name, COALESCE(contact_phone, ''), COALESCE(contact_email, ''),
	COALESCE(notes, ''), status, monthly_amount, user_limit, current_user_count, issued_at, expires_at,
	created_at, updated_at`

// Create persiste una licencia nueva.
func (r *LicenseRepo) Create(ctx context.Context, l *entity.License) error {
	query := `
		INSERT INTO licenses (id, license_key, client_name, contact_phone, contact_email, notes, status,
			monthly_amount, user_limit, current_user_count, issued_at, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		l.ID, l.Key, l.ClientName, nullable(l.ContactPhone), nullable(l.ContactEmail), nullable(l.Notes), l.Status,
		l.MonthlyAmount, l.UserLimit, l.CurrentUserCount, l.IssuedAt, l.ExpiresAt, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

// GetByID obtiene una licencia por ID.
func (r *LicenseRepo) GetByID(ctx context.Context, id string) (*entity.License, error) {
	return r.findOne(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE id = $1`, id)
}

// GetByKey obtiene una licencia por su clave.
func (r *LicenseRepo) GetByKey(ctx context.Context, key string) (*entity.License, error) {
	return r.findOne(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE license_key = $1`, key)
}

// List devuelve licencias paginadas, más recientes primero.
func (r *LicenseRepo) List(ctx context.Context, limit, offset int) ([]*entity.License, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+licenseColumns+` FROM licenses ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	var out []*entity.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpdateStatus cambia el estado administrativo de la licencia.
func (r *LicenseRepo) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE licenses SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update license status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Extend fija el nuevo vencimiento y reactiva la licencia.
func (r *LicenseRepo) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE licenses SET expires_at = $2, status = $3, updated_at = now() WHERE id = $1`,
		id, expiresAt, entity.LicenseActive)
	if err != nil {
		return fmt.Errorf("extend license: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateUserCount persiste el conteo de usuarios observado por el gate.
func (r *LicenseRepo) UpdateUserCount(ctx context.Context, id string, count int) error {
	_, err := r.q.Exec(ctx,
		`UPDATE licenses SET current_user_count = $2, updated_at = now() WHERE id = $1`, id, count)
	if err != nil {
		return fmt.Errorf("update license user count: %w", err)
	}
	return nil
}

func (r *LicenseRepo) findOne(ctx context.Context, query string, arg any) (*entity.License, error) {
	l, err := scanLicense(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get license: %w", err)
	}
	return l, nil
}

func scanLicense(row pgx.Row) (*entity.License, error) {
	var l entity.License
	if err := row.Scan(licenseScanDest(&l)...); err != nil {
		return nil, err
	}
	return &l, nil
}
