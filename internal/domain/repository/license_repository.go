package repository

import (
	"context"
	"time"

	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
)

// LicenseRepository define el puerto de persistencia para License (DIP).
// Los Get* devuelven (nil, nil) si no existe.
type LicenseRepository interface {
	Create(ctx context.Context, license *entity.License) error
	GetByID(ctx context.Context, id string) (*entity.License, error)
	GetByKey(ctx context.Context, key string) (*entity.License, error)
	List(ctx context.Context, limit, offset int) ([]*entity.License, error)
	// UpdateStatus override administrativo (active | expired | suspended).
	UpdateStatus(ctx context.Context, id, status string) error
	// Extend fija expires_at y fuerza status = active. Solo toca esas dos columnas.
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	// UpdateUserCount solo toca current_user_count; no compite con Extend.
	UpdateUserCount(ctx context.Context, id string, count int) error
}
