package repository

import (
	"context"

	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
)

// UserRepository define el puerto de persistencia para User (DIP).
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context, limit, offset int) ([]*entity.User, error)
	// Count total de usuarios: fuente autoritativa para el cupo de la licencia.
	Count(ctx context.Context) (int, error)
}
