package ports

import (
	"context"
	"time"
)

// AccessGateway puerto de salida hacia el router del hotspot.
// Un timeout del contexto se trata igual que un fallo reportado.
type AccessGateway interface {
	Grant(ctx context.Context, mac string, duration time.Duration) error
}
