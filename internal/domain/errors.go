package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")

	// Pagos y licencias
	ErrInvalidPhone        = errors.New("número de teléfono inválido, formato 2547XXXXXXXX")
	ErrInvalidMAC          = errors.New("dirección MAC inválida")
	ErrLicenseNotFound     = errors.New("licencia no encontrada")
	ErrInvalidLicense      = errors.New("licencia inválida")
	ErrLicenseExpired      = errors.New("licencia vencida o inactiva")
	ErrUserLimitReached    = errors.New("límite de usuarios de la licencia alcanzado")
	ErrPaymentInitiation   = errors.New("no se pudo iniciar el pago")
	ErrPaymentNotRecorded  = errors.New("pago iniciado pero sin registrar en la orden")
	ErrProviderUnavailable = errors.New("proveedor de pagos no disponible")
	ErrGrantFailed         = errors.New("no se pudo habilitar el acceso en el router")
	ErrOrderNotCompleted   = errors.New("la orden no está completada")
	ErrProviderConfig      = errors.New("proveedor externo sin configurar")
	ErrQueueClosed         = errors.New("cola cerrada")
)
