package entity

// OrderStatus ciclo de vida de una orden de pago: pending -> completed | failed.
type OrderStatus string

// Estados de orden (compartidos por órdenes de acceso y de renovación de licencia).
const (
	OrderPending   OrderStatus = "pending"   // STK push enviado, esperando resultado del proveedor
	OrderCompleted OrderStatus = "completed" // Pago confirmado y efecto aplicado
	OrderFailed    OrderStatus = "failed"    // Pago rechazado, cancelado o no iniciado
)

// IsTerminal indica si el estado ya no admite transiciones.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderFailed
}

// OrderKind tipo de orden que liquida el worker.
type OrderKind string

const (
	OrderKindAccess  OrderKind = "access"
	OrderKindLicense OrderKind = "license"
)
