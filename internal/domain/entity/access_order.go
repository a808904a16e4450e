package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccessOrder compra de acceso temporal a la red para un dispositivo (MAC).
type AccessOrder struct {
	ID            string
	MACAddress    string // AA:BB:CC:DD:EE:FF
	Phone         string
	Amount        decimal.Decimal
	TransactionID string
	CheckoutID    string
	ReceiptNumber string
	Status        OrderStatus
	GrantedUntil  *time.Time // solo se fija al completar; nunca se revisa
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
