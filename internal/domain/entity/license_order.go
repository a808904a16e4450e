package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LicenseOrder pago de renovación de una licencia por Months meses.
// PeriodStart = max(vencimiento actual, ahora) al crearla; PeriodEnd = PeriodStart + Months.
type LicenseOrder struct {
	ID            string
	LicenseID     string
	License       *License // cargada por GetByCheckoutID (join)
	Amount        decimal.Decimal
	Phone         string
	Months        int
	TransactionID string // LIC_RENEW_<unix>_<sufijo>, generado al crear
	CheckoutID    string // CheckoutRequestID de Daraja, vacío hasta iniciar el pago
	ReceiptNumber string // MpesaReceiptNumber (o CheckoutID) al completar
	Status        OrderStatus
	PeriodStart   time.Time
	PeriodEnd     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
