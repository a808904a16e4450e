package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccessPurchaseRequest compra de acceso a la red desde el portal cautivo.
type AccessPurchaseRequest struct {
	Phone      string          `json:"phone" validate:"required"`
	MACAddress string          `json:"mac" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
}

// AccessOrderResponse estado de una orden de acceso (polling del portal).
type AccessOrderResponse struct {
	TransactionID string          `json:"transactionId"`
	CheckoutID    string          `json:"checkoutRequestId,omitempty"`
	MACAddress    string          `json:"mac"`
	Amount        decimal.Decimal `json:"amount"`
	Duration      string          `json:"duration,omitempty"`
	Status        string          `json:"status"`
	ReceiptNumber string          `json:"receiptNumber,omitempty"`
	GrantedUntil  *time.Time      `json:"grantedUntil,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// AccessTierResponse precio -> duración publicado en el portal.
type AccessTierResponse struct {
	Amount   decimal.Decimal `json:"amount"`
	Duration string          `json:"duration"`
}
