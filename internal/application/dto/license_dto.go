package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// LicenseSnapshotResponse vista calculada de la licencia de la instalación.
type LicenseSnapshotResponse struct {
	Mode                string          `json:"mode"` // demo | invalid | licensed
	Valid               bool            `json:"isValid"`
	Expired             bool            `json:"isExpired"`
	Status              string          `json:"status,omitempty"`
	ClientName          string          `json:"clientName,omitempty"`
	LicenseKey          string          `json:"licenseKey,omitempty"`
	UserLimit           int             `json:"userLimit"`
	CurrentUsers        int             `json:"currentUsers"`
	PercentUsed         int             `json:"percentUsed"`
	CanAddUsers         bool            `json:"canAddUsers"`
	ExpiresAt           *time.Time      `json:"expiresAt,omitempty"`
	DaysUntilExpiration int             `json:"daysUntilExpiration"`
	Urgency             string          `json:"urgency,omitempty"` // high | medium | low
	MonthlyAmount       decimal.Decimal `json:"monthlyAmount"`
	Error               bool            `json:"error,omitempty"`
	Message             string          `json:"message,omitempty"`
}

// LicenseStatusResponse snapshot + pagos de renovación recientes.
type LicenseStatusResponse struct {
	License        LicenseSnapshotResponse  `json:"license"`
	RecentPayments []LicensePaymentResponse `json:"recentPayments"`
}

// LicenseRenewRequest entrada para renovar la licencia vía STK push.
type LicenseRenewRequest struct {
	LicenseKey string `json:"licenseKey" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Months     int    `json:"months" validate:"omitempty,min=1,max=36"`
}

// LicenseRenewResponse orden de renovación creada y pago iniciado.
type LicenseRenewResponse struct {
	TransactionID string          `json:"transactionId"`
	CheckoutID    string          `json:"checkoutRequestId"`
	Amount        decimal.Decimal `json:"amount"`
	Months        int             `json:"months"`
	PeriodStart   time.Time       `json:"periodStart"`
	PeriodEnd     time.Time       `json:"periodEnd"`
	Message       string          `json:"message"`
}

// LicensePaymentResponse pago de renovación.
type LicensePaymentResponse struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId"`
	CheckoutID    string          `json:"checkoutRequestId,omitempty"`
	ReceiptNumber string          `json:"receiptNumber,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Months        int             `json:"months"`
	Status        string          `json:"status"`
	PeriodStart   time.Time       `json:"periodStart"`
	PeriodEnd     time.Time       `json:"periodEnd"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// CreateLicenseRequest alta administrativa de una licencia.
type CreateLicenseRequest struct {
	ClientName     string           `json:"clientName" validate:"required"`
	ContactPhone   string           `json:"contactPhone"`
	ContactEmail   string           `json:"contactEmail"`
	Notes          string           `json:"notes"`
	MonthlyAmount  *decimal.Decimal `json:"monthlyAmount"`  // por defecto 3000
	UserLimit      int              `json:"userLimit"`      // por defecto 300
	DurationMonths int              `json:"durationMonths"` // por defecto 1
}

// LicenseResponse licencia con campos calculados (listados de administración).
type LicenseResponse struct {
	ID                  string                   `json:"id"`
	LicenseKey          string                   `json:"licenseKey"`
	ClientName          string                   `json:"clientName"`
	ContactPhone        string                   `json:"contactPhone,omitempty"`
	ContactEmail        string                   `json:"contactEmail,omitempty"`
	Notes               string                   `json:"notes,omitempty"`
	Status              string                   `json:"status"`
	MonthlyAmount       decimal.Decimal          `json:"monthlyAmount"`
	UserLimit           int                      `json:"userLimit"`
	CurrentUsers        int                      `json:"currentUsers"`
	PercentUsed         int                      `json:"percentUsed"`
	IssuedAt            time.Time                `json:"issuedAt"`
	ExpiresAt           time.Time                `json:"expiresAt"`
	IsExpired           bool                     `json:"isExpired"`
	DaysUntilExpiration int                      `json:"daysUntilExpiration"`
	Urgency             string                   `json:"urgency"`
	RecentPayments      []LicensePaymentResponse `json:"recentPayments,omitempty"`
	CreatedAt           time.Time                `json:"createdAt"`
}

// UpdateLicenseStatusRequest override administrativo del estado.
type UpdateLicenseStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active expired suspended"`
}
