package settlement

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Nombres de ítems del CallbackMetadata de Daraja que consume el motor.
const (
	ItemAmount        = "Amount"
	ItemReceiptNumber = "MpesaReceiptNumber"
	ItemPhoneNumber   = "PhoneNumber"
)

// ResultSuccess código de resultado de un pago exitoso.
const ResultSuccess = 0

// MetadataItem par nombre/valor del callback. Value llega como número o string según el campo.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// Callback resultado del proveedor para un checkout. Orden y presencia de ítems no garantizados.
type Callback struct {
	MerchantRequestID string         `json:"MerchantRequestID,omitempty"`
	CheckoutRequestID string         `json:"CheckoutRequestID"`
	ResultCode        *int           `json:"ResultCode"`
	ResultDesc        string         `json:"ResultDesc,omitempty"`
	Items             []MetadataItem `json:"Items,omitempty"`
}

// Succeeded true solo con ResultCode presente e igual a 0.
func (c Callback) Succeeded() bool {
	return c.ResultCode != nil && *c.ResultCode == ResultSuccess
}

// Lookup busca un ítem por nombre (sin distinguir mayúsculas).
func (c Callback) Lookup(name string) (any, bool) {
	for _, it := range c.Items {
		if strings.EqualFold(it.Name, name) {
			return it.Value, it.Value != nil
		}
	}
	return nil, false
}

// ReceiptNumber devuelve MpesaReceiptNumber o fallback; nunca vacío si fallback no lo es.
func (c Callback) ReceiptNumber(fallback string) string {
	v, ok := c.Lookup(ItemReceiptNumber)
	if !ok {
		return fallback
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return fallback
	}
	return s
}

// AmountPaid extrae el ítem Amount como decimal.
func (c Callback) AmountPaid() (decimal.Decimal, bool) {
	v, ok := c.Lookup(ItemAmount)
	if !ok {
		return decimal.Zero, false
	}
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	case decimal.Decimal:
		return t, nil
	default:
		return decimal.Zero, fmt.Errorf("settlement: tipo de monto no soportado %T", v)
	}
}

// ResultCodeOf interpreta un ResultCode crudo (número o string) como en los payloads de Daraja.
func ResultCodeOf(v any) (*int, bool) {
	switch t := v.(type) {
	case float64:
		n := int(t)
		return &n, true
	case int:
		return &t, true
	case json.Number:
		n, err := strconv.Atoi(t.String())
		if err != nil {
			return nil, false
		}
		return &n, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil, false
		}
		return &n, true
	default:
		return nil, false
	}
}
