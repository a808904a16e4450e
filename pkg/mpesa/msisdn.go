package mpesa

import (
	"fmt"
	"regexp"
	"strings"
)

// msisdnPattern número móvil keniano en formato internacional sin "+": 2547 + 8 dígitos.
var msisdnPattern = regexp.MustCompile(`^2547\d{8}$`)

// NormalizeMSISDN quita espacios y un "+" inicial y valida el formato 2547XXXXXXXX.
// "0712345678" se rechaza: Daraja exige el prefijo de país y no se adivina.
func NormalizeMSISDN(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.TrimPrefix(p, "+")
	if !msisdnPattern.MatchString(p) {
		return "", fmt.Errorf("mpesa: número inválido %q, formato esperado 2547XXXXXXXX", phone)
	}
	return p, nil
}

// MaskMSISDN oculta los dígitos centrales para logs (254712***678).
func MaskMSISDN(phone string) string {
	if len(phone) < 9 {
		return "***"
	}
	return phone[:6] + "***" + phone[len(phone)-3:]
}
