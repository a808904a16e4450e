package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/application/license"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Orden relevante: el primer sentinel que coincide gana.
var errorMappings = []errorMapping{
	{domain.ErrInvalidPhone, fiber.StatusBadRequest, "INVALID_PHONE", ""},
	{domain.ErrInvalidMAC, fiber.StatusBadRequest, "INVALID_MAC", ""},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION", ""},
	{domain.ErrLicenseNotFound, fiber.StatusNotFound, "LICENSE_NOT_FOUND", "licencia no encontrada"},
	{domain.ErrUserNotFound, fiber.StatusUnauthorized, "UNAUTHORIZED", "credenciales inválidas"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED", "credenciales inválidas"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN", "cuenta inactiva o suspendida"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "recurso no encontrado"},
	{domain.ErrEmailAlreadyExists, fiber.StatusConflict, "EMAIL_EXISTS", "el email ya está registrado"},
	{domain.ErrOrderNotCompleted, fiber.StatusConflict, "ORDER_NOT_COMPLETED", "la orden aún no está completada"},
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE", "recurso duplicado"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT", ""},
	{domain.ErrProviderConfig, fiber.StatusServiceUnavailable, "PROVIDER_NOT_CONFIGURED", "proveedor de pagos sin configurar"},
	{domain.ErrPaymentNotRecorded, fiber.StatusInternalServerError, "PAYMENT_NOT_RECORDED", "la solicitud de pago se envió pero no se pudo registrar; no repita el pago y contacte soporte con el transactionId"},
	{domain.ErrPaymentInitiation, fiber.StatusBadGateway, "PAYMENT_INITIATION_FAILED", "no se pudo iniciar el pago M-Pesa, intente de nuevo"},
	{domain.ErrProviderUnavailable, fiber.StatusBadGateway, "PROVIDER_UNAVAILABLE", "el proveedor de pagos no respondió"},
}

// writeError traduce err a dto.ErrorResponse. Los errores no mapeados se registran y
// se responden como 500 genérico.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	if denial, ok := license.AsDenial(err); ok {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Code: denial.Code, Message: denial.Message, Data: denial.Data,
		})
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: msg})
		}
	}
	if log != nil {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("error interno")
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
