package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/application/license"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

// LocalLicense key de c.Locals con el *license.Snapshot del request.
const LocalLicense = "license"

// licenseGate contrato mínimo del middleware; lo implementa *license.Gate.
type licenseGate interface {
	Authorize(ctx context.Context) (*license.Snapshot, error)
	Inspect(ctx context.Context) *license.Snapshot
}

// RequireLicense bloquea la ruta si la licencia de la instalación no permite crear más usuarios o pagos.
//   - 403 INVALID_LICENSE | LICENSE_EXPIRED | USER_LIMIT_REACHED con data legible por máquina.
//   - 500 LICENSE_VALIDATION_ERROR si el lookup falla.
func RequireLicense(gate licenseGate, log *logger.Logger) fiber.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *fiber.Ctx) error {
		snap, err := gate.Authorize(c.UserContext())
		if err != nil {
			if denial, ok := license.AsDenial(err); ok {
				return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
					Code:    denial.Code,
					Message: denial.Message,
					Data:    denial.Data,
				})
			}
			log.Error().Err(err).Str("path", c.Path()).Msg("validar licencia")
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Code:    license.CodeLicenseValidationErr,
				Message: "no se pudo validar la licencia, intente más tarde",
			})
		}
		c.Locals(LocalLicense, snap)
		return c.Next()
	}
}

// LicenseStatus adjunta el snapshot de la licencia sin bloquear nunca.
func LicenseStatus(gate licenseGate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(LocalLicense, gate.Inspect(c.UserContext()))
		return c.Next()
	}
}

// GetLicense snapshot adjuntado por RequireLicense o LicenseStatus; nil si ninguno corrió.
func GetLicense(c *fiber.Ctx) *license.Snapshot {
	s, _ := c.Locals(LocalLicense).(*license.Snapshot)
	return s
}
