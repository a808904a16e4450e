package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/application/license"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

// LicenseHandler estado, renovación y administración de licencias.
type LicenseHandler struct {
	status  *license.StatusUseCase
	renewal *license.RenewalUseCase
	admin   *license.AdminUseCase
	receipt *license.ReceiptUseCase
	log     *logger.Logger
}

// NewLicenseHandler construye el handler.
func NewLicenseHandler(status *license.StatusUseCase, renewal *license.RenewalUseCase, admin *license.AdminUseCase, receipt *license.ReceiptUseCase, log *logger.Logger) *LicenseHandler {
	return &LicenseHandler{status: status, renewal: renewal, admin: admin, receipt: receipt, log: log}
}

// ── Portal ──────────────────────────────────────────────────────────────────

// Status godoc
// @Summary      Estado de la licencia
// @Description  Nunca bloquea: en modo demo o con licencia inválida responde 200 con el modo correspondiente.
// @Tags         licenses
// @Produce      json
// @Success      200  {object}  dto.LicenseStatusResponse
// @Router       /api/licenses/status [get]
func (h *LicenseHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.status.StatusFrom(c.UserContext(), GetLicense(c)))
}

// Validate godoc
// @Summary      Validar licencia
// @Tags         licenses
// @Produce      json
// @Success      200  {object}  dto.LicenseSnapshotResponse
// @Router       /api/licenses/validate [post]
func (h *LicenseHandler) Validate(c *fiber.Ctx) error {
	if snap := GetLicense(c); snap != nil {
		return c.JSON(license.SnapshotResponse(snap))
	}
	return c.JSON(h.status.Validate(c.UserContext()))
}

// Renew godoc
// @Summary      Renovar licencia
// @Description  Crea la orden de renovación e inicia el STK push. Disponible aunque la licencia esté vencida.
// @Tags         licenses
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LicenseRenewRequest  true  "licenseKey, phone, months"
// @Success      201   {object}  dto.LicenseRenewResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/licenses/renew [post]
func (h *LicenseHandler) Renew(c *fiber.Ctx) error {
	var in dto.LicenseRenewRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.renewal.Renew(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Payment godoc
// @Summary      Estado de un pago de renovación
// @Tags         licenses
// @Produce      json
// @Param        transactionId  path  string  true  "LIC_RENEW_..."
// @Success      200  {object}  dto.LicensePaymentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/licenses/payments/{transactionId} [get]
func (h *LicenseHandler) Payment(c *fiber.Ctx) error {
	out, err := h.renewal.PaymentByTransaction(c.UserContext(), c.Params("transactionId"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Receipt godoc
// @Summary      Recibo PDF de una renovación completada
// @Tags         licenses
// @Produce      application/pdf
// @Param        id  path  string  true  "ID de la orden"
// @Success      200  {file}  file
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/licenses/payments/{id}/receipt [get]
func (h *LicenseHandler) Receipt(c *fiber.Ctx) error {
	pdf, filename, err := h.receipt.Download(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(pdf)
}

// ── Administración ──────────────────────────────────────────────────────────

// Create godoc
// @Summary      Emitir licencia
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateLicenseRequest  true  "clientName, userLimit, monthlyAmount"
// @Success      201   {object}  dto.LicenseResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/licenses [post]
func (h *LicenseHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateLicenseRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.admin.Create(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar licencias
// @Tags         admin
// @Produce      json
// @Param        limit   query  int  false  "límite"
// @Param        offset  query  int  false  "desplazamiento"
// @Success      200  {object}  map[string]interface{}
// @Security     BearerAuth
// @Router       /api/admin/licenses [get]
func (h *LicenseHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	page.DefaultPage()
	list, err := h.admin.List(c.UserContext(), page)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"items": list,
		"page":  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Get godoc
// @Summary      Licencia por clave
// @Tags         admin
// @Produce      json
// @Param        key  path  string  true  "clave de licencia"
// @Success      200  {object}  dto.LicenseResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/licenses/{key} [get]
func (h *LicenseHandler) Get(c *fiber.Ctx) error {
	out, err := h.admin.GetByKey(c.UserContext(), c.Params("key"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// UpdateStatus godoc
// @Summary      Cambiar estado de una licencia
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        key   path  string  true  "clave de licencia"
// @Param        body  body  dto.UpdateLicenseStatusRequest  true  "active | expired | suspended"
// @Success      200   {object}  dto.LicenseResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/licenses/{key}/status [patch]
func (h *LicenseHandler) UpdateStatus(c *fiber.Ctx) error {
	var in dto.UpdateLicenseStatusRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.admin.UpdateStatus(c.UserContext(), c.Params("key"), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}
