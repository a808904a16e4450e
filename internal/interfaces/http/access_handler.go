package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotspot-billing/internal/application/access"
	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

// AccessHandler compra de acceso a la red desde el portal cautivo.
type AccessHandler struct {
	uc  *access.PurchaseUseCase
	log *logger.Logger
}

// NewAccessHandler construye el handler.
func NewAccessHandler(uc *access.PurchaseUseCase, log *logger.Logger) *AccessHandler {
	return &AccessHandler{uc: uc, log: log}
}

// Purchase godoc
// @Summary      Comprar acceso
// @Description  Crea la orden pending e inicia el STK push al teléfono. Sujeto a la licencia.
// @Tags         access
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AccessPurchaseRequest  true  "phone, mac, amount"
// @Success      201   {object}  dto.AccessOrderResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/access/purchase [post]
func (h *AccessHandler) Purchase(c *fiber.Ctx) error {
	var in dto.AccessPurchaseRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.Phone == "" || in.MACAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "phone, mac y amount son requeridos"})
	}
	out, err := h.uc.Purchase(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Order godoc
// @Summary      Estado de una orden de acceso
// @Tags         access
// @Produce      json
// @Param        transactionId  path  string  true  "WIFI_..."
// @Success      200  {object}  dto.AccessOrderResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/access/orders/{transactionId} [get]
func (h *AccessHandler) Order(c *fiber.Ctx) error {
	out, err := h.uc.OrderByTransaction(c.UserContext(), c.Params("transactionId"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	if out == nil {
		return writeError(c, h.log, domain.ErrNotFound)
	}
	return c.JSON(out)
}

// Tiers godoc
// @Summary      Tabla de precios
// @Tags         access
// @Produce      json
// @Success      200  {array}  dto.AccessTierResponse
// @Router       /api/access/tiers [get]
func (h *AccessHandler) Tiers(c *fiber.Ctx) error {
	return c.JSON(h.uc.Tiers())
}
