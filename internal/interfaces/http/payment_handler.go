package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	domsettlement "github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

// settlementSubmitter lo implementa *settlement.Service.
type settlementSubmitter interface {
	Submit(ctx context.Context, checkoutID string, cb domsettlement.Callback, source string) error
	Query(ctx context.Context, checkoutID string) (*dto.PaymentQueryResponse, error)
}

// PaymentHandler webhook de Daraja y consulta manual de checkouts.
type PaymentHandler struct {
	svc settlementSubmitter
	log *logger.Logger
}

// NewPaymentHandler construye el handler.
func NewPaymentHandler(svc settlementSubmitter, log *logger.Logger) *PaymentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &PaymentHandler{svc: svc, log: log.Component("mpesa_callback")}
}

var callbackAccepted = dto.CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}

// Callback godoc
// @Summary      Webhook STK push de M-Pesa
// @Description  Encola el resultado para el worker de liquidación y responde de inmediato.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        body  body  dto.STKCallbackEnvelope  true  "callback Daraja"
// @Success      200   {object}  dto.CallbackAck
// @Failure      500   {object}  dto.CallbackAck
// @Router       /api/payments/mpesa/callback [post]
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	var env dto.STKCallbackEnvelope
	if err := c.BodyParser(&env); err != nil {
		// nada que reprocesar: se confirma para que el proveedor no reintente basura
		h.log.Warn().Err(err).Msg("callback ilegible")
		return c.JSON(callbackAccepted)
	}
	stk := env.Body.STKCallback
	if stk.CheckoutRequestID == "" {
		h.log.Warn().Msg("callback sin CheckoutRequestID")
		return c.JSON(callbackAccepted)
	}

	if err := h.svc.Submit(c.UserContext(), stk.CheckoutRequestID, CallbackFromSTK(stk), domsettlement.SourceCallback); err != nil {
		h.log.Error().Err(err).Str("checkout_id", stk.CheckoutRequestID).Msg("encolar callback")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.CallbackAck{ResultCode: 1, ResultDesc: "Rejected"})
	}
	return c.JSON(callbackAccepted)
}

// Query godoc
// @Summary      Consultar estado de un STK push
// @Description  Pregunta al proveedor y, si el pago terminó, lo encola igual que un callback.
// @Tags         payments
// @Produce      json
// @Param        checkoutId  path  string  true  "CheckoutRequestID"
// @Success      200  {object}  dto.PaymentQueryResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/payments/{checkoutId}/query [post]
func (h *PaymentHandler) Query(c *fiber.Ctx) error {
	out, err := h.svc.Query(c.UserContext(), c.Params("checkoutId"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// CallbackFromSTK traduce el payload de Daraja al resultado de dominio.
func CallbackFromSTK(stk dto.STKCallback) domsettlement.Callback {
	cb := domsettlement.Callback{
		MerchantRequestID: stk.MerchantRequestID,
		CheckoutRequestID: stk.CheckoutRequestID,
		ResultDesc:        stk.ResultDesc,
	}
	if code, ok := domsettlement.ResultCodeOf(stk.ResultCode); ok {
		cb.ResultCode = code
	}
	if stk.CallbackMetadata != nil {
		for _, it := range stk.CallbackMetadata.Item {
			cb.Items = append(cb.Items, domsettlement.MetadataItem{Name: it.Name, Value: it.Value})
		}
	}
	return cb
}
