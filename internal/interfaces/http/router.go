package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotspot-billing/internal/application/access"
	"github.com/jhoicas/hotspot-billing/internal/application/auth"
	"github.com/jhoicas/hotspot-billing/internal/application/license"
	"github.com/jhoicas/hotspot-billing/internal/application/settlement"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC     *auth.AuthUseCase
	AccessUC   *access.PurchaseUseCase
	StatusUC   *license.StatusUseCase
	RenewalUC  *license.RenewalUseCase
	AdminUC    *license.AdminUseCase
	ReceiptUC  *license.ReceiptUseCase
	Settlement *settlement.Service
	Gate       *license.Gate
	JWTSecret  string
	Log        *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	api := app.Group("/api")
	requireLicense := RequireLicense(deps.Gate, log)

	// Auth (público; el registro consume cupo de la licencia)
	authHandler := NewAuthHandler(deps.AuthUC, log)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", requireLicense, authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Portal cautivo
	accessHandler := NewAccessHandler(deps.AccessUC, log)
	accessGroup := api.Group("/access")
	accessGroup.Get("/tiers", accessHandler.Tiers)
	accessGroup.Post("/purchase", requireLicense, accessHandler.Purchase)
	accessGroup.Get("/orders/:transactionId", accessHandler.Order)

	// Licencia de la instalación. Renovar no pasa por el gate: una licencia vencida debe poder pagarse.
	licenseHandler := NewLicenseHandler(deps.StatusUC, deps.RenewalUC, deps.AdminUC, deps.ReceiptUC, log)
	licenses := api.Group("/licenses")
	licenseSnapshot := LicenseStatus(deps.Gate)
	licenses.Get("/status", licenseSnapshot, licenseHandler.Status)
	licenses.Post("/validate", licenseSnapshot, licenseHandler.Validate)
	licenses.Post("/renew", licenseHandler.Renew)
	licenses.Get("/payments/:transactionId", licenseHandler.Payment)

	// Pagos: el webhook es público, la consulta manual requiere operador
	paymentHandler := NewPaymentHandler(deps.Settlement, log)
	payments := api.Group("/payments")
	payments.Post("/mpesa/callback", paymentHandler.Callback)
	payments.Post("/:checkoutId/query",
		AuthMiddleware(deps.JWTSecret),
		RequireRole(entity.RoleAdmin, entity.RoleOperator),
		paymentHandler.Query,
	)

	// Administración (Bearer Token + rol admin)
	admin := api.Group("/admin", AuthMiddleware(deps.JWTSecret), RequireRole(entity.RoleAdmin))
	admin.Post("/licenses", licenseHandler.Create)
	admin.Get("/licenses", licenseHandler.List)
	admin.Get("/licenses/payments/:id/receipt", licenseHandler.Receipt)
	admin.Get("/licenses/:key", licenseHandler.Get)
	admin.Patch("/licenses/:key/status", licenseHandler.UpdateStatus)

	userHandler := NewUserHandler(deps.AuthUC, log)
	admin.Get("/users", userHandler.List)
}
