package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hotspot-billing/internal/application/license"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/hotspot-billing/internal/interfaces/http"
)

var gateNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const gateKey = "LIC-TESTKEY000001"

func seedLicense(t *testing.T, store *memory.Store, expiresAt time.Time, limit int, users int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Licenses().Create(ctx, &entity.License{
		ID:            "lic-1",
		Key:           gateKey,
		ClientName:    "Cafe Kilimani",
		Status:        entity.LicenseActive,
		MonthlyAmount: decimal.NewFromInt(3000),
		UserLimit:     limit,
		IssuedAt:      gateNow.AddDate(0, -1, 0),
		ExpiresAt:     expiresAt,
	}))
	for i := 0; i < users; i++ {
		require.NoError(t, store.Users().Create(ctx, &entity.User{
			ID:    string(rune('a'+i)) + "-user",
			Email: string(rune('a'+i)) + "@example.com",
			Role:  entity.RoleCustomer,
		}))
	}
}

func gatedApp(gate *license.Gate) *fiber.App {
	app := fiber.New()
	app.Post("/gated", apphttp.RequireLicense(gate, nil), func(c *fiber.Ctx) error {
		snap := apphttp.GetLicense(c)
		return c.JSON(fiber.Map{"mode": string(snap.Mode)})
	})
	app.Get("/status", apphttp.LicenseStatus(gate), func(c *fiber.Ctx) error {
		snap := apphttp.GetLicense(c)
		return c.JSON(fiber.Map{"mode": string(snap.Mode), "valid": snap.Valid})
	})
	return app
}

func callGated(t *testing.T, app *fiber.App) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/gated", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestRequireLicense_ModoDemoPermite(t *testing.T) {
	store := memory.NewStore()
	gate := license.NewGate(license.Settings{}, store.Licenses(), store.Users(), clock.NewFakeClock(gateNow), nil, nil)

	status, body := callGated(t, gatedApp(gate))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "demo", body["mode"])
}

func TestRequireLicense_ClaveInexistente(t *testing.T) {
	store := memory.NewStore()
	gate := license.NewGate(license.Settings{Key: "LIC-NOEXISTE"}, store.Licenses(), store.Users(), clock.NewFakeClock(gateNow), nil, nil)

	status, body := callGated(t, gatedApp(gate))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "INVALID_LICENSE", body["code"])
}

func TestRequireLicense_Vencida(t *testing.T) {
	store := memory.NewStore()
	seedLicense(t, store, gateNow.Add(-time.Hour), 300, 0)
	gate := license.NewGate(license.Settings{Key: gateKey}, store.Licenses(), store.Users(), clock.NewFakeClock(gateNow), nil, nil)

	status, body := callGated(t, gatedApp(gate))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "LICENSE_EXPIRED", body["code"])
	assert.NotNil(t, body["data"])
}

func TestRequireLicense_CupoLleno(t *testing.T) {
	store := memory.NewStore()
	seedLicense(t, store, gateNow.AddDate(0, 0, 20), 2, 2)
	gate := license.NewGate(license.Settings{Key: gateKey}, store.Licenses(), store.Users(), clock.NewFakeClock(gateNow), nil, nil)

	status, body := callGated(t, gatedApp(gate))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "USER_LIMIT_REACHED", body["code"])
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, data["currentUsers"])
	assert.EqualValues(t, 2, data["userLimit"])
}

func TestRequireLicense_VigenteConCupo(t *testing.T) {
	store := memory.NewStore()
	seedLicense(t, store, gateNow.AddDate(0, 0, 20), 3, 2)
	gate := license.NewGate(license.Settings{Key: gateKey}, store.Licenses(), store.Users(), clock.NewFakeClock(gateNow), nil, nil)

	status, body := callGated(t, gatedApp(gate))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "licensed", body["mode"])
}

type failingGate struct{}

func (failingGate) Authorize(context.Context) (*license.Snapshot, error) {
	return nil, errors.New("db caída")
}

func (failingGate) Inspect(context.Context) *license.Snapshot {
	return &license.Snapshot{Mode: license.ModeLicensed, Error: true}
}

func TestRequireLicense_FalloDeLookup_500(t *testing.T) {
	app := fiber.New()
	app.Post("/gated", apphttp.RequireLicense(failingGate{}, nil), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	status, body := callGated(t, app)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "LICENSE_VALIDATION_ERROR", body["code"])
}

func TestLicenseStatus_NuncaBloquea(t *testing.T) {
	store := memory.NewStore()
	seedLicense(t, store, gateNow.Add(-time.Hour), 300, 0)
	gate := license.NewGate(license.Settings{Key: gateKey}, store.Licenses(), store.Users(), clock.NewFakeClock(gateNow), nil, nil)

	resp, err := gatedApp(gate).Test(httptest.NewRequest(http.MethodGet, "/status", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "licensed", body["mode"])
	assert.Equal(t, false, body["valid"])
}
