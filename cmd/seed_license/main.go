// seed_license emite licencias directamente en la base de datos.
//
// Uso:
//
//	go run ./cmd/seed_license -client "Cafe Kilimani" -phone 0712345678 -users 300 -amount 3000 -months 1
//	go run ./cmd/seed_license -csv clientes.csv [-latin1]
//
// El CSV lleva cabecera: client_name,contact_phone,contact_email,user_limit,monthly_amount,months.
// -latin1 decodifica exportaciones de hojas de cálculo en ISO-8859-1.
// Lee la conexión de .env / variables de entorno (DB_*, DATABASE_URL).
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/application/license"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/migration"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/postgres"
	"github.com/jhoicas/hotspot-billing/pkg/config"
)

func main() {
	var (
		client  = flag.String("client", "", "nombre del cliente")
		phone   = flag.String("phone", "", "teléfono de contacto")
		email   = flag.String("email", "", "email de contacto")
		users   = flag.Int("users", 0, "cupo de usuarios (0 = por defecto)")
		amount  = flag.String("amount", "", "monto mensual en KES (vacío = por defecto)")
		months  = flag.Int("months", 0, "meses de vigencia inicial (0 = por defecto)")
		csvPath = flag.String("csv", "", "importar licencias desde CSV")
		latin1  = flag.Bool("latin1", false, "el CSV está en ISO-8859-1")
	)
	flag.Parse()

	_ = godotenv.Load() // .env opcional

	var requests []dto.CreateLicenseRequest
	if *csvPath != "" {
		f, err := os.Open(*csvPath)
		if err != nil {
			fail("abrir CSV: %v", err)
		}
		defer f.Close()
		var r io.Reader = f
		if *latin1 {
			r = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
		}
		requests, err = readCSV(r)
		if err != nil {
			fail("leer CSV: %v", err)
		}
	} else {
		if strings.TrimSpace(*client) == "" {
			flag.Usage()
			os.Exit(2)
		}
		in := dto.CreateLicenseRequest{
			ClientName:     *client,
			ContactPhone:   *phone,
			ContactEmail:   *email,
			UserLimit:      *users,
			DurationMonths: *months,
		}
		if *amount != "" {
			d, err := decimal.NewFromString(*amount)
			if err != nil {
				fail("amount inválido: %v", err)
			}
			in.MonthlyAmount = &d
		}
		requests = append(requests, in)
	}

	cfg, err := config.Load()
	if err != nil {
		fail("cargar configuración: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fail("conexión a PostgreSQL: %v", err)
	}
	defer pool.Close()
	if err := migration.RunMigrations(pool); err != nil {
		fail("migraciones: %v", err)
	}

	admin := license.NewAdminUseCase(
		postgres.NewLicenseRepository(pool),
		postgres.NewLicenseOrderRepository(pool),
		clock.Real{},
	)
	for i, in := range requests {
		lic, err := admin.Create(ctx, in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fila %d (%s): %v\n", i+1, in.ClientName, err)
			continue
		}
		fmt.Printf("%s\t%s\tvence %s\tcupo %d\n",
			lic.LicenseKey, lic.ClientName, lic.ExpiresAt.Format("2006-01-02"), lic.UserLimit)
	}
}

// readCSV convierte cada fila en una solicitud de alta. Columnas vacías toman los valores por defecto.
func readCSV(r io.Reader) ([]dto.CreateLicenseRequest, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("cabecera: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["client_name"]; !ok {
		return nil, errors.New("falta la columna client_name")
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []dto.CreateLicenseRequest
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		in := dto.CreateLicenseRequest{
			ClientName:   get(rec, "client_name"),
			ContactPhone: get(rec, "contact_phone"),
			ContactEmail: get(rec, "contact_email"),
		}
		if s := get(rec, "user_limit"); s != "" {
			if in.UserLimit, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("línea %d: user_limit: %w", line, err)
			}
		}
		if s := get(rec, "months"); s != "" {
			if in.DurationMonths, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("línea %d: months: %w", line, err)
			}
		}
		if s := get(rec, "monthly_amount"); s != "" {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("línea %d: monthly_amount: %w", line, err)
			}
			in.MonthlyAmount = &d
		}
		out = append(out, in)
	}
	return out, nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
