// Package pdf genera el comprobante PDF de un pago de renovación de licencia.
//
// Layout de la página A5:
//
//	┌───────────────────────────────────────────────┐
//	│  HEADER: producto │ N° recibo + fecha          │
//	│  ───────────────────────────────────────────  │
//	│  CLIENTE: nombre, clave de licencia, teléfono  │
//	│  ───────────────────────────────────────────  │
//	│  DETALLE: concepto | meses | período | monto   │
//	│  ───────────────────────────────────────────  │
//	│  TOTAL PAGADO                                  │
//	│  FOOTER: referencia interna + leyenda          │
//	└───────────────────────────────────────────────┘
package pdf

import (
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/pkg/mpesa"
)

var _ ports.ReceiptGenerator = (*ReceiptGenerator)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 110, Blue: 60}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

const dateLayout = "02/01/2006"

// ── Generator ─────────────────────────────────────────────────────────────────

// ReceiptGenerator implementa ports.ReceiptGenerator usando Maroto v2.
type ReceiptGenerator struct {
	issuer  string
	printer *message.Printer
}

// NewReceiptGenerator construye el generador. issuer es el nombre que encabeza el recibo.
func NewReceiptGenerator(issuer string) *ReceiptGenerator {
	if issuer == "" {
		issuer = "Hotspot Billing"
	}
	return &ReceiptGenerator{issuer: issuer, printer: message.NewPrinter(language.English)}
}

// GenerateLicenseReceipt genera el PDF y devuelve sus bytes.
func (g *ReceiptGenerator) GenerateLicenseReceipt(order *entity.LicenseOrder, license *entity.License) ([]byte, error) {
	if order == nil || license == nil {
		return nil, fmt.Errorf("pdf: orden y licencia requeridas")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A5).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Recibo de renovación de licencia", true).
		WithAuthor(g.issuer, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(g.headerRow(order))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(clientRow(order, license))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(g.detailRow(order))

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(g.totalRow(order))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(order)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func (g *ReceiptGenerator) headerRow(order *entity.LicenseOrder) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(g.issuer, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Recibo de pago M-Pesa", props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("RECIBO", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(order.ReceiptNumber, props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+order.UpdatedAt.Format(dateLayout), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func clientRow(order *entity.LicenseOrder, license *entity.License) core.Row {
	return row.New(16).Add(
		col.New(12).Add(
			text.New("CLIENTE", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(license.ClientName, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("Licencia: %s   |   Tel: %s",
				license.Key, mpesa.MaskMSISDN(order.Phone),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Concepto", 4, align.Left),
		h("Meses", 2, align.Center),
		h("Período", 3, align.Center),
		h("Monto", 3, align.Right),
	)
}

func (g *ReceiptGenerator) detailRow(order *entity.LicenseOrder) core.Row {
	period := order.PeriodStart.Format(dateLayout) + " - " + order.PeriodEnd.Format(dateLayout)
	return row.New(8).Add(
		col.New(4).Add(text.New("Renovación de licencia", props.Text{Size: 8, Top: 1, Left: 1})),
		col.New(2).Add(text.New(fmt.Sprint(order.Months), props.Text{Size: 8, Align: align.Center, Top: 1})),
		col.New(3).Add(text.New(period, props.Text{Size: 7, Align: align.Center, Top: 1})),
		col.New(3).Add(text.New(g.FormatMoney(order.Amount), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
	)
}

func (g *ReceiptGenerator) totalRow(order *entity.LicenseOrder) core.Row {
	return row.New(10).Add(
		col.New(6),
		col.New(3).Add(text.New("TOTAL PAGADO:", props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 2, Top: 2,
		})),
		col.New(3).Add(text.New(g.FormatMoney(order.Amount), props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: 2,
		})),
	)
}

func footerRows(order *entity.LicenseOrder) []core.Row {
	return []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("Referencia interna: "+order.TransactionID, props.Text{Size: 7, Color: colorGray, Top: 1}),
		)),
		row.New(8).Add(col.New(12).Add(
			text.New("Pago recibido vía M-Pesa. La licencia queda vigente hasta "+
				order.PeriodEnd.Format(dateLayout)+". Conserve este recibo como soporte.",
				props.Text{Size: 6.5, Color: colorGray, Top: 2}),
		)),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

// FormatMoney monto en chelines con separador de miles: "KES 3,000.00".
func (g *ReceiptGenerator) FormatMoney(amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	return g.printer.Sprintf("KES %.2f", f)
}
