package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"caja/backend/internal/domain"
)

// Money formats an amount as Colombian pesos without decimals, e.g. $1.500.
func Money(amount decimal.Decimal) string {
	rounded := amount.Round(0)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	digits := rounded.StringFixed(0)

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}

func clockTime(at *time.Time, loc *time.Location) string {
	if at == nil || at.IsZero() {
		return "—"
	}
	if loc == nil {
		loc = DefaultLocation
	}
	return at.In(loc).Format("03:04 PM")
}

type dailyRow struct {
	Hour      string
	Product   string
	Quantity  int
	UnitPrice string
	Total     string
	Seller    string
}

type outflowRow struct {
	Hour     string
	Reason   string
	Amount   string
	Recorder string
}

type dailyView struct {
	Date          string
	Sales         []dailyRow
	Outflows      []outflowRow
	SalesTotal    string
	OutflowsTotal string
	Balance       string
	Negative      bool
}

func buildDailyView(ledger domain.DailyLedger, names Names, loc *time.Location) dailyView {
	view := dailyView{
		Date:          ledger.Date,
		Sales:         make([]dailyRow, 0, len(ledger.Sales)),
		Outflows:      make([]outflowRow, 0, len(ledger.Outflows)),
		SalesTotal:    Money(ledger.SalesTotal),
		OutflowsTotal: Money(decimal.NewFromInt(ledger.OutflowsTotal)),
		Balance:       Money(ledger.Balance),
		Negative:      ledger.Balance.IsNegative(),
	}
	for _, sale := range ledger.Sales {
		view.Sales = append(view.Sales, dailyRow{
			Hour:      clockTime(sale.CreatedAt, loc),
			Product:   sale.ProductName,
			Quantity:  sale.Quantity,
			UnitPrice: Money(sale.UnitPrice),
			Total:     Money(sale.Total),
			Seller:    names.NameOf(sale.SellerID),
		})
	}
	for _, outflow := range ledger.Outflows {
		view.Outflows = append(view.Outflows, outflowRow{
			Hour:     clockTime(outflow.CreatedAt, loc),
			Reason:   outflow.Reason,
			Amount:   Money(decimal.NewFromInt(outflow.Amount)),
			Recorder: names.NameOf(outflow.RecordedBy),
		})
	}
	return view
}

func DailyCSV(w io.Writer, ledger domain.DailyLedger, names Names, loc *time.Location) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{"section", "hour", "product_or_reason", "quantity", "unit_price", "total", "by"},
	}
	for _, sale := range ledger.Sales {
		records = append(records, []string{
			"sale",
			clockTime(sale.CreatedAt, loc),
			sale.ProductName,
			strconv.Itoa(sale.Quantity),
			sale.UnitPrice.String(),
			sale.Total.String(),
			names.NameOf(sale.SellerID),
		})
	}
	for _, outflow := range ledger.Outflows {
		records = append(records, []string{
			"outflow",
			clockTime(outflow.CreatedAt, loc),
			outflow.Reason,
			"",
			"",
			strconv.FormatInt(outflow.Amount, 10),
			names.NameOf(outflow.RecordedBy),
		})
	}
	records = append(records,
		[]string{"summary", "", "date", "", "", ledger.Date, ""},
		[]string{"summary", "", "sales_total", "", "", ledger.SalesTotal.String(), ""},
		[]string{"summary", "", "outflows_total", "", "", strconv.FormatInt(ledger.OutflowsTotal, 10), ""},
		[]string{"summary", "", "balance", "", "", ledger.Balance.String(), ""},
	)
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

var dailyHTMLTmpl = template.Must(template.New("daily-ledger").Parse(`<!doctype html>
<html lang="es">
<head>
  <meta charset="utf-8" />
  <title>Reporte Diario {{.Date}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    .ok { color: green; }
    .neg { color: red; }
  </style>
</head>
<body>
  <h2>REPORTE DIARIO DE VENTAS - {{.Date}}</h2>
  <p>Total Ventas Netas: <strong>{{.SalesTotal}}</strong></p>
  <p>Total Salidas: <strong>{{.OutflowsTotal}}</strong></p>
  <h4 class="{{if .Negative}}neg{{else}}ok{{end}}">BALANCE FINAL: {{.Balance}}</h4>

  <h3>Ventas Realizadas</h3>
  <table>
    <thead><tr><th>Hora</th><th>Producto</th><th>Cant.</th><th>Precio Venta</th><th>Total</th><th>Vendedor</th></tr></thead>
    <tbody>{{range .Sales}}<tr><td>{{.Hour}}</td><td>{{.Product}}</td><td style="text-align:right;">{{.Quantity}}</td><td style="text-align:right;">{{.UnitPrice}}</td><td style="text-align:right;">{{.Total}}</td><td>{{.Seller}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Salidas (Egresos)</h3>
  <table>
    <thead><tr><th>Hora</th><th>Motivo</th><th>Valor</th><th>Registrado Por</th></tr></thead>
    <tbody>{{range .Outflows}}<tr><td>{{.Hour}}</td><td>{{.Reason}}</td><td style="text-align:right;">{{.Amount}}</td><td>{{.Recorder}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func DailyHTML(w io.Writer, ledger domain.DailyLedger, names Names, loc *time.Location) error {
	var buf bytes.Buffer
	if err := dailyHTMLTmpl.Execute(&buf, buildDailyView(ledger, names, loc)); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// RenderDailyPDF lays out the daily ledger as an A4 document: the sales table,
// the outflows table and the closing cash balance.
func RenderDailyPDF(w io.Writer, ledger domain.DailyLedger, names Names, loc *time.Location) error {
	view := buildDailyView(ledger, names, loc)

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("REPORTE DIARIO DE VENTAS - %s", view.Date)), "", 1, "L", false, 0, "")

	salesWidths := []float64{52, 14, 28, 28, 38, 20}
	pdfHeader(pdf, tr, salesWidths, []string{"Producto", "Cant.", "Precio Venta", "Total", "Vendedor", "Hora"})
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range view.Sales {
		cells := []string{row.Product, strconv.Itoa(row.Quantity), row.UnitPrice, row.Total, row.Seller, row.Hour}
		pdfRow(pdf, tr, salesWidths, cells, false)
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(200, 200, 200)
	pdfRow(pdf, tr, salesWidths, []string{"", "", "", "Total Ventas: " + view.SalesTotal, "", ""}, true)

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, "SALIDAS Y EGRESOS", "", 1, "L", false, 0, "")

	outflowWidths := []float64{80, 34, 46, 20}
	pdfHeader(pdf, tr, outflowWidths, []string{"Motivo", "Valor", "Registrado Por", "Hora"})
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range view.Outflows {
		pdfRow(pdf, tr, outflowWidths, []string{row.Reason, row.Amount, row.Recorder, row.Hour}, false)
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(200, 200, 200)
	pdfRow(pdf, tr, outflowWidths, []string{"", "Total Salidas: -" + view.OutflowsTotal, "", ""}, true)

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "B", 12)
	if view.Negative {
		pdf.SetTextColor(255, 0, 34)
	} else {
		pdf.SetTextColor(34, 139, 34)
	}
	pdf.CellFormat(0, 10, tr("BALANCE EN CAJA: "+view.Balance), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func pdfHeader(pdf *fpdf.Fpdf, tr func(string) string, widths []float64, titles []string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(41, 128, 185)
	pdf.SetTextColor(255, 255, 255)
	for i, title := range titles {
		pdf.CellFormat(widths[i], 7, tr(title), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(0, 0, 0)
}

func pdfRow(pdf *fpdf.Fpdf, tr func(string) string, widths []float64, cells []string, fill bool) {
	for i, cell := range cells {
		pdf.CellFormat(widths[i], 6, tr(cell), "1", 0, "L", fill, 0, "")
	}
	pdf.Ln(-1)
}
