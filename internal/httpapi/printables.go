package httpapi

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"tallerpos/backend/internal/currency"
	"tallerpos/backend/internal/domain"
)

// Printable documents are rendered server side with html/template so a
// terminal can open them in a new tab and hit the browser's print dialog.
// User-controlled fields are auto-escaped.

var printableFuncs = template.FuncMap{
	"money": func(amount float64) string { return currency.Format(amount) },
}

var receiptTmpl = template.Must(template.New("receipt").Funcs(printableFuncs).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Recibo {{.Sale.ID}}</title>
  <style>
    body { font-family: monospace; max-width: 320px; margin: 16px auto; font-size: 12px; }
    table { width: 100%; border-collapse: collapse; }
    td { padding: 2px 0; }
    .right { text-align: right; }
    .rule { border-top: 1px dashed #000; margin: 6px 0; }
    h3 { text-align: center; margin: 4px 0; }
  </style>
</head>
<body>
  <h3>Taller de Reparación</h3>
  <p>Recibo: {{.Sale.ID}}<br/>Fecha: {{.Sale.TransactionDate.Format "2006-01-02 15:04"}}</p>
  <div class="rule"></div>
  <table>
    {{range .Sale.Items}}<tr><td>{{.Name}} x{{.Quantity}}{{if .IsPromo}} (promo){{end}}</td><td class="right">${{money .Price}}</td></tr>{{end}}
  </table>
  <div class="rule"></div>
  <table>
    <tr><td>Subtotal</td><td class="right">${{money .Sale.Subtotal}}</td></tr>
    {{if gt .Sale.Discount 0.0}}<tr><td>Descuento</td><td class="right">-${{money .Sale.Discount}}</td></tr>{{end}}
    <tr><td><b>Total</b></td><td class="right"><b>${{money .Sale.TotalAmount}}</b></td></tr>
    <tr><td>Total Bs</td><td class="right">Bs {{money .TotalBs}}</td></tr>
  </table>
  <div class="rule"></div>
  <table>
    {{range .Sale.Payments}}<tr><td>{{.Method}}</td><td class="right">{{money .Amount}}</td></tr>{{end}}
  </table>
  {{if eq .Sale.Status "refunded"}}<p><b>** REEMBOLSADO **</b><br/>Motivo: {{.Sale.RefundReason}}</p>{{end}}
  <p style="text-align:center;">Gracias por su compra</p>
</body>
</html>
`))

var repairTicketTmpl = template.Must(template.New("repair-ticket").Funcs(printableFuncs).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Orden de Reparación {{.Job.ID}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; font-size: 13px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; text-align: left; }
    h2 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Orden de Reparación {{.Job.ID}}</h2>
  <p>Fecha de ingreso: {{.Job.CreatedAt.Format "2006-01-02"}}</p>
  <table>
    <tr><th>Cliente</th><td>{{.Job.CustomerName}} {{if .Job.CustomerPhone}}({{.Job.CustomerPhone}}){{end}}</td></tr>
    <tr><th>Equipo</th><td>{{.Job.DeviceMake}} {{.Job.DeviceModel}}</td></tr>
    {{if .Job.DeviceIMEI}}<tr><th>IMEI</th><td>{{.Job.DeviceIMEI}}</td></tr>{{end}}
    <tr><th>Falla reportada</th><td>{{.Job.ReportedIssue}}</td></tr>
    {{if .Job.InitialCondition}}<tr><th>Condición inicial</th><td>{{.Job.InitialCondition}}</td></tr>{{end}}
    <tr><th>Estado</th><td>{{.Job.Status}}</td></tr>
    <tr><th>Presupuesto</th><td>${{money .Job.EstimatedCost}}</td></tr>
    <tr><th>Abonado</th><td>${{money .Job.AmountPaid}}</td></tr>
    <tr><th>Saldo</th><td>${{money .Balance}}</td></tr>
  </table>
  {{if .Job.ReservedParts}}
  <h3>Repuestos reservados</h3>
  <table>
    <thead><tr><th>Repuesto</th><th>Cantidad</th></tr></thead>
    <tbody>{{range .Job.ReservedParts}}<tr><td>{{.ProductName}}</td><td>{{.Quantity}}</td></tr>{{end}}</tbody>
  </table>
  {{end}}
  {{if .Job.WarrantyEndDate}}<p>Garantía hasta: {{.Job.WarrantyEndDate.Format "2006-01-02"}}</p>{{end}}
  {{if .Job.Notes}}<p>Notas: {{.Job.Notes}}</p>{{end}}
</body>
</html>
`))

var dailyReportHTMLTmpl = template.Must(template.New("daily-report").Funcs(printableFuncs).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Cierre de Caja {{.Date}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Cierre de Caja {{.Date}}</h2>
  <p>Transacciones: {{.Transactions}}</p>
  <p>Bruto: ${{money .GrossSales}} | Descuentos: ${{money .Discounts}} | Neto: ${{money .NetSales}} | Reembolsado: ${{money .Refunded}}</p>

  <h3>Por método de pago</h3>
  <table>
    <thead><tr><th>Método</th><th>Transacciones</th><th>Total (moneda nativa)</th></tr></thead>
    <tbody>{{range .ByPayment}}<tr><td>{{.Method}}</td><td style="text-align:right;">{{.Transactions}}</td><td style="text-align:right;">{{money .Total}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

type receiptData struct {
	Sale    domain.Sale
	TotalBs float64
}

type repairTicketData struct {
	Job     domain.RepairJob
	Balance float64
}

var productLabelTmpl = template.Must(template.New("product-label").Funcs(printableFuncs).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Etiqueta {{.Product.SKU}}</title>
  <style>
    body { font-family: monospace; width: 200px; margin: 8px auto; font-size: 11px; text-align: center; }
    .name { font-weight: bold; font-size: 12px; }
    .price { font-size: 16px; font-weight: bold; margin: 4px 0; }
    .sku { letter-spacing: 2px; border: 1px solid #000; padding: 2px 6px; display: inline-block; }
  </style>
</head>
<body>
  <p class="name">{{.Product.Name}}</p>
  <p class="price">${{money .Product.RetailPrice}}</p>
  <p>Bs {{money .PriceBs}}</p>
  {{if gt .Product.PromoPrice 0.0}}<p>Promo: ${{money .Product.PromoPrice}}</p>{{end}}
  <p class="sku">{{.Product.SKU}}</p>
</body>
</html>
`))

type productLabelData struct {
	Product domain.Product
	PriceBs float64
}

func (a *API) renderReceipt(w http.ResponseWriter, r *http.Request, saleID string) {
	sale, err := a.service.GetSale(r.Context(), saleID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	settings, err := a.service.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	conv := currency.FromSettings(settings)

	data := receiptData{
		Sale:    sale,
		TotalBs: conv.Convert(sale.TotalAmount, domain.CurrencyUSD, domain.CurrencyBs),
	}
	writePrintable(w, receiptTmpl, data)
}

func (a *API) renderRepairTicket(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := a.service.GetRepairJob(r.Context(), jobID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	balance := job.RemainingBalance()
	if balance < 0 {
		balance = 0
	}
	writePrintable(w, repairTicketTmpl, repairTicketData{Job: job, Balance: balance})
}

func (a *API) renderProductLabel(w http.ResponseWriter, r *http.Request, productID string) {
	product, err := a.service.GetProduct(r.Context(), productID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	settings, err := a.service.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	conv := currency.FromSettings(settings)

	data := productLabelData{
		Product: product,
		PriceBs: conv.Convert(product.RetailPrice, domain.CurrencyUSD, domain.CurrencyBs),
	}
	writePrintable(w, productLabelTmpl, data)
}

func writePrintable(w http.ResponseWriter, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<!doctype html><html><body><p>Report rendering error.</p></body></html>"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func dailyReportToCSV(report domain.DailyReport) string {
	lines := []string{
		"section,key,value",
		fmt.Sprintf("summary,date,%s", report.Date),
		fmt.Sprintf("summary,transactions,%d", report.Transactions),
		fmt.Sprintf("summary,gross_sales,%.2f", report.GrossSales),
		fmt.Sprintf("summary,discounts,%.2f", report.Discounts),
		fmt.Sprintf("summary,net_sales,%.2f", report.NetSales),
		fmt.Sprintf("summary,refunded,%.2f", report.Refunded),
	}
	for _, payment := range report.ByPayment {
		lines = append(lines, fmt.Sprintf("payment,%s_transactions,%d", payment.Method, payment.Transactions))
		lines = append(lines, fmt.Sprintf("payment,%s_total,%.2f", payment.Method, payment.Total))
	}
	return strings.Join(lines, "\n") + "\n"
}

func dailyReportToPrintableHTML(report domain.DailyReport) string {
	var buf bytes.Buffer
	if err := dailyReportHTMLTmpl.Execute(&buf, report); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}
