// internal/pkg/pdf/service.go
package pdf

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/shopspring/decimal"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/order"
)

// Service handles PDF generation
type Service struct {
	config *config.Config
	tmpl   *template.Template
	now    func() time.Time
}

// NewService creates a new PDF service
func NewService(cfg *config.Config) *Service {
	s := &Service{config: cfg, now: time.Now}
	s.tmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
		"money": func(d decimal.Decimal) string { return FormatMoney(d, cfg.Store.Currency) },
		"date": func(t *time.Time) string {
			if t == nil {
				return "-"
			}
			return t.Format("02 Jan 2006 15:04")
		},
	}).Parse(invoiceTemplate))
	return s
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// InvoiceData represents the data passed to the invoice template
type InvoiceData struct {
	InvoiceNumber  string
	InvoiceDate    string
	Order          *order.Order
	Company        CompanyInfo
	PickupLocation string
	IsDelivery     bool
}

// CompanyInfo represents company information
type CompanyInfo struct {
	Name    string
	Address string
	Phone   string
}

// RenderInvoiceHTML renders the invoice page for o.
func (s *Service) RenderInvoiceHTML(o *order.Order) ([]byte, error) {
	data := InvoiceData{
		InvoiceNumber: "INV-" + strings.TrimPrefix(o.OrderNumber, "LPG-"),
		InvoiceDate:   s.now().Format("02 January 2006"),
		Order:         o,
		Company: CompanyInfo{
			Name:    s.config.Store.CompanyName,
			Address: s.config.Store.CompanyAddress,
			Phone:   s.config.Store.CompanyPhone,
		},
		IsDelivery: o.FulfillmentMethod == order.FulfillmentDelivery,
	}
	if !data.IsDelivery {
		data.PickupLocation = s.config.Store.PickupLocation
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateInvoice renders o as an A4 PDF through wkhtmltopdf.
func (s *Service) GenerateInvoice(o *order.Order) (*bytes.Buffer, error) {
	html, err := s.RenderInvoiceHTML(o)
	if err != nil {
		return nil, fmt.Errorf("failed to generate HTML: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}
	pdfg.Dpi.Set(300)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.Title.Set("Invoice " + o.OrderNumber)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html))
	page.FooterRight.Set("[page]/[toPage]")
	page.FooterFontSize.Set(8)
	page.Encoding.Set("UTF-8")
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}
	return bytes.NewBuffer(pdfg.Bytes()), nil
}

// FormatMoney renders an amount the way Indonesian receipts do: IDR with dot
// thousands separators and no fraction, other currencies with two decimals.
func FormatMoney(d decimal.Decimal, currency string) string {
	if currency == "" || strings.EqualFold(currency, "IDR") {
		return "Rp " + groupThousands(d.Round(0).String(), ".")
	}
	s := d.StringFixed(2)
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i:]
	}
	return strings.ToUpper(currency) + " " + groupThousands(whole, ",") + frac
}

func groupThousands(digits, sep string) string {
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteString(sep)
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Invoice {{.InvoiceNumber}}</title>
<style>
body { font-family: Arial, sans-serif; font-size: 12px; color: #222; margin: 24px; }
h1 { font-size: 20px; margin: 0 0 4px 0; }
.muted { color: #777; }
.header { display: flex; justify-content: space-between; border-bottom: 2px solid #e85d04; padding-bottom: 12px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th { background: #fff3e6; text-align: left; padding: 6px; border-bottom: 1px solid #e85d04; }
td { padding: 6px; border-bottom: 1px solid #eee; }
.right { text-align: right; }
.totals td { border: none; }
.grand td { font-weight: bold; font-size: 14px; border-top: 2px solid #222; }
.box { margin-top: 16px; padding: 10px; background: #fafafa; border: 1px solid #eee; }
</style>
</head>
<body>
<div class="header">
  <div>
    <h1>{{.Company.Name}}</h1>
    <div class="muted">{{.Company.Address}}</div>
    <div class="muted">{{.Company.Phone}}</div>
  </div>
  <div class="right">
    <h1>INVOICE</h1>
    <div>{{.InvoiceNumber}}</div>
    <div class="muted">{{.InvoiceDate}}</div>
  </div>
</div>

<div class="box">
  <div><strong>Order</strong> {{.Order.OrderNumber}} &middot; {{.Order.Status}}</div>
  <div><strong>Paid</strong> {{date .Order.PaidAt}}{{if .Order.PaymentRef}} &middot; ref {{.Order.PaymentRef}}{{end}}</div>
  {{if .IsDelivery}}
  <div><strong>Deliver to</strong> {{.Order.ShippingAddress.RecipientName}} ({{.Order.ShippingAddress.Phone}})</div>
  <div>{{.Order.ShippingAddress.AddressLine}}, {{.Order.ShippingAddress.City}} {{.Order.ShippingAddress.PostalCode}}</div>
  {{if .Order.ShippingAddress.Landmark}}<div class="muted">{{.Order.ShippingAddress.Landmark}}</div>{{end}}
  {{else}}
  <div><strong>Pickup at</strong> {{.PickupLocation}}</div>
  {{end}}
</div>

<table>
  <thead>
    <tr><th>SKU</th><th>Item</th><th class="right">Qty</th><th class="right">Unit price</th><th class="right">Amount</th></tr>
  </thead>
  <tbody>
  {{range .Order.Items}}
    <tr>
      <td>{{.SKU}}</td>
      <td>{{.ProductName}} {{.VariantName}}{{if .IsPreorder}} <span class="muted">(preorder)</span>{{end}}</td>
      <td class="right">{{.Quantity}}</td>
      <td class="right">{{money .UnitPrice}}</td>
      <td class="right">{{money .LineTotal}}</td>
    </tr>
  {{end}}
  </tbody>
</table>

<table class="totals">
  <tr><td class="right">Subtotal</td><td class="right" width="140">{{money .Order.Subtotal}}</td></tr>
  {{if .IsDelivery}}<tr><td class="right">Delivery {{.Order.DeliveryZoneCode}}</td><td class="right">{{money .Order.ShippingFee}}</td></tr>{{end}}
  <tr class="grand"><td class="right">Total</td><td class="right">{{money .Order.Total}}</td></tr>
</table>

{{if .Order.CustomerNotes}}<div class="box"><strong>Notes</strong> {{.Order.CustomerNotes}}</div>{{end}}
<p class="muted">Keep cylinders upright and away from heat. Return empty cylinders at the depot.</p>
</body>
</html>
`
