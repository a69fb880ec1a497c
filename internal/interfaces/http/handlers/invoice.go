// internal/interfaces/http/handlers/invoice.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
	"github.com/your-org/lpg-storefront/internal/pkg/pdf"
)

// InvoiceHandler renders order invoices
type InvoiceHandler struct {
	orders *order.Service
	pdf    *pdf.Service
	log    logrus.FieldLogger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(orders *order.Service, pdfService *pdf.Service, log logrus.FieldLogger) *InvoiceHandler {
	return &InvoiceHandler{orders: orders, pdf: pdfService, log: log}
}

// GetUserInvoice handles GET /orders/:id/invoice
func (h *InvoiceHandler) GetUserInvoice(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetUserOrder(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.render(c, o)
}

// GetInvoice handles GET /admin/orders/:id/invoice
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.render(c, o)
}

// render writes the PDF, or the HTML source when ?format=html.
func (h *InvoiceHandler) render(c *gin.Context, o *order.Order) {
	if c.Query("format") == "html" {
		body, err := h.pdf.RenderInvoiceHTML(o)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", body)
		return
	}

	buf, err := h.pdf.GenerateInvoice(o)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", o.OrderNumber))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
