// internal/interfaces/http/handlers/invoice.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/pkg/pdf"
)

// InvoiceHandler handles invoice-related endpoints
type InvoiceHandler struct {
	orderService *order.Service
	pdfService   *pdf.Service
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(orderService *order.Service, pdfService *pdf.Service) *InvoiceHandler {
	return &InvoiceHandler{
		orderService: orderService,
		pdfService:   pdfService,
	}
}

// GenerateInvoice handles GET /orders/:id/invoice. Pass format=html for a
// browser preview instead of the PDF.
func (h *InvoiceHandler) GenerateInvoice(c *gin.Context) {
	userID, ok := principalID(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id", "order")
	if !ok {
		return
	}

	o, err := h.orderService.GetOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.render(c, o)
}

// AdminGenerateInvoice handles GET /admin/orders/:id/invoice
func (h *InvoiceHandler) AdminGenerateInvoice(c *gin.Context) {
	orderID, ok := idParam(c, "id", "order")
	if !ok {
		return
	}

	o, err := h.orderService.GetOrderForAdmin(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.render(c, o)
}

func (h *InvoiceHandler) render(c *gin.Context, o *order.OrderResponse) {
	if c.Query("format") == "html" {
		html, err := h.pdfService.RenderHTML(o)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", html)
		return
	}

	pdfBuffer, err := h.pdfService.GenerateInvoice(o)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", o.OrderNumber))
	c.Header("Content-Length", strconv.Itoa(pdfBuffer.Len()))
	c.Data(http.StatusOK, "application/pdf", pdfBuffer.Bytes())
}
