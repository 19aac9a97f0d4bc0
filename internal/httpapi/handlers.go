package httpapi

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
	"github.com/yashhavalannache/smart-inventory-management/internal/report"
	"github.com/yashhavalannache/smart-inventory-management/internal/store"
)

func (a *API) handleListInventory(c *gin.Context) {
	records, err := a.service.ListInventory(c.Request.Context())
	if err != nil {
		a.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inventory": records})
}

func (a *API) handleGetProduct(c *gin.Context) {
	rec, err := a.service.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": rec})
}

func (a *API) handleLowStock(c *gin.Context) {
	threshold := parsePositiveLimit(c.Query("threshold"), 0, 1000)
	records, err := a.service.LowStock(c.Request.Context(), threshold)
	if err != nil {
		a.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"low_stock": records})
}

func (a *API) handleCreateProduct(c *gin.Context) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		a.abortError(c, http.StatusBadRequest, err)
		return
	}
	rec, err := a.service.AddProduct(c.Request.Context(), req)
	if err != nil {
		a.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": rec})
}

func (a *API) handleUpdateProduct(c *gin.Context) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		a.abortError(c, http.StatusBadRequest, err)
		return
	}
	rec, err := a.service.UpdateProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": rec})
}

func (a *API) handleDeleteProduct(c *gin.Context) {
	if err := a.service.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		a.writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleCheckout accepts a JSON CheckoutRequest or the till form, which posts
// parallel product_id[] and quantity[] fields.
func (a *API) handleCheckout(c *gin.Context) {
	var (
		req domain.CheckoutRequest
		err error
	)
	if strings.Contains(strings.ToLower(c.ContentType()), "json") {
		req, err = checkoutFromJSON(c.Request)
	} else {
		req, err = checkoutFromForm(c)
	}
	if err != nil {
		a.abortError(c, http.StatusBadRequest, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	}

	resp, err := a.service.Checkout(c.Request.Context(), req)
	if err != nil {
		a.writeDomainError(c, err)
		return
	}
	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// checkoutBody is domain.CheckoutRequest with loosely typed quantities, so an
// unreadable quantity is rejected against its line instead of failing the decode.
type checkoutBody struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  any    `json:"quantity"`
	} `json:"items"`
	Date           string `json:"date,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func checkoutFromJSON(r *http.Request) (domain.CheckoutRequest, error) {
	var body checkoutBody
	if err := decodeJSON(r, &body); err != nil {
		return domain.CheckoutRequest{}, err
	}
	lines := make([]domain.SaleLine, 0, len(body.Items))
	for _, item := range body.Items {
		lines = append(lines, domain.SaleLine{ProductID: item.ProductID, Quantity: lineQuantity(item.Quantity)})
	}
	return domain.CheckoutRequest{Items: lines, Date: body.Date, IdempotencyKey: body.IdempotencyKey}, nil
}

// lineQuantity reads a whole-number quantity. Anything else becomes 0, which
// checkout rejects as an invalid quantity.
func lineQuantity(raw any) int {
	switch v := raw.(type) {
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

func checkoutFromForm(c *gin.Context) (domain.CheckoutRequest, error) {
	productIDs := c.PostFormArray("product_id[]")
	quantities := c.PostFormArray("quantity[]")
	if len(productIDs) != len(quantities) {
		return domain.CheckoutRequest{}, fmt.Errorf("%w: got %d product ids and %d quantities", store.ErrInvalidInput, len(productIDs), len(quantities))
	}

	lines := make([]domain.SaleLine, 0, len(productIDs))
	for i, id := range productIDs {
		// an unreadable quantity becomes 0 and is rejected as an invalid quantity
		qty, err := strconv.Atoi(strings.TrimSpace(quantities[i]))
		if err != nil {
			qty = 0
		}
		lines = append(lines, domain.SaleLine{ProductID: id, Quantity: qty})
	}
	return domain.CheckoutRequest{
		Items:          lines,
		Date:           c.PostForm("date"),
		IdempotencyKey: c.PostForm("idempotency_key"),
	}, nil
}

func (a *API) handleListSales(c *gin.Context) {
	sales, err := a.service.ListSales(c.Request.Context(), c.Query("date"))
	if err != nil {
		a.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (a *API) handleDailyReport(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "json")))
	if format != "json" && format != "pdf" && format != "csv" {
		a.abortError(c, http.StatusBadRequest, errors.New("format must be json, pdf or csv"))
		return
	}

	summary, err := a.service.DailyReport(c.Request.Context(), c.Query("date"))
	if err != nil {
		a.writeDomainError(c, err)
		return
	}

	switch format {
	case "pdf":
		doc, err := report.Render(summary)
		if err != nil {
			a.abortError(c, http.StatusInternalServerError, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=report-%s.pdf", summary.Date))
		c.Data(http.StatusOK, "application/pdf", doc)
	case "csv":
		doc, err := report.ToCSV(summary)
		if err != nil {
			a.abortError(c, http.StatusInternalServerError, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=report-%s.csv", summary.Date))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", doc)
	default:
		c.JSON(http.StatusOK, summary)
	}
}

func (a *API) handleDashboard(c *gin.Context) {
	dash, err := a.service.Dashboard(c.Request.Context(), c.Query("date"))
	if err != nil {
		a.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}
