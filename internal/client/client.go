// Package client talks to the smart store HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
)

// APIError is a non-2xx answer from the server. Line, ProductID and
// Available are set for rejected checkout lines.
type APIError struct {
	Status    int    `json:"-"`
	Message   string `json:"error"`
	Line      int    `json:"line,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// Login authenticates and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (domain.LoginResponse, error) {
	var out domain.LoginResponse
	err := c.do(c.http.R().
		SetContext(ctx).
		SetBody(domain.LoginRequest{Username: username, Password: password}).
		SetResult(&out), http.MethodPost, "/api/v1/auth/login")
	if err != nil {
		return domain.LoginResponse{}, err
	}
	c.SetToken(out.AccessToken)
	return out, nil
}

func (c *Client) Inventory(ctx context.Context) ([]domain.StockRecord, error) {
	var out struct {
		Inventory []domain.StockRecord `json:"inventory"`
	}
	if err := c.do(c.http.R().SetContext(ctx).SetResult(&out), http.MethodGet, "/api/v1/inventory"); err != nil {
		return nil, err
	}
	return out.Inventory, nil
}

func (c *Client) LowStock(ctx context.Context, threshold int) ([]domain.StockRecord, error) {
	var out struct {
		LowStock []domain.StockRecord `json:"low_stock"`
	}
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if threshold > 0 {
		req.SetQueryParam("threshold", fmt.Sprint(threshold))
	}
	if err := c.do(req, http.MethodGet, "/api/v1/inventory/low-stock"); err != nil {
		return nil, err
	}
	return out.LowStock, nil
}

// Checkout posts a sale. The idempotency key, when set, is also sent as the
// Idempotency-Key header so retries of the same sale are replayed.
func (c *Client) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	var out domain.CheckoutResponse
	r := c.http.R().SetContext(ctx).SetBody(req).SetResult(&out)
	if req.IdempotencyKey != "" {
		r.SetHeader("Idempotency-Key", req.IdempotencyKey)
	}
	if err := c.do(r, http.MethodPost, "/api/v1/sales/checkout"); err != nil {
		return domain.CheckoutResponse{}, err
	}
	return out, nil
}

func (c *Client) DailyReport(ctx context.Context, date string) (domain.ReportSummary, error) {
	var out domain.ReportSummary
	r := c.http.R().SetContext(ctx).SetResult(&out)
	if date != "" {
		r.SetQueryParam("date", date)
	}
	if err := c.do(r, http.MethodGet, "/api/v1/reports/daily"); err != nil {
		return domain.ReportSummary{}, err
	}
	return out, nil
}

// DailyReportFile downloads the report rendered as "pdf" or "csv".
func (c *Client) DailyReportFile(ctx context.Context, date, format string) ([]byte, error) {
	r := c.http.R().SetContext(ctx).SetQueryParam("format", format)
	if date != "" {
		r.SetQueryParam("date", date)
	}
	resp, err := r.SetError(&APIError{}).Get("/api/v1/reports/daily")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, asAPIError(resp)
	}
	return resp.Body(), nil
}

func (c *Client) do(r *resty.Request, method, path string) error {
	resp, err := r.SetError(&APIError{}).Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return asAPIError(resp)
	}
	return nil
}

func asAPIError(resp *resty.Response) error {
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{}
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}
