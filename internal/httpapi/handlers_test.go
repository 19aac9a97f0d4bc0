package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yashhavalannache/smart-inventory-management/internal/cache"
	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
	"github.com/yashhavalannache/smart-inventory-management/internal/service"
	"github.com/yashhavalannache/smart-inventory-management/internal/store/memory"
)

const reportDate = "2024-03-15"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// newTestAPI builds the full API over a seeded in-memory store, so handler
// tests exercise the real auth and service paths.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NewLocalCheckoutReplayCache(), service.Options{
		Now: func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) },
	})
	auth := NewAuthManager(context.Background(), "test-secret-key", time.Hour, repo)
	return New(svc, auth, "*", "smart-store-test")
}

func login(t *testing.T, api *API, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("%s login failed, status %d: %s", username, res.Code, res.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	return login(t, api, "admin", "admin123")
}

func loginAsClerk(t *testing.T, api *API) string {
	return login(t, api, "clerk", "clerk123")
}

func doJSON(t *testing.T, api *API, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, res.Body.String())
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	res := doJSON(t, api, http.MethodGet, "/healthz", "", nil)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
	if body := decodeBody(t, res); body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	res := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "wrongpassword"})

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestHandleRegisterThenLogin(t *testing.T) {
	api := newTestAPI(t)
	res := doJSON(t, api, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{Username: "till02", Password: "pass1234"})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	if strings.Contains(res.Body.String(), "$2") {
		t.Fatalf("password hash leaked in response: %s", res.Body.String())
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{Username: "till02", Password: "pass1234"})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for taken username, got %d", res.Code)
	}

	login(t, api, "till02", "pass1234")
}

func TestInventoryRequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	res := doJSON(t, api, http.MethodGet, "/api/v1/inventory", "", nil)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestListInventoryWithClerkToken(t *testing.T) {
	api := newTestAPI(t)
	res := doJSON(t, api, http.MethodGet, "/api/v1/inventory", loginAsClerk(t, api), nil)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	items, ok := decodeBody(t, res)["inventory"].([]any)
	if !ok || len(items) == 0 {
		t.Fatalf("expected seeded inventory")
	}
}

func TestClerkCannotEditCatalog(t *testing.T) {
	api := newTestAPI(t)
	res := doJSON(t, api, http.MethodPost, "/api/v1/inventory", loginAsClerk(t, api), domain.ProductCreateRequest{ProductID: "X1", Name: "x"})

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
}

func TestProductLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	create := map[string]any{
		"product_id":    "BREAD-01",
		"product_name":  "Brown Bread",
		"cost_price":    "30",
		"selling_price": "45.50",
		"quantity":      12,
	}
	res := doJSON(t, api, http.MethodPost, "/api/v1/inventory", token, create)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	product := decodeBody(t, res)["product"].(map[string]any)
	if product["profit"] != "15.5" {
		t.Fatalf("expected derived profit 15.5, got %v", product["profit"])
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/inventory", token, create)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate product, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodPatch, "/api/v1/inventory/BREAD-01", token, map[string]any{"quantity": 3, "selling_price": "50"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	product = decodeBody(t, res)["product"].(map[string]any)
	if product["profit"] != "20" || product["quantity"] != float64(3) {
		t.Fatalf("unexpected updated product %v", product)
	}

	res = doJSON(t, api, http.MethodPatch, "/api/v1/inventory/BREAD-01", token, map[string]any{"quantity": -1})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative quantity, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodDelete, "/api/v1/inventory/BREAD-01", token, nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	res = doJSON(t, api, http.MethodGet, "/api/v1/inventory/BREAD-01", token, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", res.Code)
	}
}

func TestCheckoutJSON(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsClerk(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/sales/checkout", token, domain.CheckoutRequest{
		Items: []domain.SaleLine{{ProductID: "RICE-5KG", Quantity: 2}, {ProductID: "TEA-250G", Quantity: 1}},
		Date:  reportDate,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	body := decodeBody(t, res)
	if body["total_price"] != "1118" {
		t.Fatalf("expected total 1118, got %v", body["total_price"])
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/inventory/RICE-5KG", token, nil)
	product := decodeBody(t, res)["product"].(map[string]any)
	if product["quantity"] != float64(38) {
		t.Fatalf("expected stock 38, got %v", product["quantity"])
	}
}

func TestCheckoutErrorsCarryLineDetails(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsClerk(t, api)

	cases := []struct {
		name   string
		lines  []domain.SaleLine
		status int
		line   float64
	}{
		{"insufficient", []domain.SaleLine{{ProductID: "SALT-1KG", Quantity: 5}}, http.StatusConflict, 1},
		{"unknown", []domain.SaleLine{{ProductID: "RICE-5KG", Quantity: 1}, {ProductID: "NOPE", Quantity: 1}}, http.StatusNotFound, 2},
		{"zero quantity", []domain.SaleLine{{ProductID: "RICE-5KG", Quantity: 0}}, http.StatusBadRequest, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := doJSON(t, api, http.MethodPost, "/api/v1/sales/checkout", token, domain.CheckoutRequest{Items: tc.lines, Date: reportDate})
			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d (body: %s)", tc.status, res.Code, res.Body.String())
			}
			body := decodeBody(t, res)
			if body["line"] != tc.line {
				t.Fatalf("expected line %v, got %v", tc.line, body["line"])
			}
		})
	}

	res := doJSON(t, api, http.MethodPost, "/api/v1/sales/checkout", token, domain.CheckoutRequest{
		Items: []domain.SaleLine{{ProductID: "SALT-1KG", Quantity: 5}},
		Date:  reportDate,
	})
	if body := decodeBody(t, res); body["available"] != float64(4) {
		t.Fatalf("expected available 4, got %v", body["available"])
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/sales?date="+reportDate, token, nil)
	if sales := decodeBody(t, res)["sales"].([]any); len(sales) != 0 {
		t.Fatalf("expected failed checkouts to record nothing, got %d sales", len(sales))
	}
}

func TestCheckoutJSONUnreadableQuantity(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsClerk(t, api)

	for _, qty := range []any{"abc", 2.5, nil, true} {
		res := doJSON(t, api, http.MethodPost, "/api/v1/sales/checkout", token, map[string]any{
			"items": []map[string]any{
				{"product_id": "RICE-5KG", "quantity": 1},
				{"product_id": "TEA-250G", "quantity": qty},
			},
			"date": reportDate,
		})
		if res.Code != http.StatusBadRequest {
			t.Fatalf("quantity %v: expected 400, got %d (body: %s)", qty, res.Code, res.Body.String())
		}
		body := decodeBody(t, res)
		if body["line"] != float64(2) || body["product_id"] != "TEA-250G" {
			t.Fatalf("quantity %v: expected line 2 details, got %v", qty, body)
		}
	}

	res := doJSON(t, api, http.MethodPost, "/api/v1/sales/checkout", token, map[string]any{
		"items": []map[string]any{{"product_id": "TEA-250G", "quantity": "2"}},
		"date":  reportDate,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected numeric string quantity to be accepted, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func postForm(t *testing.T, api *API, token string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/checkout", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func TestCheckoutForm(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsClerk(t, api)

	res := postForm(t, api, token, url.Values{
		"product_id[]": {"DAL-1KG", "SOAP-01"},
		"quantity[]":   {"2", "3"},
		"date":         {reportDate},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	if lines := decodeBody(t, res)["lines"].([]any); len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	res = postForm(t, api, token, url.Values{
		"product_id[]": {"DAL-1KG"},
		"quantity[]":   {"two"},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unreadable quantity, got %d", res.Code)
	}

	res = postForm(t, api, token, url.Values{
		"product_id[]": {"DAL-1KG", "SOAP-01"},
		"quantity[]":   {"1"},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched fields, got %d", res.Code)
	}
}

func TestCheckoutIdempotencyHeader(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsClerk(t, api)
	raw, _ := json.Marshal(domain.CheckoutRequest{Items: []domain.SaleLine{{ProductID: "OIL-1L", Quantity: 1}}, Date: reportDate})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/checkout", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "till-7-42")
		res := httptest.NewRecorder()
		api.Handler().ServeHTTP(res, req)
		codes = append(codes, res.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusOK {
		t.Fatalf("expected 201 then 200, got %v", codes)
	}

	res := doJSON(t, api, http.MethodGet, "/api/v1/inventory/OIL-1L", token, nil)
	if qty := decodeBody(t, res)["product"].(map[string]any)["quantity"]; qty != float64(24) {
		t.Fatalf("expected a single decrement, got quantity %v", qty)
	}
}

func TestCheckoutIdempotencyKeyBoundToCart(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsClerk(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/sales/checkout", token, domain.CheckoutRequest{
		Items:          []domain.SaleLine{{ProductID: "OIL-1L", Quantity: 1}},
		Date:           reportDate,
		IdempotencyKey: "till-7-43",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/sales/checkout", token, domain.CheckoutRequest{
		Items:          []domain.SaleLine{{ProductID: "OIL-1L", Quantity: 3}},
		Date:           reportDate,
		IdempotencyKey: "till-7-43",
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/inventory/OIL-1L", token, nil)
	if qty := decodeBody(t, res)["product"].(map[string]any)["quantity"]; qty != float64(24) {
		t.Fatalf("expected only the first cart to sell, got quantity %v", qty)
	}
}

func sellForReport(t *testing.T, api *API, token string) {
	t.Helper()
	res := doJSON(t, api, http.MethodPost, "/api/v1/sales/checkout", token, domain.CheckoutRequest{
		Items: []domain.SaleLine{{ProductID: "RICE-5KG", Quantity: 1}, {ProductID: "SOAP-01", Quantity: 4}},
		Date:  reportDate,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("checkout failed: %d %s", res.Code, res.Body.String())
	}
}

func TestDailyReportFormats(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsClerk(t, api)
	sellForReport(t, api, token)

	res := doJSON(t, api, http.MethodGet, "/api/v1/reports/daily?date="+reportDate, token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["total_items_sold"] != float64(5) || body["total_profit"] != "131" {
		t.Fatalf("unexpected summary %v", body)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/reports/daily?format=pdf&date="+reportDate, token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for pdf, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", ct)
	}
	if cd := res.Header().Get("Content-Disposition"); cd != "inline; filename=report-"+reportDate+".pdf" {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if !bytes.HasPrefix(res.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected a pdf document")
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/reports/daily?format=csv&date="+reportDate, token, nil)
	if res.Code != http.StatusOK || !strings.HasPrefix(res.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("expected csv, got %d %q", res.Code, res.Header().Get("Content-Type"))
	}
	if !strings.Contains(res.Body.String(), "Neem Soap") {
		t.Fatalf("expected product rows in csv: %s", res.Body.String())
	}
}

func TestDailyReportRejectsBadParams(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsClerk(t, api)

	res := doJSON(t, api, http.MethodGet, "/api/v1/reports/daily?format=xlsx", token, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", res.Code)
	}
	res = doJSON(t, api, http.MethodGet, "/api/v1/reports/daily?date=15-03-2024", token, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", res.Code)
	}
}

func TestDashboardAndLowStock(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsClerk(t, api)
	sellForReport(t, api, token)

	res := doJSON(t, api, http.MethodGet, "/api/v1/dashboard", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["total_sales"] != "639" {
		t.Fatalf("expected total sales 639, got %v", body["total_sales"])
	}
	low := body["low_stock"].([]any)
	if len(low) != 1 || low[0].(map[string]any)["product_id"] != "SALT-1KG" {
		t.Fatalf("expected SALT-1KG low on stock, got %v", low)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/inventory/low-stock?threshold=50", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if items := decodeBody(t, res)["low_stock"].([]any); len(items) != 4 {
		t.Fatalf("expected 4 products under 50, got %d", len(items))
	}
}
