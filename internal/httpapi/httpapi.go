package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
	"github.com/yashhavalannache/smart-inventory-management/internal/logger"
	"github.com/yashhavalannache/smart-inventory-management/internal/service"
	"github.com/yashhavalannache/smart-inventory-management/internal/store"
	"github.com/yashhavalannache/smart-inventory-management/internal/xid"
)

const (
	maxJSONBody     = 1 << 20
	requestIDHeader = "X-Request-ID"
	actorKey        = "actor"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	serviceName   string
	loginLimiter  *attemptLimiter
	log           *logrus.Entry
	engine        *gin.Engine
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, serviceName string) *API {
	if serviceName == "" {
		serviceName = "smart-store"
	}
	a := &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		serviceName:   serviceName,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		log:           logger.WithModule("httpapi"),
	}
	a.engine = a.routes()
	return a
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	return a.engine
}

func (a *API) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), a.requestID(), otelgin.Middleware(a.serviceName), a.securityHeaders(), a.accessLog())

	r.GET("/healthz", a.handleHealth)

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", a.handleLogin)
	v1.POST("/auth/register", a.handleRegister)

	staff := v1.Group("", a.requireAuth(RoleClerk, RoleAdmin))
	staff.GET("/inventory", a.handleListInventory)
	staff.GET("/inventory/low-stock", a.handleLowStock)
	staff.GET("/inventory/:id", a.handleGetProduct)
	staff.POST("/sales/checkout", a.handleCheckout)
	staff.GET("/sales", a.handleListSales)
	staff.GET("/reports/daily", a.handleDailyReport)
	staff.GET("/dashboard", a.handleDashboard)

	admin := v1.Group("", a.requireAuth(RoleAdmin))
	admin.POST("/inventory", a.handleCreateProduct)
	admin.PATCH("/inventory/:id", a.handleUpdateProduct)
	admin.DELETE("/inventory/:id", a.handleDeleteProduct)

	return r
}

func (a *API) requireAuth(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.abortError(c, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.abortError(c, http.StatusUnauthorized, err)
			return
		}
		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.abortError(c, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = xid.New("req")
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (a *API) securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Access-Control-Allow-Origin", a.allowedOrigin)
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key, X-Request-ID")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		h.Set("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		if c.Request.Body != nil && strings.Contains(strings.ToLower(c.GetHeader("Content-Type")), "application/json") {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBody)
		}
		c.Next()
	}
}

func (a *API) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()
		a.log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"request_id":  c.GetString(requestIDHeader),
		}).Info("request")
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(c *gin.Context) {
	if !a.loginLimiter.Allow(clientKey(c.Request)) {
		a.abortError(c, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		a.abortError(c, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(c.Request.Context(), req)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, errInactiveAccount) {
			status = http.StatusForbidden
		}
		a.abortError(c, status, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleRegister(c *gin.Context) {
	if !a.loginLimiter.Allow(clientKey(c.Request)) {
		a.abortError(c, http.StatusTooManyRequests, errors.New("too many attempts"))
		return
	}

	var req domain.RegisterRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		a.abortError(c, http.StatusBadRequest, err)
		return
	}

	account, err := a.auth.Register(c.Request.Context(), req)
	if err != nil {
		a.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": account})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// statusFromError maps service errors onto HTTP status codes.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidQuantity),
		errors.Is(err, store.ErrInvalidDate),
		errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrProductNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeDomainError(c *gin.Context, err error) {
	status := statusFromError(err)
	var lineErr *store.LineError
	if status < 500 && errors.As(err, &lineErr) {
		body := gin.H{
			"error":      err.Error(),
			"line":       lineErr.Line,
			"product_id": lineErr.ProductID,
		}
		if errors.Is(err, store.ErrInsufficientStock) {
			body["available"] = lineErr.Available
		}
		c.AbortWithStatusJSON(status, body)
		return
	}
	a.abortError(c, status, err)
}

// abortError writes the error body. 5xx responses carry a generic message;
// the cause only goes to the log.
func (a *API) abortError(c *gin.Context, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		a.log.WithError(err).WithFields(logrus.Fields{
			"status":     status,
			"request_id": c.GetString(requestIDHeader),
		}).Error("request failed")
		msg = "internal server error"
		if status == http.StatusServiceUnavailable {
			msg = "service temporarily unavailable"
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
