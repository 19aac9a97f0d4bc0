package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yashhavalannache/smart-inventory-management/internal/cache"
	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
	"github.com/yashhavalannache/smart-inventory-management/internal/logger"
	"github.com/yashhavalannache/smart-inventory-management/internal/report"
	"github.com/yashhavalannache/smart-inventory-management/internal/store"
	"github.com/yashhavalannache/smart-inventory-management/internal/telemetry"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	ReplayTTL         time.Duration
	LowStockThreshold int
	// Now is the clock used for default sale and report dates.
	Now func() time.Time
}

type Service struct {
	repo              store.Repository
	replay            cache.CheckoutReplayCache
	replayTTL         time.Duration
	lowStockThreshold int
	now               func() time.Time
	log               *logrus.Entry
}

func New(repo store.Repository, replay cache.CheckoutReplayCache, opts Options) *Service {
	if replay == nil {
		replay = cache.NewLocalCheckoutReplayCache()
	}
	if opts.ReplayTTL <= 0 {
		opts.ReplayTTL = 10 * time.Minute
	}
	if opts.LowStockThreshold < 1 {
		opts.LowStockThreshold = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:              repo,
		replay:            replay,
		replayTTL:         opts.ReplayTTL,
		lowStockThreshold: opts.LowStockThreshold,
		now:               opts.Now,
		log:               logger.WithModule("service"),
	}
}

func (s *Service) ListInventory(ctx context.Context) ([]domain.StockRecord, error) {
	records, err := s.repo.ListStock(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return records, nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (domain.StockRecord, error) {
	rec, err := s.repo.GetStock(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.StockRecord{}, classify(err)
	}
	return *rec, nil
}

func (s *Service) AddProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.StockRecord, error) {
	rec := domain.StockRecord{
		ProductID:    strings.TrimSpace(req.ProductID),
		Name:         strings.TrimSpace(req.Name),
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
		Quantity:     req.Quantity,
	}
	if rec.ProductID == "" || rec.Name == "" {
		return domain.StockRecord{}, fmt.Errorf("%w: product_id and product_name are required", store.ErrInvalidInput)
	}
	if err := validateStock(rec); err != nil {
		return domain.StockRecord{}, err
	}

	created, err := s.repo.CreateStock(ctx, rec)
	if err != nil {
		return domain.StockRecord{}, classify(err)
	}
	s.logAudit(ctx, "product_create", created.ProductID, logrus.Fields{
		"selling_price": created.SellingPrice.String(),
		"quantity":      created.Quantity,
	})
	return *created, nil
}

// UpdateProduct applies the non-nil fields of req. Profit is recomputed from
// the resulting prices.
func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductUpdateRequest) (domain.StockRecord, error) {
	productID = strings.TrimSpace(productID)
	existing, err := s.repo.GetStock(ctx, productID)
	if err != nil {
		return domain.StockRecord{}, classify(err)
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.StockRecord{}, fmt.Errorf("%w: product_name must not be empty", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.CostPrice != nil {
		updated.CostPrice = *req.CostPrice
	}
	if req.SellingPrice != nil {
		updated.SellingPrice = *req.SellingPrice
	}
	if req.Quantity != nil {
		updated.Quantity = *req.Quantity
	}
	if err := validateStock(updated); err != nil {
		return domain.StockRecord{}, err
	}

	saved, err := s.repo.UpdateStock(ctx, updated)
	if err != nil {
		return domain.StockRecord{}, classify(err)
	}
	s.logAudit(ctx, "product_update", saved.ProductID, logrus.Fields{
		"selling_price": saved.SellingPrice.String(),
		"quantity":      saved.Quantity,
	})
	return *saved, nil
}

// DeleteProduct removes the stock record. Sales already recorded for the
// product are kept.
func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if err := s.repo.DeleteStock(ctx, productID); err != nil {
		return classify(err)
	}
	s.logAudit(ctx, "product_delete", productID, nil)
	return nil
}

// SeedCatalog inserts records that are not in the store yet and returns how
// many were added.
func (s *Service) SeedCatalog(ctx context.Context, records []domain.StockRecord) (int, error) {
	added := 0
	for _, rec := range records {
		if err := validateStock(rec); err != nil {
			return added, fmt.Errorf("product %s: %w", rec.ProductID, err)
		}
		if _, err := s.repo.CreateStock(ctx, rec); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			return added, classify(err)
		}
		added++
	}
	return added, nil
}

func (s *Service) LowStock(ctx context.Context, threshold int) ([]domain.StockRecord, error) {
	if threshold < 1 {
		threshold = s.lowStockThreshold
	}
	records, err := s.repo.ListStock(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return report.LowStock(records, threshold), nil
}

func (s *Service) ListSales(ctx context.Context, date string) ([]domain.SaleRecord, error) {
	day, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx, day)
	if err != nil {
		return nil, classify(err)
	}
	return sales, nil
}

// DailyReport summarizes the sales of date (today when empty).
func (s *Service) DailyReport(ctx context.Context, date string) (domain.ReportSummary, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "service.DailyReport")
	defer span.End()

	day, sales, inventory, err := s.loadDay(ctx, date)
	if err != nil {
		span.RecordError(err)
		return domain.ReportSummary{}, err
	}
	return report.Summarize(day, sales, inventory), nil
}

func (s *Service) Dashboard(ctx context.Context, date string) (domain.Dashboard, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "service.Dashboard")
	defer span.End()

	day, sales, inventory, err := s.loadDay(ctx, date)
	if err != nil {
		span.RecordError(err)
		return domain.Dashboard{}, err
	}
	return report.BuildDashboard(day, sales, inventory, s.lowStockThreshold), nil
}

func (s *Service) loadDay(ctx context.Context, date string) (string, []domain.SaleRecord, []domain.StockRecord, error) {
	day, err := s.resolveDate(date)
	if err != nil {
		return "", nil, nil, err
	}
	sales, err := s.repo.ListSales(ctx, day)
	if err != nil {
		return "", nil, nil, classify(err)
	}
	inventory, err := s.repo.ListStock(ctx)
	if err != nil {
		return "", nil, nil, classify(err)
	}
	return day, sales, inventory, nil
}

// resolveDate normalizes a YYYY-MM-DD date, defaulting to today.
func (s *Service) resolveDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now().Format(domain.DateLayout), nil
	}
	parsed, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", store.ErrInvalidDate, raw)
	}
	return parsed.Format(domain.DateLayout), nil
}

func validateStock(rec domain.StockRecord) error {
	if rec.CostPrice.IsNegative() || rec.SellingPrice.IsNegative() {
		return fmt.Errorf("%w: prices must not be negative", store.ErrInvalidInput)
	}
	if !rec.PricesInCents() {
		return fmt.Errorf("%w: prices allow at most %d decimal places", store.ErrInvalidInput, domain.PriceScale)
	}
	if rec.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", store.ErrInvalidInput)
	}
	return nil
}

var domainErrors = []error{
	store.ErrNotFound,
	store.ErrInvalidInput,
	store.ErrDuplicate,
	store.ErrInvalidQuantity,
	store.ErrProductNotFound,
	store.ErrInsufficientStock,
	store.ErrInvalidDate,
	store.ErrStoreUnavailable,
}

// classify passes domain errors through and reports anything else from the
// store as ErrStoreUnavailable.
func classify(err error) error {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return store.Unavailable(err)
}

func (s *Service) logAudit(ctx context.Context, action string, productID string, fields logrus.Fields) {
	entry := s.log.WithFields(logrus.Fields{"action": action, "product_id": productID})
	if actor, ok := ActorFromContext(ctx); ok {
		entry = entry.WithField("actor", actor.Username)
	}
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Info("audit")
}

func sumTotals(lines []domain.SaleResult) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.TotalPrice)
	}
	return total
}
