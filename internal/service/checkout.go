package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yashhavalannache/smart-inventory-management/internal/cache"
	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
	"github.com/yashhavalannache/smart-inventory-management/internal/store"
	"github.com/yashhavalannache/smart-inventory-management/internal/telemetry"
)

// Checkout sells every line of req or none of them.
//
// Lines are validated in order and the first failure aborts the batch:
// a non-positive quantity (ErrInvalidQuantity), an unknown product
// (ErrProductNotFound), or more units than remain (ErrInsufficientStock).
// Remaining stock is tracked across the batch, so two lines for the same
// product cannot together exceed what is on hand. Failures are returned as
// *store.LineError.
//
// An idempotency key is reserved before any stock moves. A repeat of a
// successful checkout returns the first response marked Duplicate; reusing
// the key for a different cart, or while the first checkout is still
// running, fails with ErrDuplicate.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "service.Checkout")
	defer span.End()
	span.SetAttributes(attribute.Int("checkout.lines", len(req.Items)))

	date, err := s.resolveDate(req.Date)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	if len(req.Items) == 0 {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: checkout has no items", store.ErrInvalidInput)
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	fingerprint := ""
	reserved := false
	if key != "" {
		fingerprint = checkoutFingerprint(date, req.Items)
		claim, ok, err := s.replay.Reserve(ctx, key, fingerprint, s.replayTTL)
		switch {
		case err != nil:
			s.log.WithError(err).WithField("idempotency_key", key).Warn("checkout key reservation failed")
		case !ok:
			span.SetAttributes(attribute.Bool("checkout.duplicate", true))
			return replayed(claim, fingerprint)
		default:
			reserved = true
		}
	}

	lines, err := s.applyCheckout(ctx, req.Items, date)
	if err != nil {
		span.RecordError(err)
		if reserved {
			if rerr := s.replay.Release(context.WithoutCancel(ctx), key); rerr != nil {
				s.log.WithError(rerr).WithField("idempotency_key", key).Warn("checkout key release failed")
			}
		}
		return domain.CheckoutResponse{}, err
	}

	resp := domain.CheckoutResponse{
		Date:       date,
		Lines:      lines,
		TotalPrice: sumTotals(lines),
	}
	if reserved {
		claim := cache.Claim{Fingerprint: fingerprint, Response: &resp}
		if err := s.replay.Complete(context.WithoutCancel(ctx), key, claim, s.replayTTL); err != nil {
			s.log.WithError(err).WithField("idempotency_key", key).Warn("checkout replay store failed")
		}
	}
	s.logAudit(ctx, "checkout", "", map[string]any{
		"date":        date,
		"lines":       len(lines),
		"total_price": resp.TotalPrice.String(),
	})
	return resp, nil
}

func replayed(claim cache.Claim, fingerprint string) (domain.CheckoutResponse, error) {
	if claim.Fingerprint != fingerprint {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: idempotency key was used for a different checkout", store.ErrDuplicate)
	}
	if claim.Response == nil {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: checkout with this idempotency key is still in progress", store.ErrDuplicate)
	}
	resp := *claim.Response
	resp.Duplicate = true
	return resp, nil
}

// checkoutFingerprint identifies a cart: the sale date plus every line in order.
func checkoutFingerprint(date string, items []domain.SaleLine) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", date)
	for _, item := range items {
		fmt.Fprintf(h, "%s:%d\n", strings.TrimSpace(item.ProductID), item.Quantity)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type heldStock struct {
	record    domain.StockRecord
	remaining int
}

func (s *Service) applyCheckout(ctx context.Context, items []domain.SaleLine, date string) ([]domain.SaleResult, error) {
	var results []domain.SaleResult

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, strings.TrimSpace(item.ProductID))
	}
	// rows are locked in product id order so overlapping carts cannot deadlock
	slices.Sort(ids)
	ids = slices.Compact(ids)

	err := s.repo.InTx(ctx, func(tx store.Tx) error {
		results = make([]domain.SaleResult, 0, len(items))
		held := make(map[string]*heldStock, len(ids))

		for _, id := range ids {
			rec, err := tx.GetStockForUpdate(ctx, id)
			if errors.Is(err, store.ErrProductNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			held[id] = &heldStock{record: *rec, remaining: rec.Quantity}
		}

		for i, item := range items {
			productID := strings.TrimSpace(item.ProductID)
			if item.Quantity < 1 {
				return &store.LineError{Line: i + 1, ProductID: productID, Err: store.ErrInvalidQuantity}
			}
			h, ok := held[productID]
			if !ok {
				return &store.LineError{Line: i + 1, ProductID: productID, Err: store.ErrProductNotFound}
			}
			if item.Quantity > h.remaining {
				return &store.LineError{Line: i + 1, ProductID: productID, Available: h.remaining, Err: store.ErrInsufficientStock}
			}
			h.remaining -= item.Quantity
		}

		for i, item := range items {
			productID := strings.TrimSpace(item.ProductID)
			rec := held[productID].record
			if err := tx.DecrementStock(ctx, productID, item.Quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return &store.LineError{Line: i + 1, ProductID: productID, Err: err}
				}
				return err
			}
			sale, err := tx.AppendSale(ctx, domain.SaleRecord{
				ProductID:   productID,
				ProductName: rec.Name,
				Quantity:    item.Quantity,
				TotalPrice:  rec.SellingPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
				Date:        date,
			})
			if err != nil {
				return err
			}
			results = append(results, domain.SaleResult{
				ProductID:   sale.ProductID,
				ProductName: sale.ProductName,
				Quantity:    sale.Quantity,
				TotalPrice:  sale.TotalPrice,
			})
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return results, nil
}
