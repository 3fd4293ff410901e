package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/metrics"
	"github.com/saasforge/backend/internal/repository"
)

// CatalogService mirrors provider products and prices for the pricing page.
type CatalogService struct {
	repo   CatalogStore
	logger *slog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(repo CatalogStore, logger *slog.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger}
}

// SyncProduct applies a product snapshot. Deleted products stay in the
// mirror as inactive so existing prices keep their parent row.
func (s *CatalogService) SyncProduct(ctx context.Context, event *domain.Event, snap *domain.ProductSnapshot) (repository.UpsertResult, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "SyncProduct", trace.WithAttributes(
		attribute.String("event.id", event.ID),
		attribute.String("product.id", snap.ID),
	))
	defer span.End()

	p := *snap
	if event.Type.Lifecycle() == domain.LifecycleDeleted {
		p.Active = false
	}

	result, err := s.repo.UpsertProduct(ctx, &p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "product upsert failed")
		metrics.MirrorWrites.WithLabelValues("products", "error").Inc()
		return repository.UpsertSkipped, err
	}
	metrics.MirrorWrites.WithLabelValues("products", result.String()).Inc()
	s.logger.InfoContext(ctx, "product synced", "product_id", p.ID, "active", p.Active, "result", result.String())

	span.SetStatus(codes.Ok, "product synced")
	return result, nil
}

// SyncPrice applies a price snapshot. The parent product must already be
// mirrored; otherwise domain.ErrUnknownProduct is returned so the provider
// redelivers the event later.
func (s *CatalogService) SyncPrice(ctx context.Context, event *domain.Event, snap *domain.PriceSnapshot) (repository.UpsertResult, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "SyncPrice", trace.WithAttributes(
		attribute.String("event.id", event.ID),
		attribute.String("price.id", snap.ID),
	))
	defer span.End()

	p := *snap
	if event.Type.Lifecycle() == domain.LifecycleDeleted {
		p.Active = false
	}

	result, err := s.repo.UpsertPrice(ctx, &p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "price upsert failed")
		metrics.MirrorWrites.WithLabelValues("prices", "error").Inc()
		return repository.UpsertSkipped, err
	}
	metrics.MirrorWrites.WithLabelValues("prices", result.String()).Inc()
	s.logger.InfoContext(ctx, "price synced", "price_id", p.ID, "product_id", p.ProductID, "active", p.Active, "result", result.String())

	span.SetStatus(codes.Ok, "price synced")
	return result, nil
}

// ListPlans returns active products with their active prices.
func (s *CatalogService) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to load plans", err)
	}
	if plans == nil {
		plans = []domain.Plan{}
	}
	return plans, nil
}
