package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/siyana/storefront/internal/domain"
	"github.com/siyana/storefront/internal/repository"
	apperrors "github.com/siyana/storefront/pkg/errors"
	"github.com/siyana/storefront/pkg/pagination"
)

// CatalogService serves the read-only catalog.
type CatalogService struct {
	repo         repository.CatalogRepository
	logger       *slog.Logger
	storeTimeout time.Duration
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(repo repository.CatalogRepository, logger *slog.Logger, storeTimeout time.Duration) *CatalogService {
	return &CatalogService{repo: repo, logger: logger, storeTimeout: storeTimeout}
}

// CategoryProducts is one page of a category listing.
type CategoryProducts struct {
	Category *domain.Category
	Products []domain.Product
	Total    int
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	out, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, s.fail(ctx, "list categories", err)
	}
	return nonNil(out), nil
}

// ListProductsByCategory resolves the category by ID or slug, then pages
// through its products.
func (s *CatalogService) ListProductsByCategory(ctx context.Context, idOrSlug string, page pagination.Params) (*CategoryProducts, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	cat, err := s.repo.GetCategory(ctx, idOrSlug)
	if err != nil {
		return nil, s.fail(ctx, "get category", err)
	}

	products, total, err := s.repo.ListProductsByCategory(ctx, cat.ID, page.Offset, page.PerPage)
	if err != nil {
		return nil, s.fail(ctx, "list products", err)
	}
	return &CategoryProducts{Category: cat, Products: nonNil(products), Total: total}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, s.fail(ctx, "get product", err)
	}
	return p, nil
}

func (s *CatalogService) ListOffers(ctx context.Context) ([]domain.Offer, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	out, err := s.repo.ListOffers(ctx)
	if err != nil {
		return nil, s.fail(ctx, "list offers", err)
	}
	return nonNil(out), nil
}

func (s *CatalogService) ListCarousel(ctx context.Context) ([]domain.CarouselItem, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	out, err := s.repo.ListCarousel(ctx)
	if err != nil {
		return nil, s.fail(ctx, "list carousel", err)
	}
	return nonNil(out), nil
}

func (s *CatalogService) LatestGoldRate(ctx context.Context) (*domain.GoldRate, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	g, err := s.repo.LatestGoldRate(ctx)
	if err != nil {
		return nil, s.fail(ctx, "latest gold rate", err)
	}
	return g, nil
}

func (s *CatalogService) fail(ctx context.Context, op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	s.logger.ErrorContext(ctx, "catalog read failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return apperrors.StoreUnavailable("catalog", err)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
