package infra

import (
	"context"

	"checkout-service/internal/domain"
)

type CatalogClientInterface interface {
	GetPromotions(ctx context.Context, productRef string) ([]domain.Promotion, error)
	ListShowrooms(ctx context.Context) ([]domain.Showroom, error)
}

var _ CatalogClientInterface = (*CatalogClient)(nil)
