package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"checkout-service/internal/domain"
)

// CatalogClient reads promotions and showrooms from the CMS.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *CatalogClient) GetPromotions(ctx context.Context, productRef string) ([]domain.Promotion, error) {
	q := url.Values{}
	q.Set("productRef", productRef)
	q.Set("active", "true")

	var out []domain.Promotion
	if err := c.get(ctx, "/promotions?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) ListShowrooms(ctx context.Context) ([]domain.Showroom, error) {
	var out []domain.Showroom
	if err := c.get(ctx, "/showrooms", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) get(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog service returned status %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
