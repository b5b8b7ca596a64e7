package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/localserve/service-booking/internal/domain"
)

// Entry is the catalog snapshot taken at booking creation. The core only
// validates presence; catalog content is owned elsewhere.
type Entry struct {
	Title      string `json:"title"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
}

// ServiceCatalog resolves a service reference to its catalog entry.
type ServiceCatalog interface {
	GetService(ctx context.Context, serviceID uuid.UUID) (*Entry, error)
}

// Profile is the contact snapshot pulled from the user directory.
type Profile struct {
	Phone string `json:"phone"`
}

// Directory resolves a user reference to their contact profile.
type Directory interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

// HTTPClient calls the catalog and directory services over HTTP.
type HTTPClient struct {
	catalogBaseURL   string
	directoryBaseURL string
	client           *http.Client
}

// NewHTTPClient creates an HTTPClient against the given base URLs.
func NewHTTPClient(catalogBaseURL, directoryBaseURL string) *HTTPClient {
	return &HTTPClient{
		catalogBaseURL:   catalogBaseURL,
		directoryBaseURL: directoryBaseURL,
		client:           &http.Client{Timeout: 5 * time.Second},
	}
}

// GetService fetches a catalog entry by service ID.
func (c *HTTPClient) GetService(ctx context.Context, serviceID uuid.UUID) (*Entry, error) {
	var entry Entry
	url := fmt.Sprintf("%s/api/v1/services/%s", c.catalogBaseURL, serviceID)
	if err := c.getJSON(ctx, url, "service", serviceID.String(), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetProfile fetches a user's contact profile by user ID.
func (c *HTTPClient) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var profile Profile
	url := fmt.Sprintf("%s/api/v1/users/%s", c.directoryBaseURL, userID)
	if err := c.getJSON(ctx, url, "user", userID.String(), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url, entity, id string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.NewNotFoundError(entity, id)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		return fmt.Errorf("failed to decode payload from %s: %w", url, err)
	}
	return nil
}
