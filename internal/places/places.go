// Package places proxies the Google Places API for location autocomplete
// and place geometry lookups, keeping the API key server-side.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// Prediction is one autocomplete suggestion.
type Prediction struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

// Point is a resolved place location.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Client calls the Places API with a fixed key and country restriction.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	country    string
}

// New constructs a Places client. country is an ISO 3166-1 alpha-2 code used
// to restrict autocomplete results (e.g. "au").
func New(apiKey, country string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		country:    country,
	}
}

// NewWithBaseURL is New with an overridable endpoint, for tests.
func NewWithBaseURL(apiKey, country, baseURL string) *Client {
	c := New(apiKey, country)
	c.baseURL = baseURL
	return c
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, dst any) error {
	params.Set("key", c.apiKey)
	u := fmt.Sprintf("%s/%s/json?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("places %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("places %s: decode: %w", endpoint, err)
	}
	return nil
}

// Autocomplete returns location suggestions for a partial query.
func (c *Client) Autocomplete(ctx context.Context, query string) ([]Prediction, error) {
	params := url.Values{}
	params.Set("input", query)
	if c.country != "" {
		params.Set("components", "country:"+c.country)
	}

	var out struct {
		Predictions []Prediction `json:"predictions"`
	}
	if err := c.getJSON(ctx, "autocomplete", params, &out); err != nil {
		return nil, err
	}
	return out.Predictions, nil
}

// Details resolves a place id to its coordinates.
func (c *Client) Details(ctx context.Context, placeID string) (Point, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "geometry")

	var out struct {
		Result struct {
			Geometry struct {
				Location Point `json:"location"`
			} `json:"geometry"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, "details", params, &out); err != nil {
		return Point{}, err
	}
	return out.Result.Geometry.Location, nil
}
