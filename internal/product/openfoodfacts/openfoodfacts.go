package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vbonduro/fridgescan/internal/product"
)

const DefaultBaseURL = "https://world.openfoodfacts.org"

// userAgent identifies the client, as the Open Food Facts API asks callers to.
const userAgent = "fridgescan/1.0 (+https://github.com/vbonduro/fridgescan)"

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// productResponse is the subset of the v0 product response we read.
// status is 1 when the product exists.
type productResponse struct {
	Status  int `json:"status"`
	Product *struct {
		ProductName string `json:"product_name"`
	} `json:"product"`
}

func (c *Client) Lookup(ctx context.Context, code string) (*product.Result, error) {
	endpoint := fmt.Sprintf("%s/api/v0/product/%s.json", c.baseURL, url.PathEscape(code))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call open food facts: %w", err)
	}
	defer resp.Body.Close()

	// The API answers unknown codes with a status 0 body that may come with a
	// 404, so the body decides the outcome rather than the HTTP status.
	var body productResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if body.Status != 1 {
		return &product.Result{Found: false}, nil
	}

	res := &product.Result{Found: true}
	if body.Product != nil {
		res.Name = strings.TrimSpace(body.Product.ProductName)
	}
	return res, nil
}
