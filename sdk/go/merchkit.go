package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.merchkit.example.com"
	}
	return &Client{BaseURL: baseURL, APIKey: apiKey, HTTP: http.DefaultClient}
}

func (c *Client) headers(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
}

// Storefront fetches a store's public catalog with resolved prices.
func (c *Client) Storefront(slug string) (map[string]interface{}, error) {
	req, _ := http.NewRequest("GET", c.BaseURL+"/v1/stores/"+url.PathEscape(slug), nil)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// StorefrontProduct fetches a single product with its resolved quote.
// variantID may be empty to use the product's default variant.
func (c *Client) StorefrontProduct(slug, productID, variantID string) (map[string]interface{}, error) {
	u := fmt.Sprintf("%s/v1/stores/%s/products/%s", c.BaseURL, url.PathEscape(slug), url.PathEscape(productID))
	if variantID != "" {
		u += "?variant_id=" + url.QueryEscape(variantID)
	}
	req, _ := http.NewRequest("GET", u, nil)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCheckout starts a checkout session and returns the redirect URL.
// requestID is optional; pass it to make client retries idempotent.
func (c *Client) CreateCheckout(storeID, productID, variantID string, quantity int64, requestID string) (string, error) {
	payload := map[string]interface{}{
		"store_id":   storeID,
		"product_id": productID,
		"quantity":   quantity,
	}
	if variantID != "" {
		payload["variant_id"] = variantID
	}
	if requestID != "" {
		payload["request_id"] = requestID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, _ := http.NewRequest("POST", c.BaseURL+"/v1/checkout", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Message string `json:"message"`
			Reason  string `json:"reason"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Reason != "" {
			return "", fmt.Errorf("checkout rejected (%s): %s", apiErr.Reason, apiErr.Message)
		}
		return "", fmt.Errorf("checkout failed: status %d", resp.StatusCode)
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// UpsertPrice sets a per-store price override. Merchant endpoints require
// the client's APIKey.
func (c *Client) UpsertPrice(storeID, productID, variantID string, priceCents int64, visibility string) error {
	body := fmt.Sprintf(`{"price_cents":%d,"visibility":"%s"}`, priceCents, visibility)
	u := fmt.Sprintf("%s/v1/merchant/stores/%s/products/%s/prices/%s", c.BaseURL, url.PathEscape(storeID), url.PathEscape(productID), url.PathEscape(variantID))
	req, _ := http.NewRequest("PUT", u, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.headers(req)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upsert price failed: status %d", resp.StatusCode)
	}
	return nil
}
