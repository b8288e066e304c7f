// Package catalog is the client for the external product-master service.
// The add/edit flow uses it to pre-fill descricao and codprod from a
// scanned EAN. The service itself lives outside this repository.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"inventory-service/pkg/config"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound indicates the catalog has no entry for the given EAN.
var ErrNotFound = errors.New("catalog has no product for this barcode")

// Entry is the product-master data returned for a barcode.
type Entry struct {
	Descricao   string `json:"descricao"`
	CodProd     string `json:"codprod"`
	CodAuxiliar string `json:"codauxiliar"`
}

// Client looks up product-master entries by EAN.
type Client struct {
	http *resty.Client
}

// NewClient builds a catalog client from configuration.
func NewClient(cfg config.CatalogConfig) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout),
	}
}

// Lookup fetches the catalog entry for the given EAN.
func (c *Client) Lookup(ctx context.Context, ean string) (*Entry, error) {
	var entry Entry
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&entry).
		Get(fmt.Sprintf("/api/catalog/%s", ean))
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, ErrNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode())
	}
	return &entry, nil
}
