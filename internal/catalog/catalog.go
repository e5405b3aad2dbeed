package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"guardian-api/internal/config"
	"guardian-api/pkg/logging"
)

// ErrUnknownProduct is returned when a product id is not in the catalog.
var ErrUnknownProduct = errors.New("unknown product")

// Product describes one sellable catalog entry. RedemptionLimit of -1 means
// unlimited downloads.
type Product struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	Version         string  `json:"version"`
	FileReference   string  `json:"file_reference"`
	RedemptionLimit int     `json:"redemption_limit"`
	Active          bool    `json:"active"`
}

// Catalog is the read-only product registry. It is populated at construction
// from built-in defaults, optionally replaced by a JSON config file.
type Catalog struct {
	products map[string]Product
}

// New builds the catalog. When cfg.ProductsConfigFile is set, product
// definitions come from that file; otherwise the built-in Guardian line is
// used. Products without an explicit redemption limit inherit
// cfg.DefaultRedemptionLimit.
func New(cfg *config.Config) (*Catalog, error) {
	var products []Product
	if cfg.ProductsConfigFile != "" {
		data, err := os.ReadFile(cfg.ProductsConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read products config: %w", err)
		}
		if err := json.Unmarshal(data, &products); err != nil {
			return nil, fmt.Errorf("failed to parse products config: %w", err)
		}
	} else {
		products = defaultProducts()
	}

	c := &Catalog{products: make(map[string]Product, len(products))}
	for _, p := range products {
		if p.Currency == "" {
			p.Currency = "USD"
		}
		if p.RedemptionLimit == 0 {
			p.RedemptionLimit = cfg.DefaultRedemptionLimit
		}
		c.products[p.ID] = p
	}
	logging.Infof("Loaded %d products", len(c.products))
	return c, nil
}

// Get returns an active product by id.
func (c *Catalog) Get(productID string) (*Product, error) {
	p, ok := c.products[productID]
	if !ok || !p.Active {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	return &p, nil
}

// List returns all active products sorted by price.
func (c *Catalog) List() []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

func defaultProducts() []Product {
	return []Product{
		{
			ID:              "guardian_basic",
			Name:            "Guardian Basic",
			Description:     "Basic edition with essential protection features",
			Price:           29.99,
			Currency:        "USD",
			Version:         "1.0.0",
			FileReference:   "guardian_basic.zip",
			RedemptionLimit: 5,
			Active:          true,
		},
		{
			ID:              "guardian_pro",
			Name:            "Guardian Pro",
			Description:     "Professional edition with advanced scanning",
			Price:           59.99,
			Currency:        "USD",
			Version:         "1.0.0",
			FileReference:   "guardian_pro.zip",
			RedemptionLimit: 10,
			Active:          true,
		},
		{
			ID:              "guardian_enterprise",
			Name:            "Guardian Enterprise",
			Description:     "Enterprise edition with centralized management",
			Price:           199.99,
			Currency:        "USD",
			Version:         "1.0.0",
			FileReference:   "guardian_enterprise.zip",
			RedemptionLimit: -1,
			Active:          true,
		},
	}
}
