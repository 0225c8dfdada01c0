package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Coin is one tracked coin.
type Coin struct {
	ID     string `yaml:"id" json:"id"`
	Label  string `yaml:"label" json:"label"`
	Symbol string `yaml:"symbol" json:"symbol"`
	Color  string `yaml:"color" json:"color,omitempty"`
	// Required coins must be present in every price payload.
	Required bool `yaml:"required" json:"required"`
}

// Catalog is the coin list shown on the dashboard.
type Catalog struct {
	Coins []Coin `yaml:"coins" json:"coins"`
}

// DefaultCatalog returns the three coins the dashboard always displays.
func DefaultCatalog() *Catalog {
	return &Catalog{Coins: []Coin{
		{ID: "bitcoin", Label: "Bitcoin", Symbol: "BTC", Color: "#f7931a", Required: true},
		{ID: "ethereum", Label: "Ethereum", Symbol: "ETH", Color: "#627eea", Required: true},
		{ID: "dogecoin", Label: "Dogecoin", Symbol: "DOGE", Color: "#c2a633", Required: true},
	}}
}

// LoadCatalog reads and validates a coin catalog YAML file. An empty path
// returns the default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("coin catalog: %w", err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("coin catalog: %w", err)
	}
	if len(cat.Coins) < 1 {
		return nil, fmt.Errorf("coin catalog: at least one coin is required")
	}
	seen := make(map[string]bool, len(cat.Coins))
	for i := range cat.Coins {
		c := &cat.Coins[i]
		c.ID = strings.ToLower(strings.TrimSpace(c.ID))
		if c.ID == "" {
			return nil, fmt.Errorf("coin catalog: coins[%d] missing id", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("coin catalog: duplicate coin %q", c.ID)
		}
		seen[c.ID] = true
		if c.Label == "" {
			c.Label = strings.ToUpper(c.ID[:1]) + c.ID[1:]
		}
	}
	if len(cat.Required()) == 0 {
		return nil, fmt.Errorf("coin catalog: at least one coin must be required")
	}
	return &cat, nil
}

// Required lists the ids of required coins in catalog order.
func (c *Catalog) Required() []string {
	var ids []string
	for _, coin := range c.Coins {
		if coin.Required {
			ids = append(ids, coin.ID)
		}
	}
	return ids
}

// Lookup finds a coin by id.
func (c *Catalog) Lookup(id string) (Coin, bool) {
	for _, coin := range c.Coins {
		if coin.ID == id {
			return coin, true
		}
	}
	return Coin{}, false
}
