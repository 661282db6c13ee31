// Package pricing turns token counts into USD and estimates spend before
// a model is called.
package pricing

import (
	"maps"
	"slices"
	"strings"

	"github.com/pario-ai/frugal/pkg/config"
	"github.com/pario-ai/frugal/pkg/models"
)

// CachedDiscount is the share of a cached input token that is not billed.
const CachedDiscount = 0.9

// Table is a static per-model price list with a fallback for unknown models.
type Table struct {
	prices map[string]models.ModelPricing
	def    models.ModelPricing
}

// NewTable builds a Table. def applies to models not found in prices.
func NewTable(def models.ModelPricing, prices []models.ModelPricing) *Table {
	t := &Table{prices: make(map[string]models.ModelPricing, len(prices)), def: def}
	for _, p := range prices {
		t.prices[p.Model] = p
	}
	return t
}

// DefaultTable returns the built-in Claude prices.
func DefaultTable() *Table {
	return FromConfig(config.Default().Pricing)
}

// FromConfig builds a Table from the pricing section.
func FromConfig(cfg config.PricingConfig) *Table {
	return NewTable(cfg.Default, cfg.Models)
}

// Lookup finds pricing for a model, trying exact match then longest prefix
// match. ok is false when the default pricing was used.
func (t *Table) Lookup(model string) (p models.ModelPricing, ok bool) {
	if p, ok := t.prices[model]; ok {
		return p, true
	}
	var bestKey string
	for key, candidate := range t.prices {
		if strings.HasPrefix(model, key) && len(key) > len(bestKey) {
			bestKey = key
			p = candidate
		}
	}
	if bestKey != "" {
		return p, true
	}
	return t.def, false
}

// Default returns the fallback pricing.
func (t *Table) Default() models.ModelPricing { return t.def }

// Models returns the listed prices ordered by model name.
func (t *Table) Models() []models.ModelPricing {
	out := make([]models.ModelPricing, 0, len(t.prices))
	for _, key := range slices.Sorted(maps.Keys(t.prices)) {
		out = append(out, t.prices[key])
	}
	return out
}

// Cost returns the USD cost of a call. Cached tokens count against input at
// a 90% discount before pricing: effective = input - cached*0.9.
func (t *Table) Cost(model string, inputTokens, outputTokens, cachedTokens int) float64 {
	p, _ := t.Lookup(model)
	effective := float64(inputTokens) - float64(cachedTokens)*CachedDiscount
	if effective < 0 {
		effective = 0
	}
	return effective/1_000_000*p.Input + float64(outputTokens)/1_000_000*p.Output
}
