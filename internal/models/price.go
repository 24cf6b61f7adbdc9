package models

// Price is a model's price sheet. Each per-token price is charged per Unit tokens;
// a zero unit means 1.
type Price struct {
	PerRequestPrice float64 `json:"per_request_price,omitempty"` // Flat charge for a successful request; overrides token pricing.

	InputPrice     float64 `json:"input_price,omitempty"`
	InputPriceUnit int64   `json:"input_price_unit,omitempty"`

	ImageInputPrice     float64 `json:"image_input_price,omitempty"`
	ImageInputPriceUnit int64   `json:"image_input_price_unit,omitempty"`

	CachedPrice     float64 `json:"cached_price,omitempty"`
	CachedPriceUnit int64   `json:"cached_price_unit,omitempty"`

	CacheCreationPrice     float64 `json:"cache_creation_price,omitempty"`
	CacheCreationPriceUnit int64   `json:"cache_creation_price_unit,omitempty"`

	WebSearchPrice     float64 `json:"web_search_price,omitempty"`
	WebSearchPriceUnit int64   `json:"web_search_price_unit,omitempty"`

	OutputPrice     float64 `json:"output_price,omitempty"`
	OutputPriceUnit int64   `json:"output_price_unit,omitempty"`

	ThinkingModeOutputPrice     float64 `json:"thinking_mode_output_price,omitempty"`
	ThinkingModeOutputPriceUnit int64   `json:"thinking_mode_output_price_unit,omitempty"`
}

func unitOrOne(unit int64) int64 {
	if unit <= 0 {
		return 1
	}
	return unit
}

// InputUnit returns the effective input price unit.
func (p Price) InputUnit() int64 { return unitOrOne(p.InputPriceUnit) }

// ImageInputUnit returns the effective image input price unit.
func (p Price) ImageInputUnit() int64 { return unitOrOne(p.ImageInputPriceUnit) }

// CachedUnit returns the effective cached price unit.
func (p Price) CachedUnit() int64 { return unitOrOne(p.CachedPriceUnit) }

// CacheCreationUnit returns the effective cache creation price unit.
func (p Price) CacheCreationUnit() int64 { return unitOrOne(p.CacheCreationPriceUnit) }

// WebSearchUnit returns the effective web search price unit.
func (p Price) WebSearchUnit() int64 { return unitOrOne(p.WebSearchPriceUnit) }

// OutputUnit returns the effective output price unit.
func (p Price) OutputUnit() int64 { return unitOrOne(p.OutputPriceUnit) }

// ThinkingModeOutputUnit returns the thinking output unit, falling back to the output unit.
func (p Price) ThinkingModeOutputUnit() int64 {
	if p.ThinkingModeOutputPriceUnit > 0 {
		return p.ThinkingModeOutputPriceUnit
	}
	return p.OutputUnit()
}
