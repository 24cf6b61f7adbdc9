// Package billing computes the amount owed for a relayed request from its usage and the model's price sheet.
package billing

import (
	"net/http"

	"github.com/mono-ai/aiproxy/internal/models"
	"github.com/shopspring/decimal"
)

// termPrecision is the number of fractional digits kept for each priced term before summing.
const termPrecision = 10

// CalculateAmount returns the amount owed for one relay.
// A non-zero per-request price is charged in full on HTTP 200 and not at all otherwise;
// every other sheet is billed per token.
func CalculateAmount(status int, usage models.Usage, price models.Price) float64 {
	return Amount(status, usage, price).InexactFloat64()
}

// Amount is CalculateAmount in decimal form.
func Amount(status int, usage models.Usage, price models.Price) decimal.Decimal {
	if price.PerRequestPrice != 0 {
		if status != http.StatusOK {
			return decimal.Zero
		}
		return decimal.NewFromFloat(price.PerRequestPrice)
	}

	input := usage.InputTokens
	if price.ImageInputPrice > 0 {
		input -= usage.ImageInputTokens
	}
	if price.CachedPrice > 0 {
		input -= usage.CachedTokens
	}
	if price.CacheCreationPrice > 0 {
		input -= usage.CacheCreationTokens
	}
	if input < 0 {
		input = 0
	}

	outputPrice, outputUnit := price.OutputPrice, price.OutputUnit()
	if usage.ReasoningTokens != 0 && price.ThinkingModeOutputPrice != 0 {
		outputPrice, outputUnit = price.ThinkingModeOutputPrice, price.ThinkingModeOutputUnit()
	}

	total := decimal.Zero
	total = total.Add(term(input, price.InputPrice, price.InputUnit()))
	total = total.Add(term(usage.ImageInputTokens, price.ImageInputPrice, price.ImageInputUnit()))
	total = total.Add(term(usage.CachedTokens, price.CachedPrice, price.CachedUnit()))
	total = total.Add(term(usage.CacheCreationTokens, price.CacheCreationPrice, price.CacheCreationUnit()))
	total = total.Add(term(usage.WebSearchCount, price.WebSearchPrice, price.WebSearchUnit()))
	total = total.Add(term(usage.OutputTokens, outputPrice, outputUnit))

	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func term(count int64, price float64, unit int64) decimal.Decimal {
	if count == 0 || price == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(count).
		Mul(decimal.NewFromFloat(price)).
		DivRound(decimal.NewFromInt(unit), termPrecision)
}
