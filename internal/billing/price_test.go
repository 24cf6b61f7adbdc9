package billing

import (
	"math/rand"
	"net/http"
	"testing"

	"github.com/mono-ai/aiproxy/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountPerRequestPrice(t *testing.T) {
	price := models.Price{PerRequestPrice: 5.0, InputPrice: 1, InputPriceUnit: 1}
	usage := models.Usage{InputTokens: 123456, OutputTokens: 42}

	assert.Equal(t, 5.0, CalculateAmount(http.StatusOK, usage, price))
	assert.Equal(t, 0.0, CalculateAmount(http.StatusInternalServerError, usage, price))
	assert.Equal(t, 0.0, CalculateAmount(http.StatusBadRequest, usage, price))
}

func TestAmountTokenPricing(t *testing.T) {
	cases := []struct {
		name  string
		usage models.Usage
		price models.Price
		want  string
	}{
		{
			name:  "input and output",
			usage: models.Usage{InputTokens: 1500, OutputTokens: 500},
			price: models.Price{InputPrice: 0.002, InputPriceUnit: 1000, OutputPrice: 0.004, OutputPriceUnit: 1000},
			want:  "0.005",
		},
		{
			name:  "cached tokens billed once",
			usage: models.Usage{InputTokens: 1000, CachedTokens: 400},
			price: models.Price{InputPrice: 1, InputPriceUnit: 1000, CachedPrice: 0.5, CachedPriceUnit: 1000},
			want:  "0.8",
		},
		{
			name:  "cached tokens without cached price stay in input",
			usage: models.Usage{InputTokens: 1000, CachedTokens: 400},
			price: models.Price{InputPrice: 1, InputPriceUnit: 1000},
			want:  "1",
		},
		{
			name:  "image and cache creation deductions",
			usage: models.Usage{InputTokens: 1000, ImageInputTokens: 200, CacheCreationTokens: 300},
			price: models.Price{
				InputPrice: 1, InputPriceUnit: 1000,
				ImageInputPrice: 2, ImageInputPriceUnit: 1000,
				CacheCreationPrice: 1.25, CacheCreationPriceUnit: 1000,
			},
			want: "1.275",
		},
		{
			name:  "thinking price falls back to output unit",
			usage: models.Usage{OutputTokens: 100, ReasoningTokens: 50},
			price: models.Price{OutputPrice: 2, OutputPriceUnit: 1000, ThinkingModeOutputPrice: 4},
			want:  "0.4",
		},
		{
			name:  "thinking price with its own unit",
			usage: models.Usage{OutputTokens: 100, ReasoningTokens: 50},
			price: models.Price{OutputPrice: 2, OutputPriceUnit: 1000, ThinkingModeOutputPrice: 4, ThinkingModeOutputPriceUnit: 100},
			want:  "4",
		},
		{
			name:  "thinking price ignored without reasoning tokens",
			usage: models.Usage{OutputTokens: 100},
			price: models.Price{OutputPrice: 2, OutputPriceUnit: 1000, ThinkingModeOutputPrice: 4},
			want:  "0.2",
		},
		{
			name:  "web search count",
			usage: models.Usage{WebSearchCount: 3},
			price: models.Price{WebSearchPrice: 0.01},
			want:  "0.03",
		},
		{
			name:  "zero unit means one",
			usage: models.Usage{InputTokens: 7},
			price: models.Price{InputPrice: 0.5},
			want:  "3.5",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Amount(http.StatusOK, tc.usage, tc.price)
			want := decimal.RequireFromString(tc.want)
			assert.Truef(t, got.Equal(want), "amount = %s, want %s", got, want)
		})
	}
}

func TestAmountNeverNegative(t *testing.T) {
	usage := models.Usage{InputTokens: 10, CachedTokens: 500}
	price := models.Price{InputPrice: 1, CachedPrice: 0.001, CachedPriceUnit: 1000}
	got := Amount(http.StatusOK, usage, price)
	require.False(t, got.IsNegative())
	assert.True(t, got.Equal(decimal.RequireFromString("0.0005")))
}

func randomSheet(r *rand.Rand) models.Price {
	milli := func(n int) float64 { return float64(r.Intn(n)) / 1000 }
	input := milli(5000)
	output := milli(5000)
	return models.Price{
		InputPrice: input, InputPriceUnit: 1000,
		ImageInputPrice: input + milli(3000), ImageInputPriceUnit: 1000,
		CachedPrice: input + milli(3000), CachedPriceUnit: 1000,
		CacheCreationPrice: input + milli(3000), CacheCreationPriceUnit: 1000,
		WebSearchPrice: milli(100),
		OutputPrice:    output, OutputPriceUnit: 1000,
		ThinkingModeOutputPrice: output + milli(3000), ThinkingModeOutputPriceUnit: 1000,
	}
}

func randomUsage(r *rand.Rand) models.Usage {
	return models.Usage{
		InputTokens:         r.Int63n(100000),
		ImageInputTokens:    r.Int63n(5000),
		OutputTokens:        r.Int63n(100000),
		CachedTokens:        r.Int63n(5000),
		CacheCreationTokens: r.Int63n(5000),
		ReasoningTokens:     r.Int63n(3),
		WebSearchCount:      r.Int63n(5),
	}
}

func TestAmountZeroUsage(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		price := randomSheet(r)
		if got := CalculateAmount(http.StatusOK, models.Usage{}, price); got != 0 {
			t.Fatalf("zero usage amount = %v, price %+v", got, price)
		}
	}
}

func TestAmountDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		price := randomSheet(r)
		usage := randomUsage(r)
		first := Amount(http.StatusOK, usage, price)
		second := Amount(http.StatusOK, usage, price)
		if !first.Equal(second) {
			t.Fatalf("amount differs between calls: %s vs %s", first, second)
		}
	}
}

func TestAmountMonotonic(t *testing.T) {
	bumps := map[string]func(*models.Usage, int64){
		"input":          func(u *models.Usage, n int64) { u.InputTokens += n },
		"image_input":    func(u *models.Usage, n int64) { u.ImageInputTokens += n },
		"output":         func(u *models.Usage, n int64) { u.OutputTokens += n },
		"cached":         func(u *models.Usage, n int64) { u.CachedTokens += n },
		"cache_creation": func(u *models.Usage, n int64) { u.CacheCreationTokens += n },
		"reasoning":      func(u *models.Usage, n int64) { u.ReasoningTokens += n },
		"web_search":     func(u *models.Usage, n int64) { u.WebSearchCount += n },
	}

	r := rand.New(rand.NewSource(3))
	for i := 0; i < 300; i++ {
		price := randomSheet(r)
		usage := randomUsage(r)
		base := Amount(http.StatusOK, usage, price)
		for name, bump := range bumps {
			more := usage
			bump(&more, 1+r.Int63n(1000))
			if got := Amount(http.StatusOK, more, price); got.LessThan(base) {
				t.Fatalf("%s: amount decreased from %s to %s (usage %+v -> %+v, price %+v)", name, base, got, usage, more, price)
			}
		}
	}
}
