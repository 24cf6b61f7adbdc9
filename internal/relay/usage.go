package relay

import (
	"net/http"

	"github.com/mono-ai/aiproxy/internal/models"
	"github.com/tidwall/gjson"
)

// bytesPerToken is the crude estimate used when an upstream reports no usage.
const bytesPerToken = 4

// EstimateTokens approximates a token count from a byte length.
func EstimateTokens(n int) int64 {
	return int64(n / bytesPerToken)
}

// ExtractUsage reads token usage from an upstream JSON response, accepting both OpenAI and
// Anthropic field names. When the response carries no usage, input is estimated from the
// request body and output from the response body on success.
func ExtractUsage(requestBody []byte, resp *Response) models.Usage {
	if resp == nil {
		return models.Usage{InputTokens: EstimateTokens(len(requestBody))}
	}

	usage := gjson.GetBytes(resp.Body, "usage")
	if !usage.IsObject() {
		out := models.Usage{InputTokens: EstimateTokens(len(requestBody))}
		if resp.StatusCode == http.StatusOK {
			out.OutputTokens = EstimateTokens(len(resp.Body))
		}
		out.TotalTokens = out.InputTokens + out.OutputTokens
		return out
	}

	first := func(paths ...string) int64 {
		for _, path := range paths {
			if v := usage.Get(path); v.Exists() {
				return v.Int()
			}
		}
		return 0
	}

	out := models.Usage{
		InputTokens:         first("prompt_tokens", "input_tokens"),
		OutputTokens:        first("completion_tokens", "output_tokens"),
		CachedTokens:        first("prompt_tokens_details.cached_tokens", "input_tokens_details.cached_tokens", "cache_read_input_tokens"),
		CacheCreationTokens: first("prompt_tokens_details.cache_creation_tokens", "cache_creation_input_tokens"),
		ImageInputTokens:    first("prompt_tokens_details.image_tokens", "input_tokens_details.image_tokens"),
		ReasoningTokens:     first("completion_tokens_details.reasoning_tokens", "output_tokens_details.reasoning_tokens"),
		WebSearchCount:      first("web_search_count", "server_tool_use.web_search_requests"),
	}

	// Anthropic reports cache reads and writes outside input_tokens.
	if usage.Get("cache_read_input_tokens").Exists() || usage.Get("cache_creation_input_tokens").Exists() {
		if !usage.Get("prompt_tokens").Exists() {
			out.InputTokens += out.CachedTokens + out.CacheCreationTokens
		}
	}

	out.TotalTokens = first("total_tokens")
	if out.TotalTokens == 0 {
		out.TotalTokens = out.InputTokens + out.OutputTokens
	}
	return out
}
