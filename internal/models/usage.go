package models

// Usage carries token counters reported by an upstream response.
type Usage struct {
	InputTokens         int64 `json:"input_tokens,omitempty"`
	ImageInputTokens    int64 `json:"image_input_tokens,omitempty"`
	OutputTokens        int64 `json:"output_tokens,omitempty"`
	CachedTokens        int64 `json:"cached_tokens,omitempty"`
	CacheCreationTokens int64 `json:"cache_creation_tokens,omitempty"`
	ReasoningTokens     int64 `json:"reasoning_tokens,omitempty"`
	TotalTokens         int64 `json:"total_tokens,omitempty"`
	WebSearchCount      int64 `json:"web_search_count,omitempty"`
}

// Add returns the element-wise sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:         u.InputTokens + other.InputTokens,
		ImageInputTokens:    u.ImageInputTokens + other.ImageInputTokens,
		OutputTokens:        u.OutputTokens + other.OutputTokens,
		CachedTokens:        u.CachedTokens + other.CachedTokens,
		CacheCreationTokens: u.CacheCreationTokens + other.CacheCreationTokens,
		ReasoningTokens:     u.ReasoningTokens + other.ReasoningTokens,
		TotalTokens:         u.TotalTokens + other.TotalTokens,
		WebSearchCount:      u.WebSearchCount + other.WebSearchCount,
	}
}
