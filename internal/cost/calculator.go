package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Claude    map[string]ModelRate `yaml:"claude" mapstructure:"claude"`
	Embedding EmbeddingRate        `yaml:"embedding" mapstructure:"embedding"`
	Vision    VisionRate           `yaml:"vision" mapstructure:"vision"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// EmbeddingRate holds embedding-model pricing.
type EmbeddingRate struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// VisionRate approximates the token cost of one creative image sent to a
// vision call. Images dominate the input side of visual analysis, so a
// flat per-image token estimate is close enough for budgeting.
type VisionRate struct {
	TokensPerImage int `yaml:"tokens_per_image" mapstructure:"tokens_per_image"`
}

// Calculator computes cost estimates for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of a Claude call from token counts.
func (c *Calculator) Claude(model string, input, output int) float64 {
	rate, ok := c.rates.Claude[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Embedding computes the cost of embedding the given token count.
func (c *Calculator) Embedding(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Embedding.PerMTok
}

// VisionImages estimates the input-side cost of analyzing n images with the
// given Claude model, plus the per-call output tokens.
func (c *Calculator) VisionImages(model string, images, outputPerImage int) float64 {
	rate, ok := c.rates.Claude[model]
	if !ok {
		return 0
	}
	inTokens := float64(images * c.rates.Vision.TokensPerImage)
	outTokens := float64(images * outputPerImage)
	return (inTokens/1e6)*rate.Input + (outTokens/1e6)*rate.Output
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Claude: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		},
		Embedding: EmbeddingRate{PerMTok: 0.02},
		Vision:    VisionRate{TokensPerImage: 1600},
	}
}
