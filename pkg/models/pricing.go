package models

// ModelPricing defines per-1M token prices in USD for a model.
type ModelPricing struct {
	Model  string  `json:"model" yaml:"model"`
	Input  float64 `json:"input_per_1m" yaml:"input"`
	Output float64 `json:"output_per_1m" yaml:"output"`
}
