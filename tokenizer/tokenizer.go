// Package tokenizer provides token counting for the prompt window budget,
// with precise tiktoken counting for known model families and a CJK-aware
// estimator fallback.
package tokenizer

// Counter is the unified token counting interface.
type Counter interface {
	// CountTokens returns the token count of the given text.
	CountTokens(text string) (int, error)

	// Name returns the counter's name.
	Name() string
}

// ForModel returns a precise tiktoken counter when the model's encoding is
// known, falling back to the generic estimator otherwise.
func ForModel(model string) Counter {
	if t, err := NewTiktoken(model); err == nil {
		return t
	}
	return NewEstimator()
}
